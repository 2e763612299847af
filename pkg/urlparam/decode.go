package urlparam

import (
	"fmt"
	"net/url"
	"reflect"
	"strconv"
	"strings"
)

// Decode populates the struct pointed to by target from values.
// Fields use the `url` tag as key (lowercased field name when absent,
// "-" to skip). Slice fields receive every value of the key; scalar fields
// receive the first one.
func Decode(values url.Values, target any) error {
	v := reflect.ValueOf(target)
	if v.Kind() != reflect.Ptr || v.IsNil() {
		return fmt.Errorf("target must be a non-nil pointer, got %T", target)
	}
	v = v.Elem()
	if v.Kind() != reflect.Struct {
		return fmt.Errorf("target must be a pointer to struct, got pointer to %s", v.Kind())
	}

	t := v.Type()
	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		fieldValue := v.Field(i)
		if !fieldValue.CanSet() {
			continue
		}

		key := field.Tag.Get("url")
		if key == "" {
			key = strings.ToLower(field.Name)
		}
		if key == "-" {
			continue
		}

		list, ok := values[key]
		if !ok || len(list) == 0 {
			continue
		}

		if fieldValue.Kind() == reflect.Slice {
			slice := reflect.MakeSlice(fieldValue.Type(), len(list), len(list))
			for j, s := range list {
				if err := setFieldValue(slice.Index(j), s); err != nil {
					return fmt.Errorf("search param %q: %w", key, err)
				}
			}
			fieldValue.Set(slice)
			continue
		}

		if err := setFieldValue(fieldValue, list[0]); err != nil {
			return fmt.Errorf("search param %q: %w", key, err)
		}
	}
	return nil
}

// Encode is the inverse of Decode. Zero-valued scalar fields are omitted.
func Encode(source any) (url.Values, error) {
	v := reflect.ValueOf(source)
	if v.Kind() == reflect.Ptr {
		v = v.Elem()
	}
	if v.Kind() != reflect.Struct {
		return nil, fmt.Errorf("source must be a struct, got %s", v.Kind())
	}

	out := url.Values{}
	t := v.Type()
	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		if !field.IsExported() {
			continue
		}
		key := field.Tag.Get("url")
		if key == "" {
			key = strings.ToLower(field.Name)
		}
		if key == "-" {
			continue
		}

		fv := v.Field(i)
		if fv.Kind() == reflect.Slice {
			for j := 0; j < fv.Len(); j++ {
				out.Add(key, formatValue(fv.Index(j)))
			}
			continue
		}
		if fv.IsZero() {
			continue
		}
		out.Set(key, formatValue(fv))
	}
	return out, nil
}

func formatValue(v reflect.Value) string {
	switch v.Kind() {
	case reflect.String:
		return v.String()
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return strconv.FormatInt(v.Int(), 10)
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return strconv.FormatUint(v.Uint(), 10)
	case reflect.Float32, reflect.Float64:
		return strconv.FormatFloat(v.Float(), 'f', -1, 64)
	case reflect.Bool:
		return strconv.FormatBool(v.Bool())
	default:
		return fmt.Sprintf("%v", v.Interface())
	}
}

func setFieldValue(v reflect.Value, s string) error {
	switch v.Kind() {
	case reflect.String:
		v.SetString(s)
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		i, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return err
		}
		v.SetInt(i)
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		i, err := strconv.ParseUint(s, 10, 64)
		if err != nil {
			return err
		}
		v.SetUint(i)
	case reflect.Float32, reflect.Float64:
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return err
		}
		v.SetFloat(f)
	case reflect.Bool:
		b, err := strconv.ParseBool(s)
		if err != nil {
			return err
		}
		v.SetBool(b)
	default:
		return fmt.Errorf("unsupported type: %v", v.Kind())
	}
	return nil
}
