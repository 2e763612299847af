package router

import (
	"fmt"
	"net/url"
	"reflect"
	"regexp"
	"strconv"
	"strings"
	"sync"

	"github.com/vango-dev/pathway/internal/errors"
	"github.com/vango-dev/pathway/pkg/urlparam"
)

// ParamValidator reports whether a raw param value is acceptable for a
// typed param segment such as ":id:int".
type ParamValidator func(value string) error

var (
	paramTypesMu sync.RWMutex
	paramTypes   = map[string]ParamValidator{
		"int":   ValidateInt,
		"int64": ValidateInt,
		"int32": ValidateInt,
		"uint":  validateUint,
		"uuid":  ValidateUUID,
		"float": validateFloat,
		"bool":  validateBool,
	}
)

// RegisterParamType adds or replaces the validator used for ":name:typ"
// segments. Register types before building trees that use them.
func RegisterParamType(typ string, fn ParamValidator) {
	paramTypesMu.Lock()
	defer paramTypesMu.Unlock()
	paramTypes[typ] = fn
}

// ValidateParam validates a parameter value against its declared type.
// Untyped params, "string" and unknown types accept any value.
func ValidateParam(value, paramType string) error {
	if paramType == "" || paramType == "string" {
		return nil
	}
	paramTypesMu.RLock()
	fn, ok := paramTypes[paramType]
	paramTypesMu.RUnlock()
	if !ok {
		return nil
	}
	return fn(value)
}

// uuidRegex matches valid UUIDs.
var uuidRegex = regexp.MustCompile(`^[0-9a-fA-F]{8}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{12}$`)

// ValidateUUID validates that a string is a valid UUID.
func ValidateUUID(value string) error {
	if !uuidRegex.MatchString(value) {
		return fmt.Errorf("invalid UUID: %s", value)
	}
	return nil
}

// ValidateInt validates that a string is a valid integer.
func ValidateInt(value string) error {
	if _, err := strconv.ParseInt(value, 10, 64); err != nil {
		return fmt.Errorf("invalid integer: %s", value)
	}
	return nil
}

func validateUint(value string) error {
	if _, err := strconv.ParseUint(value, 10, 64); err != nil {
		return fmt.Errorf("invalid unsigned integer: %s", value)
	}
	return nil
}

func validateFloat(value string) error {
	if _, err := strconv.ParseFloat(value, 64); err != nil {
		return fmt.Errorf("invalid float: %s", value)
	}
	return nil
}

func validateBool(value string) error {
	if _, err := strconv.ParseBool(value); err != nil {
		return fmt.Errorf("invalid boolean: %s", value)
	}
	return nil
}

// DecodeSearch populates a struct from search params. Fields are selected
// with a `url` tag, as in urlparam.Decode. A value that does not convert
// is EInvalidSearch.
//
//	var q struct {
//		Page int      `url:"page"`
//		Tags []string `url:"tag"`
//	}
//	err := router.DecodeSearch(lc.Search, &q)
func DecodeSearch(search url.Values, target any) error {
	if err := urlparam.Decode(search, target); err != nil {
		return errors.New(errors.EInvalidSearch).Wrap(err)
	}
	return nil
}

// EncodeSearch is the inverse of DecodeSearch; pass the result to
// WithSearch.
func EncodeSearch(source any) (url.Values, error) {
	values, err := urlparam.Encode(source)
	if err != nil {
		return nil, errors.New(errors.EInvalidSearch).Wrap(err)
	}
	return values, nil
}

// DecodeParams populates a struct from match params. target must be a
// pointer to a struct; fields are selected with a `param` tag. A []string
// field receives a splat value split on "/".
//
//	var p struct {
//		ID   int      `param:"id"`
//		Rest []string `param:"_splat"`
//	}
//	err := router.DecodeParams(match.Params, &p)
func DecodeParams(params map[string]string, target any) error {
	if target == nil {
		return nil
	}

	v := reflect.ValueOf(target)
	if v.Kind() != reflect.Ptr {
		return fmt.Errorf("target must be a pointer, got %s", v.Kind())
	}

	v = v.Elem()
	if v.Kind() != reflect.Struct {
		return fmt.Errorf("target must be a pointer to struct, got pointer to %s", v.Kind())
	}

	t := v.Type()
	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		name := field.Tag.Get("param")
		if name == "" {
			continue
		}

		value, ok := params[name]
		if !ok {
			continue
		}

		fv := v.Field(i)
		if !fv.CanSet() {
			continue
		}

		if err := setParamField(fv, value); err != nil {
			return fmt.Errorf("parsing param %q: %w", name, err)
		}
	}

	return nil
}

func setParamField(field reflect.Value, value string) error {
	switch field.Kind() {
	case reflect.String:
		field.SetString(value)

	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		n, err := strconv.ParseInt(value, 10, field.Type().Bits())
		if err != nil {
			return fmt.Errorf("invalid integer: %s", value)
		}
		field.SetInt(n)

	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		n, err := strconv.ParseUint(value, 10, field.Type().Bits())
		if err != nil {
			return fmt.Errorf("invalid unsigned integer: %s", value)
		}
		field.SetUint(n)

	case reflect.Float32, reflect.Float64:
		n, err := strconv.ParseFloat(value, field.Type().Bits())
		if err != nil {
			return fmt.Errorf("invalid float: %s", value)
		}
		field.SetFloat(n)

	case reflect.Bool:
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("invalid boolean: %s", value)
		}
		field.SetBool(b)

	case reflect.Slice:
		if field.Type().Elem().Kind() != reflect.String {
			return fmt.Errorf("unsupported slice element type: %s", field.Type().Elem().Kind())
		}
		var parts []string
		if value != "" {
			parts = strings.Split(value, "/")
		}
		field.Set(reflect.ValueOf(parts))

	default:
		return fmt.Errorf("unsupported type: %s", field.Kind())
	}

	return nil
}

func paramsEqual(a, b map[string]string) bool {
	if len(a) != len(b) {
		return false
	}
	for k, v := range a {
		if bv, ok := b[k]; !ok || bv != v {
			return false
		}
	}
	return true
}

func cloneParams(p map[string]string) map[string]string {
	out := make(map[string]string, len(p))
	for k, v := range p {
		out[k] = v
	}
	return out
}
