// Package urlparam parses and serializes URL search strings.
//
// A SearchParser turns the raw query of a location into url.Values and back.
// Two encodings are provided:
//
//	urlparam.Flat   ?tag=go&tag=web   → {"tag": ["go", "web"]}
//	urlparam.Comma  ?tag=go,web       → {"tag": ["go", "web"]}
//
// Decode maps parsed values onto a tagged struct:
//
//	type PostSearch struct {
//	    Page int      `url:"page"`
//	    Tags []string `url:"tag"`
//	}
//	var s PostSearch
//	err := urlparam.Decode(values, &s)
package urlparam

import (
	"fmt"
	"net/url"
	"sort"
	"strings"
)

// Encoding specifies how arrays are serialized into the query string.
type Encoding int

const (
	// EncodingFlat repeats the key for each value: ?tag=a&tag=b
	EncodingFlat Encoding = iota

	// EncodingComma joins values with commas: ?tag=a,b
	EncodingComma
)

// String returns the config name of the encoding.
func (e Encoding) String() string {
	switch e {
	case EncodingComma:
		return "comma"
	default:
		return "flat"
	}
}

// ParseEncoding parses an encoding name as used in configuration files.
func ParseEncoding(name string) (Encoding, error) {
	switch strings.ToLower(name) {
	case "", "flat":
		return EncodingFlat, nil
	case "comma":
		return EncodingComma, nil
	}
	return EncodingFlat, fmt.Errorf("unknown search encoding %q", name)
}

// SearchParser converts between raw query strings and parsed values.
type SearchParser interface {
	// Parse parses a raw query string (without the leading "?").
	Parse(raw string) (url.Values, error)

	// Stringify serializes values into a raw query string (without "?").
	// Keys are emitted in sorted order so equal values give equal strings.
	Stringify(values url.Values) string
}

// Parsers for the built-in encodings.
var (
	Flat  SearchParser = flatParser{}
	Comma SearchParser = commaParser{}
)

// ForEncoding returns the parser for e.
func ForEncoding(e Encoding) SearchParser {
	if e == EncodingComma {
		return Comma
	}
	return Flat
}

type flatParser struct{}

func (flatParser) Parse(raw string) (url.Values, error) {
	values, err := url.ParseQuery(strings.TrimPrefix(raw, "?"))
	if err != nil {
		return nil, err
	}
	return values, nil
}

func (flatParser) Stringify(values url.Values) string {
	// url.Values.Encode sorts by key.
	return values.Encode()
}

type commaParser struct{}

func (commaParser) Parse(raw string) (url.Values, error) {
	values, err := url.ParseQuery(strings.TrimPrefix(raw, "?"))
	if err != nil {
		return nil, err
	}
	out := make(url.Values, len(values))
	for key, list := range values {
		for _, v := range list {
			if v == "" {
				out[key] = append(out[key], v)
				continue
			}
			out[key] = append(out[key], strings.Split(v, ",")...)
		}
	}
	return out, nil
}

func (commaParser) Stringify(values url.Values) string {
	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for _, k := range keys {
		list := values[k]
		if len(list) == 0 {
			continue
		}
		escaped := make([]string, len(list))
		for i, v := range list {
			escaped[i] = url.QueryEscape(v)
		}
		if b.Len() > 0 {
			b.WriteByte('&')
		}
		b.WriteString(url.QueryEscape(k))
		b.WriteByte('=')
		b.WriteString(strings.Join(escaped, ","))
	}
	return b.String()
}

// Clone returns a deep copy of values.
func Clone(values url.Values) url.Values {
	if values == nil {
		return url.Values{}
	}
	out := make(url.Values, len(values))
	for k, v := range values {
		out[k] = append([]string(nil), v...)
	}
	return out
}

// Equal reports whether a and b hold the same keys and value lists.
func Equal(a, b url.Values) bool {
	if len(a) != len(b) {
		return false
	}
	for k, av := range a {
		bv, ok := b[k]
		if !ok || len(av) != len(bv) {
			return false
		}
		for i := range av {
			if av[i] != bv[i] {
				return false
			}
		}
	}
	return true
}
