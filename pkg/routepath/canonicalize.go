// Package routepath normalizes, splits and resolves URL paths for route
// matching and link building.
package routepath

import (
	"errors"
	"net/url"
	"strings"
)

// CanonicalizeResult contains the result of path canonicalization.
type CanonicalizeResult struct {
	// Path is the canonicalized path (no query, no hash).
	Path string

	// Query is the query string (without leading "?").
	Query string

	// Hash is the fragment (without leading "#").
	Hash string

	// Changed indicates if the path was modified during canonicalization.
	Changed bool
}

// Path canonicalization errors.
var (
	ErrInvalidPath           = errors.New("invalid path")
	ErrBackslashInPath       = errors.New("path contains backslash")
	ErrNullByteInPath        = errors.New("path contains null byte")
	ErrInvalidPercentEscape  = errors.New("invalid percent escape sequence")
	ErrPathEscapesRoot       = errors.New("path escapes root via ..")
	ErrEncodedSlashInSegment = errors.New("encoded slash (%2F) in non-splat segment")
)

// CanonicalizePath normalizes an href-like input ("/a//b/?x=1#top").
//
// Applied transformations:
//   - Ensure a leading slash
//   - Collapse multiple slashes (/blog//post → /blog/post)
//   - Remove "." segments and resolve ".." segments
//   - Remove trailing slash (except for root "/")
//
// Backslashes, NUL bytes, malformed percent-escapes and ".." escaping the
// root are rejected. Query and hash are split off and returned untouched.
func CanonicalizePath(input string) (CanonicalizeResult, error) {
	rest, hash, _ := strings.Cut(input, "#")
	path, query, _ := strings.Cut(rest, "?")

	if path == "" {
		return CanonicalizeResult{Path: "/", Query: query, Hash: hash, Changed: true}, nil
	}

	if strings.Contains(path, "\\") {
		return CanonicalizeResult{}, ErrBackslashInPath
	}
	if strings.Contains(path, "\x00") || strings.Contains(strings.ToUpper(path), "%00") {
		return CanonicalizeResult{}, ErrNullByteInPath
	}
	if strings.Contains(path, "%") {
		if err := validatePercentEscapes(path); err != nil {
			return CanonicalizeResult{}, err
		}
	}

	original := path
	var result []string
	for _, seg := range strings.Split(path, "/") {
		switch seg {
		case "", ".":
			continue
		case "..":
			if len(result) == 0 {
				return CanonicalizeResult{}, ErrPathEscapesRoot
			}
			result = result[:len(result)-1]
		default:
			result = append(result, seg)
		}
	}
	path = "/" + strings.Join(result, "/")

	return CanonicalizeResult{
		Path:    path,
		Query:   query,
		Hash:    hash,
		Changed: path != original,
	}, nil
}

// validatePercentEscapes checks that all percent-escapes are %XX hex pairs.
func validatePercentEscapes(path string) error {
	for i := 0; i < len(path); i++ {
		if path[i] != '%' {
			continue
		}
		if i+2 >= len(path) || !isHexDigit(path[i+1]) || !isHexDigit(path[i+2]) {
			return ErrInvalidPercentEscape
		}
		i += 2
	}
	return nil
}

func isHexDigit(c byte) bool {
	return (c >= '0' && c <= '9') || (c >= 'a' && c <= 'f') || (c >= 'A' && c <= 'F')
}

// DecodeSegment decodes a single path segment. Outside of splats a decoded
// "/" is rejected so a param can never span two segments.
func DecodeSegment(segment string, isSplat bool) (string, error) {
	decoded, err := url.PathUnescape(segment)
	if err != nil {
		return "", ErrInvalidPercentEscape
	}
	if !isSplat && strings.Contains(decoded, "/") {
		return "", ErrEncodedSlashInSegment
	}
	return decoded, nil
}

// EncodeSegment escapes a param value for use as a single path segment.
func EncodeSegment(value string) string {
	return url.PathEscape(value)
}

// EncodeSplat escapes a splat value, keeping its "/" separators.
func EncodeSplat(value string) string {
	parts := strings.Split(value, "/")
	for i, p := range parts {
		parts[i] = url.PathEscape(p)
	}
	return strings.Join(parts, "/")
}

// SplitSegments splits a canonical path into its raw segments.
// The root path yields no segments.
func SplitSegments(path string) []string {
	path = strings.Trim(path, "/")
	if path == "" {
		return nil
	}
	return strings.Split(path, "/")
}

// JoinSegments is the inverse of SplitSegments.
func JoinSegments(segments []string) string {
	return "/" + strings.Join(segments, "/")
}

// SplitHref splits an href into path, query and hash. Query and hash are
// returned without their leading "?" and "#".
func SplitHref(href string) (path, query, hash string) {
	rest, hash, _ := strings.Cut(href, "#")
	path, query, _ = strings.Cut(rest, "?")
	return path, query, hash
}

// BuildHref assembles an href from its parts, omitting empty query and hash.
func BuildHref(path, query, hash string) string {
	var b strings.Builder
	b.WriteString(path)
	if query != "" {
		b.WriteByte('?')
		b.WriteString(query)
	}
	if hash != "" {
		b.WriteByte('#')
		b.WriteString(hash)
	}
	return b.String()
}
