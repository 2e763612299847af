package errors

import (
	stderrors "errors"
	"fmt"
)

// Category represents the type of error.
type Category string

const (
	CategoryBuild    Category = "build"
	CategoryMatch    Category = "match"
	CategoryLoader   Category = "loader"
	CategoryLink     Category = "link"
	CategorySearch   Category = "search"
	CategoryManifest Category = "manifest"
	CategoryConfig   Category = "config"
)

// RouterError is a structured error with a stable code and optional detail.
type RouterError struct {
	// Code is a unique error identifier (e.g., "ENotFound").
	Code string

	// Category is the error type (build, match, loader, ...).
	Category Category

	// Message is a short description of the error.
	Message string

	// Detail is a longer explanation of the error.
	Detail string

	// RouteID is the route the error is attached to, if any.
	RouteID string

	// Suggestion is a hint on how to fix the error.
	Suggestion string

	// Wrapped is the underlying error, if any.
	Wrapped error
}

// Error implements the error interface.
func (e *RouterError) Error() string {
	msg := e.Message
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	if e.Wrapped != nil && e.Detail == "" {
		msg += ": " + e.Wrapped.Error()
	}
	if e.Code != "" {
		return fmt.Sprintf("%s: %s", e.Code, msg)
	}
	return msg
}

// Unwrap returns the wrapped error for errors.Is/As support.
func (e *RouterError) Unwrap() error {
	return e.Wrapped
}

// Is reports whether target is a Code equal to e.Code, or a *RouterError
// with the same code.
func (e *RouterError) Is(target error) bool {
	switch t := target.(type) {
	case Code:
		return e.Code == string(t)
	case *RouterError:
		return t.Code != "" && e.Code == t.Code
	}
	return false
}

// WithDetail adds a detailed explanation to the error.
func (e *RouterError) WithDetail(d string) *RouterError {
	e.Detail = d
	return e
}

// WithDetailf adds a formatted detail to the error.
func (e *RouterError) WithDetailf(format string, args ...any) *RouterError {
	e.Detail = fmt.Sprintf(format, args...)
	return e
}

// WithRoute records the route id the error belongs to.
func (e *RouterError) WithRoute(id string) *RouterError {
	e.RouteID = id
	return e
}

// WithSuggestion adds a fix suggestion to the error.
func (e *RouterError) WithSuggestion(s string) *RouterError {
	e.Suggestion = s
	return e
}

// Wrap wraps another error.
func (e *RouterError) Wrap(err error) *RouterError {
	e.Wrapped = err
	return e
}

// Code is an error code usable as an errors.Is target:
//
//	errors.Is(err, errors.ENotFound)
type Code string

func (c Code) Error() string { return string(c) }

// New creates a RouterError from a registered error code.
func New(code Code) *RouterError {
	template, ok := registry[code]
	if !ok {
		return &RouterError{
			Code:    string(code),
			Message: "Unknown error",
		}
	}
	return &RouterError{
		Code:     string(code),
		Category: template.Category,
		Message:  template.Message,
	}
}

// Newf creates a new RouterError with a formatted message (no code).
func Newf(category Category, format string, args ...any) *RouterError {
	return &RouterError{
		Category: category,
		Message:  fmt.Sprintf(format, args...),
	}
}

// FromError wraps a standard error in a RouterError unless it already is one.
func FromError(err error, code Code) *RouterError {
	if err == nil {
		return nil
	}
	var re *RouterError
	if stderrors.As(err, &re) {
		return re
	}
	return New(code).Wrap(err)
}

// HasCode reports whether any error in err's chain carries code.
func HasCode(err error, code Code) bool {
	return stderrors.Is(err, code)
}

// Is, As and Unwrap forward to the standard library so callers only need
// this package.
func Is(err, target error) bool { return stderrors.Is(err, target) }

func As(err error, target any) bool { return stderrors.As(err, target) }

func Unwrap(err error) error { return stderrors.Unwrap(err) }
