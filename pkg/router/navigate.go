package router

import (
	"net/url"

	"github.com/vango-dev/pathway/internal/errors"
)

// To describes a navigation target.
type To struct {
	// To is an absolute or relative path pattern. It may contain
	// ":name"/"$name" placeholders and an inline "?query#hash".
	To string

	// From is the pathname relative targets resolve against. It defaults
	// to the pathname of the deepest committed match.
	From string

	// Params fills placeholders. A nil map inherits the params of the
	// deepest committed match; a non-nil map is used as given.
	Params map[string]string

	// Search replaces the target's search params when non-nil.
	Search url.Values

	Hash  string
	State any

	// Replace writes the history entry with Replace instead of Push.
	Replace bool

	// Reload re-runs every loader, ignoring carried-over results.
	Reload bool
}

// NavigateOption customises a To.
type NavigateOption func(*To)

// WithReplace replaces the current history entry.
func WithReplace() NavigateOption {
	return func(t *To) { t.Replace = true }
}

// WithParams sets the params used to fill placeholders.
func WithParams(params map[string]string) NavigateOption {
	return func(t *To) { t.Params = params }
}

// WithSearch sets the search params.
func WithSearch(search url.Values) NavigateOption {
	return func(t *To) { t.Search = search }
}

// WithHash sets the fragment.
func WithHash(hash string) NavigateOption {
	return func(t *To) { t.Hash = hash }
}

// WithState attaches history state.
func WithState(state any) NavigateOption {
	return func(t *To) { t.State = state }
}

// WithFrom sets the pathname relative targets resolve against.
func WithFrom(from string) NavigateOption {
	return func(t *To) { t.From = from }
}

// WithReload forces every loader to run again.
func WithReload() NavigateOption {
	return func(t *To) { t.Reload = true }
}

// NewTo builds a To from a path and options.
func NewTo(to string, opts ...NavigateOption) To {
	t := To{To: to}
	for _, opt := range opts {
		opt(&t)
	}
	return t
}

// RedirectError is returned by a loader or context function to send the
// navigation elsewhere. It matches errors.ERedirect.
type RedirectError struct {
	Target To
}

// Error implements the error interface.
func (e *RedirectError) Error() string {
	return string(errors.ERedirect) + ": redirect to " + e.Target.To
}

// Is matches errors.ERedirect.
func (e *RedirectError) Is(target error) bool {
	c, ok := target.(errors.Code)
	return ok && c == errors.ERedirect
}

// Redirect returns an error that redirects the current navigation to the
// given target. Relative targets resolve against the redirecting match.
//
//	return nil, router.Redirect("/login", router.WithReplace())
func Redirect(to string, opts ...NavigateOption) error {
	return &RedirectError{Target: NewTo(to, opts...)}
}

// AsRedirect reports whether err carries a redirect.
func AsRedirect(err error) (*RedirectError, bool) {
	var re *RedirectError
	if errors.As(err, &re) {
		return re, true
	}
	return nil, false
}

// IsRedirect reports whether err is a redirect.
func IsRedirect(err error) bool {
	return errors.HasCode(err, errors.ERedirect)
}

// IsNotFound reports whether err means no route matched the whole path.
func IsNotFound(err error) bool {
	return errors.HasCode(err, errors.ENotFound)
}
