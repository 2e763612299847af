package router

import (
	"time"

	"github.com/vango-dev/pathway/internal/errors"
)

var (
	// ErrSuperseded is returned to waiters of a navigation replaced by a
	// newer one.
	ErrSuperseded = errors.Newf(errors.CategoryMatch, "navigation superseded")

	// ErrAborted is returned to waiters of a navigation dropped by Abort.
	ErrAborted = errors.Newf(errors.CategoryMatch, "navigation aborted")

	// ErrClosed is returned once the router has been closed.
	ErrClosed = errors.Newf(errors.CategoryMatch, "router closed")

	// ErrTooManyRedirects ends a redirect chain longer than the router's
	// limit.
	ErrTooManyRedirects = errors.Newf(errors.CategoryLoader, "too many redirects")
)

// Outcome is how a navigation ended.
type Outcome int

const (
	OutcomePending Outcome = iota
	OutcomeCommitted
	OutcomeSuperseded
	OutcomeRedirected
	OutcomeAborted
	OutcomeFailed
)

// String returns the outcome name.
func (o Outcome) String() string {
	switch o {
	case OutcomeCommitted:
		return "committed"
	case OutcomeSuperseded:
		return "superseded"
	case OutcomeRedirected:
		return "redirected"
	case OutcomeAborted:
		return "aborted"
	case OutcomeFailed:
		return "failed"
	default:
		return "pending"
	}
}

// NavigationEvent is delivered to observers.
type NavigationEvent struct {
	Token    uint64
	Location Location
	Outcome  Outcome
	Err      error

	// Redirects counts the redirects that led to this navigation.
	Redirects int

	Started  time.Time
	Duration time.Duration
}

// Observer is notified when navigations start and finish. Callbacks run
// on router goroutines and must not block.
type Observer interface {
	NavigationStarted(ev NavigationEvent)
	NavigationFinished(ev NavigationEvent)
}
