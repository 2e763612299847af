package router

import (
	"net/url"
	"time"
)

// Location is a parsed, canonical location.
type Location struct {
	// Pathname is canonical and relative to the router's basepath.
	Pathname string

	// Search is the stringified search params without the leading "?".
	Search string

	// SearchParams is Search parsed by the router's search parser.
	SearchParams url.Values

	// Hash is the fragment without the leading "#".
	Hash string

	// Href is the full href including the basepath.
	Href string

	State any
}

// key identifies the navigation target for coalescing.
func (l Location) key() string {
	return l.Pathname + "?" + l.Search + "#" + l.Hash
}

// MatchStatus is the loader state of a match.
type MatchStatus int

const (
	MatchIdle MatchStatus = iota
	MatchPending
	MatchSuccess
	MatchError
)

// String returns the status name.
func (s MatchStatus) String() string {
	switch s {
	case MatchPending:
		return "pending"
	case MatchSuccess:
		return "success"
	case MatchError:
		return "error"
	default:
		return "idle"
	}
}

// MarshalText implements encoding.TextMarshaler.
func (s MatchStatus) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Match is the router's record of one route at one location. Matches held
// in a published State are never modified; an updated match is a new
// value.
type Match struct {
	// ID is unique per route and interpolated pathname.
	ID       string
	RouteID  string
	Pathname string
	Params   map[string]string

	// Search is shared by every match of a navigation.
	Search url.Values

	Status MatchStatus
	Data   any
	Error  error

	// NotFound is set on the deepest match when the location only
	// partially matched the tree.
	NotFound error

	// Context is the accumulated context visible to this match's loader.
	Context map[string]any

	// LoaderPromise settles with the loader's result.
	LoaderPromise *Promise

	UpdatedAt time.Time

	route   *Route
	depsKey string
}

// Route returns the route the match belongs to.
func (m *Match) Route() *Route { return m.route }

// Status is the router-level status.
type Status int

const (
	StatusIdle Status = iota
	StatusPending
)

// String returns the status name.
func (s Status) String() string {
	if s == StatusPending {
		return "pending"
	}
	return "idle"
}

// MarshalText implements encoding.TextMarshaler.
func (s Status) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// State is an immutable snapshot published through the store.
type State struct {
	// Location and Matches are the last committed navigation.
	Location Location
	Matches  []*Match

	// PendingLocation and PendingMatches describe the navigation in
	// flight, if any.
	PendingLocation *Location
	PendingMatches  []*Match

	Status Status

	// Token is the token of the navigation that produced Matches.
	Token uint64
}

// Leaf returns the deepest committed match, or nil.
func (s State) Leaf() *Match {
	if len(s.Matches) == 0 {
		return nil
	}
	return s.Matches[len(s.Matches)-1]
}

// MatchByRoute returns the committed match for routeID, or nil.
func (s State) MatchByRoute(routeID string) *Match {
	for _, m := range s.Matches {
		if m.RouteID == routeID {
			return m
		}
	}
	return nil
}

// MatchView is the read-only projection returned by Router.GetMatch.
type MatchView struct {
	Status   MatchStatus
	Data     any
	Error    error
	NotFound error
}

// Phase is the transition controller's phase.
type Phase int

const (
	PhaseIdle Phase = iota
	PhasePlanning
	PhaseLoading
	PhaseCommitting
)

// String returns the phase name.
func (p Phase) String() string {
	switch p {
	case PhasePlanning:
		return "planning"
	case PhaseLoading:
		return "loading"
	case PhaseCommitting:
		return "committing"
	default:
		return "idle"
	}
}

// MarshalText implements encoding.TextMarshaler.
func (p Phase) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}
