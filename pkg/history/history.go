// Package history defines the location source consumed by the router and
// provides an in-memory implementation.
//
// A History is authoritative for the current location. The router reads it
// on startup, listens for pop events (back/forward) and writes committed
// navigations back through Push or Replace.
package history

import (
	"github.com/vango-dev/pathway/pkg/routepath"
)

// Location is a raw history entry.
type Location struct {
	// Pathname always starts with "/".
	Pathname string

	// Search is the raw query string without the leading "?".
	Search string

	// Hash is the fragment without the leading "#".
	Hash string

	// State is opaque caller data attached to the entry.
	State any
}

// Href returns the location as "pathname?search#hash".
func (l Location) Href() string {
	return routepath.BuildHref(l.Pathname, l.Search, l.Hash)
}

// Action describes how the current entry was reached.
type Action int

const (
	ActionPush Action = iota
	ActionReplace
	ActionPop
)

// String returns the action name.
func (a Action) String() string {
	switch a {
	case ActionReplace:
		return "replace"
	case ActionPop:
		return "pop"
	default:
		return "push"
	}
}

// Update is delivered to subscribers when the location changes without the
// router asking for it (back/forward).
type Update struct {
	Location Location
	Action   Action
}

// History is the abstract location source.
type History interface {
	// Location returns the current entry.
	Location() Location

	// Subscribe registers fn for pop events and returns an unsubscribe func.
	Subscribe(fn func(Update)) (unsubscribe func())

	// Push appends a new entry after the current one.
	Push(href string, state any)

	// Replace overwrites the current entry.
	Replace(href string, state any)

	// Go moves n entries through the stack (negative = back).
	Go(n int)
}

// ParseHref splits an href into a Location (without state). The pathname is
// not canonicalized.
func ParseHref(href string) Location {
	path, query, hash := routepath.SplitHref(href)
	if path == "" {
		path = "/"
	}
	return Location{Pathname: path, Search: query, Hash: hash}
}
