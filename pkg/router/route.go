package router

import (
	"context"
	"net/url"
	"strings"

	"github.com/vango-dev/pathway/internal/errors"
)

// RootRouteID is the id of every tree's root route.
const RootRouteID = "__root__"

// LoaderFunc fetches the data for one match. ctx is cancelled when the
// navigation that invoked the loader is superseded or aborted.
type LoaderFunc func(ctx context.Context, lc LoaderContext) (any, error)

// ContextFunc computes values merged into the context seen by a route's
// loader and by every loader below it. Returning a redirect error from a
// ContextFunc redirects the navigation before any loader runs.
type ContextFunc func(ctx context.Context, co ContextOptions) (map[string]any, error)

// SearchValidator checks the parsed search params for a route. A non-nil
// error puts the match into the error state without running its loader.
type SearchValidator func(search url.Values) error

// ContextOptions is passed to a route's ContextFunc.
type ContextOptions struct {
	Params   map[string]string
	Search   url.Values
	Location Location

	// Context is the accumulated context of the parent match.
	Context map[string]any
}

// RouteOptions configures a route. Components are opaque to the router.
type RouteOptions struct {
	// Path is the route's segment pattern relative to its parent:
	// literals, ":name" or "$name" params (optionally typed, ":id:int"),
	// and a trailing splat ("*", "*name" or "$"). "/" declares an index
	// route. An empty Path together with ID declares a pathless layout.
	Path string

	// ID names pathless routes. For path routes it overrides the segment
	// used when computing the route id.
	ID string

	// GetParentRoute, when set, must return the route this one is added to.
	GetParentRoute func() *Route

	Loader     LoaderFunc
	LoaderDeps func(search url.Values) string

	Context        ContextFunc
	ValidateSearch SearchValidator

	Component         any
	ErrorComponent    any
	PendingComponent  any
	NotFoundComponent any

	// Meta is free-form data carried on the route.
	Meta map[string]any
}

// Route is a node of the route tree. Routes are assembled with AddChildren
// and frozen when passed to New; after that they are read-only.
type Route struct {
	opts   RouteOptions
	isRoot bool

	parent   *Route
	children []*Route
	errs     []error
	frozen   bool

	// computed when the tree is frozen
	id       string
	pathID   string
	fullPath string
	pattern  []segment
	kind     routeKind
	ordered  []*Route
	depth    int
}

// NewRoute creates a route. It is not part of any tree until added as a
// child.
func NewRoute(opts RouteOptions) *Route {
	return &Route{opts: opts}
}

// NewRootRoute creates the root of a route tree. The root matches "/" and
// is the first match of every navigation.
func NewRootRoute(opts RouteOptions) *Route {
	opts.Path = "/"
	return &Route{opts: opts, isRoot: true}
}

// AddChildren attaches children to r and returns r. Mistakes are recorded
// on the route and reported by New:
//   - a child that already belongs to another parent, or that is passed
//     twice, is EDuplicateChild
//   - a child whose GetParentRoute returns a different route is
//     EParentMismatch
//   - a child that is r itself or one of its ancestors is ECycle
//
// Calling AddChildren again with exactly the same children is a no-op.
func (r *Route) AddChildren(children ...*Route) *Route {
	if r.frozen {
		r.errs = append(r.errs, errors.New(errors.EDuplicateChild).
			WithRoute(r.debugName()).
			WithDetail("AddChildren called after the tree was frozen"))
		return r
	}

	if len(r.children) > 0 && sameRoutes(r.children, children) {
		return r
	}

	seen := make(map[*Route]bool, len(children))
	for _, c := range children {
		if c == nil {
			continue
		}
		if seen[c] || c.parent == r {
			r.errs = append(r.errs, errors.New(errors.EDuplicateChild).
				WithRoute(c.debugName()).
				WithDetailf("route %q added to %q more than once", c.debugName(), r.debugName()))
			continue
		}
		seen[c] = true

		if c == r || r.hasAncestor(c) {
			r.errs = append(r.errs, errors.New(errors.ECycle).
				WithRoute(c.debugName()).
				WithDetailf("adding %q to %q would make it its own ancestor", c.debugName(), r.debugName()))
			continue
		}

		if c.parent != nil {
			r.errs = append(r.errs, errors.New(errors.EDuplicateChild).
				WithRoute(c.debugName()).
				WithDetailf("route %q already belongs to %q", c.debugName(), c.parent.debugName()))
			continue
		}

		if c.opts.GetParentRoute != nil {
			if p := c.opts.GetParentRoute(); p != nil && p != r {
				r.errs = append(r.errs, errors.New(errors.EParentMismatch).
					WithRoute(c.debugName()).
					WithDetailf("getParentRoute returns %q but route was added to %q", p.debugName(), r.debugName()))
				continue
			}
		}

		c.parent = r
		r.children = append(r.children, c)
	}
	return r
}

// ID returns the route id. It is empty until the tree is frozen.
func (r *Route) ID() string { return r.id }

// FullPath returns the URL pattern of the route including its ancestors,
// e.g. "/posts/$id". Pathless routes share their parent's full path.
func (r *Route) FullPath() string { return r.fullPath }

// Path returns the pattern the route was declared with.
func (r *Route) Path() string { return r.opts.Path }

// Parent returns the parent route, or nil for the root.
func (r *Route) Parent() *Route { return r.parent }

// Children returns the children in declaration order.
func (r *Route) Children() []*Route {
	out := make([]*Route, len(r.children))
	copy(out, r.children)
	return out
}

// Options returns a copy of the options the route was created with.
func (r *Route) Options() RouteOptions { return r.opts }

// IsRoot reports whether r was created by NewRootRoute.
func (r *Route) IsRoot() bool { return r.isRoot }

// IsIndex reports whether r only matches when no segments remain.
func (r *Route) IsIndex() bool { return r.kind == kindIndex }

// IsPathless reports whether r is a layout route that consumes no segments.
func (r *Route) IsPathless() bool { return r.kind == kindPathless }

// HasLoader reports whether the route declares a loader.
func (r *Route) HasLoader() bool { return r.opts.Loader != nil }

func (r *Route) debugName() string {
	switch {
	case r.id != "":
		return r.id
	case r.isRoot:
		return RootRouteID
	case r.opts.ID != "":
		return r.opts.ID
	case r.opts.Path != "":
		return r.opts.Path
	}
	return "<anonymous>"
}

// segmentID is the route's own contribution to its id.
func (r *Route) segmentID() string {
	if r.opts.ID != "" {
		return strings.Trim(r.opts.ID, "/")
	}
	return strings.Trim(r.opts.Path, "/")
}

func (r *Route) hasAncestor(a *Route) bool {
	for p := r.parent; p != nil; p = p.parent {
		if p == a {
			return true
		}
	}
	return false
}

func sameRoutes(a, b []*Route) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
