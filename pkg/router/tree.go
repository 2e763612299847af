package router

import (
	"sort"
	"strings"

	"github.com/hashicorp/go-multierror"

	"github.com/vango-dev/pathway/internal/errors"
	"github.com/vango-dev/pathway/pkg/routepath"
)

// routeKind orders siblings during matching: literal routes are tried
// before param routes, then pathless layouts, then splats.
type routeKind int

const (
	kindLiteral routeKind = iota
	kindParam
	kindPathless
	kindSplat
	kindIndex
	kindRoot
)

type segmentKind int

const (
	segLiteral segmentKind = iota
	segParam
	segSplat
)

// segment is one parsed piece of a route pattern.
type segment struct {
	kind      segmentKind
	value     string // literal text
	name      string // param or splat name
	paramType string // int, uuid, ...
}

// SplatParam is the param name used by unnamed splats.
const SplatParam = "_splat"

// parsePattern parses a route path into segments. A splat must be the
// last segment.
func parsePattern(path string) ([]segment, error) {
	raw := routepath.SplitSegments(path)
	segs := make([]segment, 0, len(raw))
	for i, s := range raw {
		seg := parseSegment(s)
		if seg.kind == segSplat && i != len(raw)-1 {
			return nil, errors.New(errors.EInvalidPath).
				WithDetailf("splat %q must be the last segment of %q", s, path)
		}
		if seg.kind != segLiteral && seg.name == "" {
			return nil, errors.New(errors.EInvalidPath).
				WithDetailf("param segment %q has no name", s)
		}
		segs = append(segs, seg)
	}
	return segs, nil
}

// parseSegment recognises ":id", "$id", ":id:int", "*", "*rest" and "$".
func parseSegment(s string) segment {
	switch {
	case s == "*" || s == "$":
		return segment{kind: segSplat, name: SplatParam}
	case strings.HasPrefix(s, "*"):
		return segment{kind: segSplat, name: s[1:]}
	case len(s) > 1 && (s[0] == ':' || s[0] == '$'):
		name, typ, _ := strings.Cut(s[1:], ":")
		return segment{kind: segParam, name: name, paramType: typ}
	}
	return segment{kind: segLiteral, value: s}
}

// RouteTree is a frozen route hierarchy.
type RouteTree struct {
	root   *Route
	byID   map[string]*Route
	routes []*Route
}

// BuildTree freezes the tree under root and validates it. Every problem
// found is reported; the returned error is a *multierror.Error.
func BuildTree(root *Route) (*RouteTree, error) {
	if root == nil {
		return nil, errors.New(errors.EInvalidPath).WithDetail("root route is nil")
	}

	if !root.isRoot {
		return nil, multierror.Append(nil, errors.New(errors.EParentMismatch).
			WithRoute(root.debugName()).
			WithDetail("tree root must be created with NewRootRoute"))
	}

	t := &RouteTree{root: root, byID: make(map[string]*Route)}
	var result *multierror.Error

	onStack := make(map[*Route]bool)
	visited := make(map[*Route]bool)

	var walk func(r *Route, parent *Route, depth int)
	walk = func(r *Route, parent *Route, depth int) {
		if onStack[r] {
			result = multierror.Append(result, errors.New(errors.ECycle).
				WithRoute(r.debugName()).
				WithDetailf("route %q is its own ancestor", r.debugName()))
			return
		}
		if visited[r] {
			return
		}
		onStack[r] = true
		visited[r] = true
		defer delete(onStack, r)

		if r.isRoot && parent != nil {
			result = multierror.Append(result, errors.New(errors.ECycle).
				WithDetail("the root route cannot be a child"))
			return
		}

		for _, err := range r.errs {
			result = multierror.Append(result, err)
		}

		if err := t.freezeRoute(r, parent, depth); err != nil {
			result = multierror.Append(result, err)
		}
		if prev, ok := t.byID[r.id]; ok && prev != r {
			result = multierror.Append(result, errors.New(errors.EDuplicateChild).
				WithRoute(r.id).
				WithDetailf("route id %q is used by more than one route", r.id))
		} else {
			t.byID[r.id] = r
		}
		t.routes = append(t.routes, r)

		for _, c := range r.children {
			walk(c, r, depth+1)
		}

		r.ordered = orderChildren(r.children)
		r.frozen = true
	}
	walk(root, nil, 0)

	if err := result.ErrorOrNil(); err != nil {
		return nil, err
	}
	return t, nil
}

// freezeRoute computes the id, full path, pattern and kind of r.
func (t *RouteTree) freezeRoute(r *Route, parent *Route, depth int) error {
	r.depth = depth
	if r.isRoot {
		r.id = RootRouteID
		r.pathID = ""
		r.fullPath = "/"
		r.kind = kindRoot
		return nil
	}

	seg := r.segmentID()
	r.pathID = parent.pathID + "/" + seg
	r.id = r.pathID

	switch {
	case r.opts.Path == "" && r.opts.ID != "":
		r.kind = kindPathless
		r.fullPath = parent.fullPath
		return nil
	case strings.Trim(r.opts.Path, "/") == "":
		r.kind = kindIndex
		r.fullPath = parent.fullPath
		return nil
	}

	pattern, err := parsePattern(r.opts.Path)
	if err != nil {
		var re *errors.RouterError
		if errors.As(err, &re) {
			re.WithRoute(r.id)
		}
		return err
	}
	r.pattern = pattern
	switch pattern[0].kind {
	case segLiteral:
		r.kind = kindLiteral
	case segParam:
		r.kind = kindParam
	default:
		r.kind = kindSplat
	}
	if parent.fullPath == "/" {
		r.fullPath = "/" + strings.Trim(r.opts.Path, "/")
	} else {
		r.fullPath = parent.fullPath + "/" + strings.Trim(r.opts.Path, "/")
	}
	return nil
}

// orderChildren returns children sorted by match priority. Index routes
// go first so an exhausted path prefers them; ties keep declaration order.
func orderChildren(children []*Route) []*Route {
	out := make([]*Route, len(children))
	copy(out, children)
	sort.SliceStable(out, func(i, j int) bool {
		return rank(out[i]) < rank(out[j])
	})
	return out
}

func rank(r *Route) int {
	switch r.kind {
	case kindIndex:
		return 0
	case kindLiteral:
		return 1
	case kindParam:
		return 2
	case kindPathless:
		return 3
	case kindSplat:
		return 4
	}
	return 5
}

// Root returns the root route.
func (t *RouteTree) Root() *Route { return t.root }

// Lookup finds a route by id.
func (t *RouteTree) Lookup(id string) (*Route, bool) {
	r, ok := t.byID[id]
	return r, ok
}

// Routes returns every route in depth-first declaration order.
func (t *RouteTree) Routes() []*Route {
	out := make([]*Route, len(t.routes))
	copy(out, t.routes)
	return out
}
