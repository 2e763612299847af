package router

import (
	"testing"

	"github.com/hashicorp/go-multierror"

	"github.com/vango-dev/pathway/internal/errors"
)

// buildTestTree is the tree most matching tests run against:
//
//	__root__
//	├── /            (index)
//	├── about
//	├── posts
//	│   ├── /        (index)
//	│   ├── new
//	│   └── $id
//	│       └── edit
//	├── users/:id:int
//	├── _auth        (pathless)
//	│   └── settings
//	└── files/*
func buildTestTree(t *testing.T) *RouteTree {
	t.Helper()

	root := NewRootRoute(RouteOptions{})
	posts := NewRoute(RouteOptions{Path: "posts"})
	post := NewRoute(RouteOptions{Path: "$id"})
	auth := NewRoute(RouteOptions{ID: "_auth"})

	root.AddChildren(
		NewRoute(RouteOptions{Path: "/"}),
		NewRoute(RouteOptions{Path: "about"}),
		posts.AddChildren(
			NewRoute(RouteOptions{Path: "/"}),
			NewRoute(RouteOptions{Path: "new"}),
			post.AddChildren(NewRoute(RouteOptions{Path: "edit"})),
		),
		NewRoute(RouteOptions{Path: "users/:id:int"}),
		auth.AddChildren(NewRoute(RouteOptions{Path: "settings"})),
		NewRoute(RouteOptions{Path: "files/*"}),
	)

	tree, err := BuildTree(root)
	if err != nil {
		t.Fatalf("BuildTree: %v", err)
	}
	return tree
}

func routeIDs(matches []RouteMatch) []string {
	ids := make([]string, len(matches))
	for i, m := range matches {
		ids[i] = m.Route.ID()
	}
	return ids
}

func equalStrings(a, b []string) bool {
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

func TestTreeMatch(t *testing.T) {
	tree := buildTestTree(t)

	tests := []struct {
		path     string
		ids      []string
		params   map[string]string
		notFound bool
	}{
		{"/", []string{"__root__", "/"}, nil, false},
		{"/about", []string{"__root__", "/about"}, nil, false},
		{"/about/", []string{"__root__", "/about"}, nil, false},
		{"//about/./", []string{"__root__", "/about"}, nil, false},
		{"/posts", []string{"__root__", "/posts", "/posts/"}, nil, false},
		{"/posts/new", []string{"__root__", "/posts", "/posts/new"}, nil, false},
		{"/posts/42", []string{"__root__", "/posts", "/posts/$id"}, map[string]string{"id": "42"}, false},
		{"/posts/a%20b", []string{"__root__", "/posts", "/posts/$id"}, map[string]string{"id": "a b"}, false},
		{"/posts/42/edit", []string{"__root__", "/posts", "/posts/$id", "/posts/$id/edit"}, map[string]string{"id": "42"}, false},
		{"/users/7", []string{"__root__", "/users/:id:int"}, map[string]string{"id": "7"}, false},
		{"/settings", []string{"__root__", "/_auth", "/_auth/settings"}, nil, false},
		{"/files/a/b%20c", []string{"__root__", "/files/*"}, map[string]string{"_splat": "a/b c"}, false},
		{"/files", []string{"__root__", "/files/*"}, map[string]string{"_splat": ""}, false},

		{"/nope", []string{"__root__"}, nil, true},
		{"/users/abc", []string{"__root__"}, nil, true},
		{"/posts/42/nope", []string{"__root__", "/posts", "/posts/$id"}, map[string]string{"id": "42"}, true},
		{"/about/more", []string{"__root__", "/about"}, nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			matches, err := tree.Match(tt.path)
			if tt.notFound {
				if !errors.HasCode(err, errors.ENotFound) {
					t.Fatalf("Match(%q) error = %v, want ENotFound", tt.path, err)
				}
			} else if err != nil {
				t.Fatalf("Match(%q) error = %v", tt.path, err)
			}

			if got := routeIDs(matches); !equalStrings(got, tt.ids) {
				t.Fatalf("Match(%q) = %v, want %v", tt.path, got, tt.ids)
			}

			leaf := matches[len(matches)-1]
			for k, v := range tt.params {
				if leaf.Params[k] != v {
					t.Errorf("params[%q] = %q, want %q", k, leaf.Params[k], v)
				}
			}
			if tt.params == nil && len(leaf.Params) != 0 {
				t.Errorf("params = %v, want none", leaf.Params)
			}
		})
	}
}

func TestTreeMatchDecodesLiterals(t *testing.T) {
	root := NewRootRoute(RouteOptions{})
	root.AddChildren(
		NewRoute(RouteOptions{Path: "café"}),
		NewRoute(RouteOptions{Path: "hello world"}),
	)
	tree, err := BuildTree(root)
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		path string
		id   string
	}{
		{"/café", "/café"},
		{"/caf%C3%A9", "/café"},
		{"/caf%c3%a9", "/café"},
		{"/hello world", "/hello world"},
		{"/hello%20world", "/hello world"},
	}
	for _, tt := range tests {
		matches, err := tree.Match(tt.path)
		if err != nil {
			t.Errorf("Match(%q): %v", tt.path, err)
			continue
		}
		if got := routeIDs(matches); !equalStrings(got, []string{RootRouteID, tt.id}) {
			t.Errorf("Match(%q) = %v", tt.path, got)
		}
	}

	if _, err := tree.Match("/hello%2Fworld"); !errors.HasCode(err, errors.ENotFound) {
		t.Errorf("encoded slash error = %v, want ENotFound", err)
	}
}

func TestTreeMatchPathnames(t *testing.T) {
	tree := buildTestTree(t)

	matches, err := tree.Match("/posts/42/edit")
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"/", "/posts", "/posts/42", "/posts/42/edit"}
	for i, m := range matches {
		if m.Pathname != want[i] {
			t.Errorf("matches[%d].Pathname = %q, want %q", i, m.Pathname, want[i])
		}
	}
}

func TestTreeMatchInvalidPath(t *testing.T) {
	tree := buildTestTree(t)

	for _, p := range []string{"/a\\b", "/bad%zz", "/../x", "/a%00"} {
		matches, err := tree.Match(p)
		if !errors.HasCode(err, errors.EInvalidPath) {
			t.Errorf("Match(%q) error = %v, want EInvalidPath", p, err)
		}
		if matches != nil {
			t.Errorf("Match(%q) returned matches for an invalid path", p)
		}
	}
}

func TestTreeMatchIsIdempotent(t *testing.T) {
	tree := buildTestTree(t)

	first, _ := tree.Match("/posts/42/edit")
	for i := 0; i < 5; i++ {
		again, _ := tree.Match("/posts/42/edit")
		if !equalStrings(routeIDs(first), routeIDs(again)) {
			t.Fatalf("run %d: %v != %v", i, routeIDs(again), routeIDs(first))
		}
	}
}

func TestTreeMatchBacktracks(t *testing.T) {
	root := NewRootRoute(RouteOptions{})
	root.AddChildren(
		NewRoute(RouteOptions{Path: "a"}).AddChildren(NewRoute(RouteOptions{Path: "b"})),
		NewRoute(RouteOptions{Path: "$x"}).AddChildren(NewRoute(RouteOptions{Path: "c"})),
	)
	tree, err := BuildTree(root)
	if err != nil {
		t.Fatal(err)
	}

	matches, err := tree.Match("/a/c")
	if err != nil {
		t.Fatalf("Match: %v", err)
	}
	want := []string{"__root__", "/$x", "/$x/c"}
	if got := routeIDs(matches); !equalStrings(got, want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	if matches[2].Params["x"] != "a" {
		t.Errorf("x = %q, want a", matches[2].Params["x"])
	}
}

func TestTreeMatchPriority(t *testing.T) {
	root := NewRootRoute(RouteOptions{})
	root.AddChildren(
		NewRoute(RouteOptions{Path: "*"}),
		NewRoute(RouteOptions{ID: "_layout"}).AddChildren(NewRoute(RouteOptions{Path: "x"})),
		NewRoute(RouteOptions{Path: "$slug"}),
		NewRoute(RouteOptions{Path: "fixed"}),
	)
	tree, err := BuildTree(root)
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		path string
		leaf string
	}{
		{"/fixed", "/fixed"},
		{"/x", "/$slug"},
		{"/x/y", "/*"},
		{"/", "/*"},
	}
	for _, tt := range tests {
		matches, err := tree.Match(tt.path)
		if err != nil {
			t.Errorf("Match(%q): %v", tt.path, err)
			continue
		}
		if got := matches[len(matches)-1].Route.ID(); got != tt.leaf {
			t.Errorf("Match(%q) leaf = %q, want %q", tt.path, got, tt.leaf)
		}
	}
}

func TestTreeMatchPathlessBeforeSplat(t *testing.T) {
	root := NewRootRoute(RouteOptions{})
	root.AddChildren(
		NewRoute(RouteOptions{Path: "$"}),
		NewRoute(RouteOptions{ID: "_layout"}).AddChildren(NewRoute(RouteOptions{Path: "x"})),
	)
	tree, err := BuildTree(root)
	if err != nil {
		t.Fatal(err)
	}

	matches, err := tree.Match("/x")
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"__root__", "/_layout", "/_layout/x"}
	if got := routeIDs(matches); !equalStrings(got, want) {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestRouteIDsAndFullPaths(t *testing.T) {
	tree := buildTestTree(t)

	tests := []struct {
		id       string
		fullPath string
	}{
		{"__root__", "/"},
		{"/", "/"},
		{"/posts", "/posts"},
		{"/posts/", "/posts"},
		{"/posts/$id", "/posts/$id"},
		{"/posts/$id/edit", "/posts/$id/edit"},
		{"/_auth", "/"},
		{"/_auth/settings", "/settings"},
	}
	for _, tt := range tests {
		r, ok := tree.Lookup(tt.id)
		if !ok {
			t.Errorf("route %q not found", tt.id)
			continue
		}
		if r.FullPath() != tt.fullPath {
			t.Errorf("%q FullPath = %q, want %q", tt.id, r.FullPath(), tt.fullPath)
		}
	}

	if n := len(tree.Routes()); n != 12 {
		t.Errorf("len(Routes) = %d, want 12", n)
	}
}

func TestBuildTreeErrors(t *testing.T) {
	tests := []struct {
		name  string
		build func() *Route
		code  errors.Code
	}{
		{
			name: "child passed twice",
			build: func() *Route {
				a := NewRoute(RouteOptions{Path: "a"})
				return NewRootRoute(RouteOptions{}).AddChildren(a, a)
			},
			code: errors.EDuplicateChild,
		},
		{
			name: "overlapping second call",
			build: func() *Route {
				a := NewRoute(RouteOptions{Path: "a"})
				b := NewRoute(RouteOptions{Path: "b"})
				root := NewRootRoute(RouteOptions{})
				root.AddChildren(a)
				return root.AddChildren(a, b)
			},
			code: errors.EDuplicateChild,
		},
		{
			name: "child of two parents",
			build: func() *Route {
				shared := NewRoute(RouteOptions{Path: "x"})
				p1 := NewRoute(RouteOptions{Path: "p1"}).AddChildren(shared)
				p2 := NewRoute(RouteOptions{Path: "p2"}).AddChildren(shared)
				return NewRootRoute(RouteOptions{}).AddChildren(p1, p2)
			},
			code: errors.EDuplicateChild,
		},
		{
			name: "same id twice",
			build: func() *Route {
				return NewRootRoute(RouteOptions{}).AddChildren(
					NewRoute(RouteOptions{Path: "a"}),
					NewRoute(RouteOptions{Path: "a"}),
				)
			},
			code: errors.EDuplicateChild,
		},
		{
			name: "parent mismatch",
			build: func() *Route {
				other := NewRoute(RouteOptions{Path: "other"})
				child := NewRoute(RouteOptions{
					Path:           "child",
					GetParentRoute: func() *Route { return other },
				})
				return NewRootRoute(RouteOptions{}).AddChildren(other, child)
			},
			code: errors.EParentMismatch,
		},
		{
			name: "cycle through root",
			build: func() *Route {
				root := NewRootRoute(RouteOptions{})
				a := NewRoute(RouteOptions{Path: "a"})
				root.AddChildren(a)
				a.AddChildren(root)
				return root
			},
			code: errors.ECycle,
		},
		{
			name: "self child",
			build: func() *Route {
				a := NewRoute(RouteOptions{Path: "a"})
				a.AddChildren(a)
				return NewRootRoute(RouteOptions{}).AddChildren(a)
			},
			code: errors.ECycle,
		},
		{
			name: "splat not last",
			build: func() *Route {
				return NewRootRoute(RouteOptions{}).AddChildren(NewRoute(RouteOptions{Path: "*/x"}))
			},
			code: errors.EInvalidPath,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := BuildTree(tt.build())
			if !errors.HasCode(err, tt.code) {
				t.Fatalf("BuildTree error = %v, want %s", err, tt.code)
			}
		})
	}
}

func TestBuildTreeAggregatesErrors(t *testing.T) {
	a := NewRoute(RouteOptions{Path: "a"})
	other := NewRoute(RouteOptions{Path: "other"})
	root := NewRootRoute(RouteOptions{}).AddChildren(
		a, a,
		other,
		NewRoute(RouteOptions{Path: "c", GetParentRoute: func() *Route { return other }}),
	)

	_, err := BuildTree(root)
	var merr *multierror.Error
	if !errors.As(err, &merr) {
		t.Fatalf("error %T is not a *multierror.Error", err)
	}
	if len(merr.Errors) != 2 {
		t.Fatalf("got %d errors, want 2: %v", len(merr.Errors), err)
	}
	if !errors.HasCode(err, errors.EDuplicateChild) || !errors.HasCode(err, errors.EParentMismatch) {
		t.Errorf("missing codes in %v", err)
	}
}

func TestAddChildrenIdempotent(t *testing.T) {
	a := NewRoute(RouteOptions{Path: "a"})
	b := NewRoute(RouteOptions{Path: "b"})
	root := NewRootRoute(RouteOptions{})
	root.AddChildren(a, b)
	root.AddChildren(a, b)

	tree, err := BuildTree(root)
	if err != nil {
		t.Fatalf("BuildTree: %v", err)
	}
	if n := len(tree.Root().Children()); n != 2 {
		t.Errorf("children = %d, want 2", n)
	}
}

func TestGetParentRouteMatch(t *testing.T) {
	var root *Route
	child := NewRoute(RouteOptions{Path: "c", GetParentRoute: func() *Route { return root }})
	root = NewRootRoute(RouteOptions{})
	root.AddChildren(child)

	if _, err := BuildTree(root); err != nil {
		t.Fatalf("BuildTree: %v", err)
	}
	if child.Parent() != root {
		t.Error("child not attached to root")
	}
}
