package router

import (
	"context"
	"net/url"
	"testing"

	"github.com/vango-dev/pathway/internal/errors"
)

func linkTree() *Route {
	root := NewRootRoute(RouteOptions{})
	root.AddChildren(
		NewRoute(RouteOptions{Path: "/"}),
		NewRoute(RouteOptions{Path: "posts"}).AddChildren(
			NewRoute(RouteOptions{Path: "$id"}).AddChildren(
				NewRoute(RouteOptions{Path: "edit"}),
			),
		),
		NewRoute(RouteOptions{Path: "users/:id:int"}),
		NewRoute(RouteOptions{Path: "files/$"}),
	)
	return root
}

func TestBuildLocation(t *testing.T) {
	r, _ := newTestRouter(t, linkTree(), "/posts/42")
	if err := r.Load(context.Background()); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name string
		to   To
		href string
	}{
		{"absolute", To{To: "/posts"}, "/posts"},
		{"relative child", To{To: "./edit"}, "/posts/42/edit"},
		{"relative parent", To{To: ".."}, "/posts"},
		{"sibling", To{To: "../7"}, "/posts/7"},
		{"current", To{To: "."}, "/posts/42"},
		{"empty is current", To{}, "/posts/42"},
		{"inherited params", To{To: "/posts/$id/edit"}, "/posts/42/edit"},
		{"explicit params", To{To: "/posts/$id", Params: map[string]string{"id": "a b"}}, "/posts/a%20b"},
		{"escaped slash", To{To: "/posts/$id", Params: map[string]string{"id": "a/b"}}, "/posts/a%2Fb"},
		{"splat", To{To: "/files/$", Params: map[string]string{"_splat": "docs/read me.md"}}, "/files/docs/read%20me.md"},
		{"empty splat", To{To: "/files/$", Params: map[string]string{}}, "/files"},
		{"inline query and hash", To{To: "/posts?b=2&a=1#top"}, "/posts?a=1&b=2#top"},
		{"search option", To{To: "/posts", Search: url.Values{"q": {"go"}}}, "/posts?q=go"},
		{"hash option", To{To: "/posts", Hash: "h"}, "/posts#h"},
		{"from option", To{To: "./x", From: "/files"}, "/files/x"},
		{"canonicalizes", To{To: "//posts//7/"}, "/posts/7"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			loc, err := r.BuildLocation(tt.to)
			if err != nil {
				t.Fatalf("BuildLocation: %v", err)
			}
			if loc.Href != tt.href {
				t.Errorf("href = %q, want %q", loc.Href, tt.href)
			}
		})
	}
}

func TestBuildLocationErrors(t *testing.T) {
	r, _ := newTestRouter(t, linkTree(), "/")
	if err := r.Load(context.Background()); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name string
		to   To
		code errors.Code
	}{
		{"missing param", To{To: "/posts/$id"}, errors.EMissingParam},
		{"empty param", To{To: "/posts/$id", Params: map[string]string{"id": ""}}, errors.EMissingParam},
		{"typed param", To{To: "/users/:id:int", Params: map[string]string{"id": "x"}}, errors.EInvalidPath},
		{"escapes root", To{To: "../.."}, errors.EInvalidPath},
		{"backslash", To{To: "/a\\b"}, errors.EInvalidPath},
		{"bad escape", To{To: "/a%zz"}, errors.EInvalidPath},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := r.BuildLocation(tt.to)
			if !errors.HasCode(err, tt.code) {
				t.Errorf("error = %v, want %s", err, tt.code)
			}
		})
	}
}

// Building a link from a match's route pattern and params must give back
// the pathname that produced the match.
func TestLinkRoundTrip(t *testing.T) {
	tree, err := BuildTree(linkTree())
	if err != nil {
		t.Fatal(err)
	}

	for _, path := range []string{
		"/",
		"/posts",
		"/posts/42",
		"/posts/a%20b/edit",
		"/posts/caf%C3%A9",
		"/users/9",
		"/files/a/b/c.txt",
		"/files/with%20space/x",
	} {
		matches, err := tree.Match(path)
		if err != nil {
			t.Errorf("Match(%q): %v", path, err)
			continue
		}
		leaf := matches[len(matches)-1]
		got, err := InterpolatePath(leaf.Route.FullPath(), leaf.Params)
		if err != nil {
			t.Errorf("InterpolatePath(%q): %v", leaf.Route.FullPath(), err)
			continue
		}
		if got != path {
			t.Errorf("round trip of %q gave %q", path, got)
		}
	}
}

func TestInterpolatePathEscapesLiterals(t *testing.T) {
	tests := []struct {
		pattern string
		params  map[string]string
		want    string
	}{
		{"/café/$id", map[string]string{"id": "1"}, "/caf%C3%A9/1"},
		{"/caf%C3%A9", nil, "/caf%C3%A9"},
		{"/hello world", nil, "/hello%20world"},
		{"/hello%20world/$", map[string]string{"_splat": "a b/c"}, "/hello%20world/a%20b/c"},
		{"/posts", nil, "/posts"},
	}
	for _, tt := range tests {
		got, err := InterpolatePath(tt.pattern, tt.params)
		if err != nil {
			t.Errorf("InterpolatePath(%q): %v", tt.pattern, err)
			continue
		}
		if got != tt.want {
			t.Errorf("InterpolatePath(%q) = %q, want %q", tt.pattern, got, tt.want)
		}
	}
}

func TestHref(t *testing.T) {
	r, _ := newTestRouter(t, linkTree(), "/", WithBasepath("/app"))
	href, err := r.Href("/posts/$id", WithParams(map[string]string{"id": "1"}), WithHash("c"))
	if err != nil {
		t.Fatal(err)
	}
	if href != "/app/posts/1#c" {
		t.Errorf("href = %q", href)
	}
}
