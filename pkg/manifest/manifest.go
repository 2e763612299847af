// Package manifest describes route trees as JSON documents.
//
// A manifest is a nested list of routes whose loaders are static: they
// return fixed data, fail with a message, redirect, or sleep first. It is
// meant for exercising a router without writing Go, for example from the
// pathway CLI:
//
//	{
//	  "root": {
//	    "data": "app",
//	    "children": [
//	      {"path": "/", "data": "home"},
//	      {"path": "posts/$id", "data": "post {{id}}", "delay": "20ms"},
//	      {"path": "old", "redirect": "/"}
//	    ]
//	  }
//	}
package manifest

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/hashicorp/go-multierror"

	"github.com/vango-dev/pathway/internal/errors"
	"github.com/vango-dev/pathway/pkg/router"
	"github.com/vango-dev/pathway/pkg/urlparam"
)

// Manifest is a parsed route manifest.
type Manifest struct {
	// Basepath is prepended to every href the router builds.
	Basepath string `json:"basepath,omitempty"`

	// Search selects the search encoding: "flat" (default) or "comma".
	Search string `json:"search,omitempty"`

	Root Node `json:"root"`
}

// Node is one route in a manifest.
type Node struct {
	Path string `json:"path,omitempty"`
	ID   string `json:"id,omitempty"`

	// Data is returned by the loader. String values may reference params
	// as {{name}}.
	Data any `json:"data,omitempty"`

	// Error makes the loader fail with this message.
	Error string `json:"error,omitempty"`

	// Redirect makes the loader redirect. $params in the target are
	// filled from the match.
	Redirect string `json:"redirect,omitempty"`

	// Delay is waited before the loader settles.
	Delay Duration `json:"delay,omitempty"`

	// DependsOn lists the search keys the loader depends on. When set,
	// changes to other keys keep the previous data.
	DependsOn []string `json:"dependsOn,omitempty"`

	// RequireSearch lists search keys that must be present.
	RequireSearch []string `json:"requireSearch,omitempty"`

	Children []*Node `json:"children,omitempty"`
}

// Duration is a time.Duration that reads "250ms" strings or integer
// milliseconds.
type Duration time.Duration

// UnmarshalJSON implements json.Unmarshaler.
func (d *Duration) UnmarshalJSON(b []byte) error {
	var v any
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	switch v := v.(type) {
	case float64:
		*d = Duration(time.Duration(v) * time.Millisecond)
	case string:
		parsed, err := time.ParseDuration(v)
		if err != nil {
			return err
		}
		*d = Duration(parsed)
	case nil:
		*d = 0
	default:
		return fmt.Errorf("invalid duration %v", v)
	}
	return nil
}

// MarshalJSON implements json.Marshaler.
func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

// Parse decodes and validates a manifest.
func Parse(data []byte) (*Manifest, error) {
	var m Manifest
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&m); err != nil {
		return nil, errors.New(errors.EManifest).
			WithDetail("decode manifest").
			Wrap(err)
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return &m, nil
}

// Validate checks fields that cannot be expressed as routes. Structural
// problems such as duplicate paths are reported by router.BuildTree.
func (m *Manifest) Validate() error {
	var result *multierror.Error

	if _, err := urlparam.ParseEncoding(m.Search); err != nil {
		result = multierror.Append(result, manifestError("search", "%v", err))
	}
	if p := strings.Trim(m.Root.Path, "/"); p != "" {
		result = multierror.Append(result, manifestError("root", "root path must be empty, got %q", m.Root.Path))
	}

	var walk func(n *Node, at string)
	walk = func(n *Node, at string) {
		if n.Delay < 0 {
			result = multierror.Append(result, manifestError(at, "negative delay"))
		}
		if n.Error != "" && n.Redirect != "" {
			result = multierror.Append(result, manifestError(at, "error and redirect are exclusive"))
		}
		for i, c := range n.Children {
			if c == nil {
				result = multierror.Append(result, manifestError(at, "child %d is null", i))
				continue
			}
			walk(c, fmt.Sprintf("%s.children[%d]", at, i))
		}
	}
	walk(&m.Root, "root")

	return result.ErrorOrNil()
}

func manifestError(at, format string, args ...any) error {
	return errors.New(errors.EManifest).
		WithDetailf("%s: "+format, append([]any{at}, args...)...)
}

// SearchParser returns the parser for the manifest's search encoding.
func (m *Manifest) SearchParser() urlparam.SearchParser {
	enc, _ := urlparam.ParseEncoding(m.Search)
	return urlparam.ForEncoding(enc)
}

// Routes turns the manifest into a fresh route tree. Each call returns new
// routes, so one manifest can back several routers.
func (m *Manifest) Routes() *router.Route {
	root := router.NewRootRoute(m.Root.options())
	m.Root.addChildren(root)
	return root
}

// Tree builds the manifest's route tree.
func (m *Manifest) Tree() (*router.RouteTree, error) {
	return router.BuildTree(m.Routes())
}

func (n *Node) addChildren(parent *router.Route) {
	children := make([]*router.Route, 0, len(n.Children))
	for _, c := range n.Children {
		route := router.NewRoute(c.options())
		c.addChildren(route)
		children = append(children, route)
	}
	if len(children) > 0 {
		parent.AddChildren(children...)
	}
}

func (n *Node) options() router.RouteOptions {
	opts := router.RouteOptions{
		Path: n.Path,
		ID:   n.ID,
		Meta: map[string]any{"manifest": true},
	}
	if n.hasLoader() {
		opts.Loader = n.loader
	}
	if len(n.DependsOn) > 0 {
		keys := append([]string(nil), n.DependsOn...)
		sort.Strings(keys)
		opts.LoaderDeps = func(search url.Values) string {
			deps := url.Values{}
			for _, k := range keys {
				if v, ok := search[k]; ok {
					deps[k] = v
				}
			}
			return deps.Encode()
		}
	}
	if len(n.RequireSearch) > 0 {
		required := append([]string(nil), n.RequireSearch...)
		opts.ValidateSearch = func(search url.Values) error {
			for _, k := range required {
				if !search.Has(k) {
					return fmt.Errorf("missing search param %q", k)
				}
			}
			return nil
		}
	}
	return opts
}

func (n *Node) hasLoader() bool {
	return n.Data != nil || n.Error != "" || n.Redirect != "" || n.Delay > 0
}

func (n *Node) loader(ctx context.Context, lc router.LoaderContext) (any, error) {
	if n.Delay > 0 {
		t := time.NewTimer(time.Duration(n.Delay))
		defer t.Stop()
		select {
		case <-t.C:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	switch {
	case n.Error != "":
		return nil, fmt.Errorf("%s", expand(n.Error, lc.Params))
	case n.Redirect != "":
		return nil, router.Redirect(n.Redirect, router.WithParams(lc.Params))
	}
	return expandData(n.Data, lc.Params), nil
}

// expandData replaces {{name}} in string values, recursing into objects
// and arrays. The manifest's own values are never modified.
func expandData(v any, params map[string]string) any {
	switch v := v.(type) {
	case string:
		return expand(v, params)
	case map[string]any:
		out := make(map[string]any, len(v))
		for k, e := range v {
			out[k] = expandData(e, params)
		}
		return out
	case []any:
		out := make([]any, len(v))
		for i, e := range v {
			out[i] = expandData(e, params)
		}
		return out
	default:
		return v
	}
}

func expand(s string, params map[string]string) string {
	if len(params) == 0 || !strings.Contains(s, "{{") {
		return s
	}
	pairs := make([]string, 0, len(params)*2)
	for k, v := range params {
		pairs = append(pairs, "{{"+k+"}}", v)
	}
	return strings.NewReplacer(pairs...).Replace(s)
}
