package router

import (
	"net/url"
	"strings"

	"github.com/vango-dev/pathway/internal/errors"
	"github.com/vango-dev/pathway/pkg/routepath"
	"github.com/vango-dev/pathway/pkg/urlparam"
)

// BuildLocation resolves to into a canonical Location without navigating.
// Relative targets resolve against to.From, or the deepest committed
// match. Placeholders are filled from to.Params, or the deepest committed
// match's params when to.Params is nil.
func (r *Router) BuildLocation(to To) (Location, error) {
	from := "/"
	var params map[string]string
	if leaf := r.store.Get().Leaf(); leaf != nil {
		from = leaf.Pathname
		params = leaf.Params
	}
	return r.buildLocation(to, from, params)
}

// Href is BuildLocation returning only the href.
func (r *Router) Href(to string, opts ...NavigateOption) (string, error) {
	loc, err := r.BuildLocation(NewTo(to, opts...))
	if err != nil {
		return "", err
	}
	return loc.Href, nil
}

func (r *Router) buildLocation(to To, defaultFrom string, defaultParams map[string]string) (Location, error) {
	from := to.From
	if from == "" {
		from = defaultFrom
	}
	params := to.Params
	if params == nil {
		params = defaultParams
	}

	path, query, hash := routepath.SplitHref(to.To)
	resolved, err := routepath.Resolve(from, path)
	if err != nil {
		return Location{}, errors.New(errors.EInvalidPath).
			WithDetailf("cannot resolve %q from %q", to.To, from).
			Wrap(err)
	}

	pathname, err := InterpolatePath(resolved, params)
	if err != nil {
		return Location{}, err
	}

	search := to.Search
	if search == nil {
		search, err = r.search.Parse(query)
		if err != nil {
			return Location{}, errors.New(errors.EInvalidSearch).WithDetailf("%q", query).Wrap(err)
		}
	} else {
		search = urlparam.Clone(search)
	}
	if to.Hash != "" {
		hash = to.Hash
	}

	return r.newLocation(pathname, search, hash, to.State), nil
}

// InterpolatePath fills the ":name"/"$name" placeholders and splats of a
// path pattern. Values are escaped so they stay within their segment;
// splat values keep their "/" separators. A missing param is
// EMissingParam; a missing splat becomes empty.
func InterpolatePath(pattern string, params map[string]string) (string, error) {
	segs := routepath.SplitSegments(pattern)
	out := make([]string, 0, len(segs))

	for i, s := range segs {
		seg := parseSegment(s)
		switch seg.kind {
		case segLiteral:
			// Literals are written canonically: decoded, then escaped.
			if value, err := routepath.DecodeSegment(s, false); err == nil {
				s = routepath.EncodeSegment(value)
			}
			out = append(out, s)

		case segParam:
			value, ok := params[seg.name]
			if !ok || value == "" {
				return "", errors.New(errors.EMissingParam).
					WithDetailf("param %q is required by %q", seg.name, pattern).
					WithSuggestion("pass the param with WithParams or navigate from a match that has it")
			}
			if err := ValidateParam(value, seg.paramType); err != nil {
				return "", errors.New(errors.EInvalidPath).WithDetailf("param %q", seg.name).Wrap(err)
			}
			out = append(out, routepath.EncodeSegment(value))

		case segSplat:
			if i != len(segs)-1 {
				return "", errors.New(errors.EInvalidPath).
					WithDetailf("splat %q must be the last segment of %q", s, pattern)
			}
			if value := strings.Trim(params[seg.name], "/"); value != "" {
				out = append(out, routepath.EncodeSplat(value))
			}
		}
	}

	if len(out) == 0 {
		return "/", nil
	}
	return routepath.JoinSegments(out), nil
}

// ParseSearch parses a raw search string with the router's parser.
func (r *Router) ParseSearch(raw string) (url.Values, error) {
	return r.search.Parse(raw)
}
