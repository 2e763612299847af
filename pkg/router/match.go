package router

import (
	"github.com/vango-dev/pathway/internal/errors"
	"github.com/vango-dev/pathway/pkg/routepath"
)

// RouteMatch is one level of a matched chain: the route, the params
// accumulated down to it and the pathname it consumed.
type RouteMatch struct {
	Route    *Route
	Params   map[string]string
	Pathname string
}

// Match returns the chain of routes matching pathname, root first.
//
// Siblings are tried literal, param, pathless, splat, then in declaration
// order. A failing branch backtracks. When no branch consumes the whole
// path the deepest partial chain is returned together with an ENotFound
// error; the chain always holds at least the root. An invalid pathname
// returns EInvalidPath and no chain.
func (t *RouteTree) Match(pathname string) ([]RouteMatch, error) {
	res, err := routepath.CanonicalizePath(pathname)
	if err != nil {
		return nil, errors.New(errors.EInvalidPath).WithDetailf("%q", pathname).Wrap(err)
	}

	segs := routepath.SplitSegments(res.Path)
	rootMatch := RouteMatch{Route: t.root, Params: map[string]string{}, Pathname: "/"}

	chain, rest := matchChildren(t.root, segs, nil, rootMatch.Params)
	out := append([]RouteMatch{rootMatch}, chain...)
	if len(rest) > 0 {
		return out, errors.New(errors.ENotFound).
			WithRoute(out[len(out)-1].Route.id).
			WithDetailf("no route matches %q", res.Path)
	}
	return out, nil
}

// matchChildren matches segs against parent's children. consumed holds the
// raw segments matched above. It returns the best chain below parent and
// the segments it left unconsumed; an empty rest means a full match.
func matchChildren(parent *Route, segs, consumed []string, params map[string]string) ([]RouteMatch, []string) {
	var best []RouteMatch
	bestRest := segs

	for _, child := range parent.ordered {
		var (
			n           int
			childParams = params
		)

		switch child.kind {
		case kindIndex:
			if len(segs) != 0 {
				continue
			}
			return []RouteMatch{{Route: child, Params: params, Pathname: pathnameOf(consumed)}}, nil

		case kindPathless:
			// consumes nothing; only counts if something below it matches
		default:
			var ok bool
			n, childParams, ok = matchPattern(child.pattern, segs, params)
			if !ok {
				continue
			}
		}

		here := append(append([]string(nil), consumed...), segs[:n]...)
		step := RouteMatch{Route: child, Params: childParams, Pathname: pathnameOf(here)}
		sub, rest := matchChildren(child, segs[n:], here, childParams)

		if child.kind == kindPathless && len(sub) == 0 {
			continue
		}

		chain := append([]RouteMatch{step}, sub...)
		if len(rest) == 0 {
			return chain, nil
		}
		if len(rest) < len(bestRest) {
			best, bestRest = chain, rest
		}
	}

	return best, bestRest
}

// matchPattern matches the leading segments of segs against pattern. It
// returns how many segments were consumed and a new params map holding
// params plus the values captured here.
func matchPattern(pattern []segment, segs []string, params map[string]string) (int, map[string]string, bool) {
	var captured map[string]string
	capture := func(name, value string) {
		if captured == nil {
			captured = make(map[string]string, len(params)+1)
			for k, v := range params {
				captured[k] = v
			}
		}
		captured[name] = value
	}

	for i, seg := range pattern {
		switch seg.kind {
		case segSplat:
			raw := routepath.JoinSegments(segs[i:])[1:]
			value, err := routepath.DecodeSegment(raw, true)
			if err != nil {
				return 0, nil, false
			}
			capture(seg.name, value)
			return len(segs), withParams(captured, params), true

		case segLiteral:
			if i >= len(segs) || !literalMatches(seg.value, segs[i]) {
				return 0, nil, false
			}

		case segParam:
			if i >= len(segs) {
				return 0, nil, false
			}
			value, err := routepath.DecodeSegment(segs[i], false)
			if err != nil || value == "" {
				return 0, nil, false
			}
			if err := ValidateParam(value, seg.paramType); err != nil {
				return 0, nil, false
			}
			capture(seg.name, value)
		}
	}
	return len(pattern), withParams(captured, params), true
}

// literalMatches compares a raw path segment with a literal route segment
// after percent-decoding it, so "/caf%C3%A9" reaches a "café" route.
func literalMatches(literal, raw string) bool {
	if raw == literal {
		return true
	}
	value, err := routepath.DecodeSegment(raw, false)
	return err == nil && value == literal
}

func withParams(captured, params map[string]string) map[string]string {
	if captured != nil {
		return captured
	}
	return params
}

func pathnameOf(segs []string) string {
	if len(segs) == 0 {
		return "/"
	}
	return routepath.JoinSegments(segs)
}
