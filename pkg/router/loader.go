package router

import (
	"context"
	"net/url"
	"runtime/debug"

	"github.com/vango-dev/pathway/internal/errors"
)

// LoadCause tells a loader why it is running.
type LoadCause int

const (
	// CauseEnter means the route was not part of the previous location.
	CauseEnter LoadCause = iota
	// CauseStay means the route stays matched with new params or search.
	CauseStay
	// CauseReload means the navigation asked for fresh data.
	CauseReload
)

// String returns the cause name.
func (c LoadCause) String() string {
	switch c {
	case CauseStay:
		return "stay"
	case CauseReload:
		return "reload"
	default:
		return "enter"
	}
}

// LoaderContext is the argument passed to every loader.
type LoaderContext struct {
	RouteID string
	Params  map[string]string
	Search  url.Values

	// ParentMatchPromise settles with the parent match's loader result.
	// It is nil for the root match.
	ParentMatchPromise *Promise

	// Context is the accumulated context of the match, including values
	// returned by the route's own ContextFunc.
	Context map[string]any

	Location Location
	Cause    LoadCause
}

// DecodeSearch decodes the match's search params into target.
func (lc LoaderContext) DecodeSearch(target any) error {
	return DecodeSearch(lc.Search, target)
}

// LoaderInfo describes a loader invocation to middleware.
type LoaderInfo struct {
	RouteID  string
	Pathname string
	Params   map[string]string
	Token    uint64
	Cause    LoadCause
}

// LoaderNext runs the rest of the loader chain.
type LoaderNext func(ctx context.Context) (any, error)

// LoaderMiddleware wraps every loader invocation.
type LoaderMiddleware interface {
	HandleLoader(ctx context.Context, info LoaderInfo, next LoaderNext) (any, error)
}

// LoaderMiddlewareFunc adapts a function to LoaderMiddleware.
type LoaderMiddlewareFunc func(ctx context.Context, info LoaderInfo, next LoaderNext) (any, error)

// HandleLoader implements LoaderMiddleware.
func (f LoaderMiddlewareFunc) HandleLoader(ctx context.Context, info LoaderInfo, next LoaderNext) (any, error) {
	return f(ctx, info, next)
}

// ChainLoaderMiddleware combines middleware; the first one runs outermost.
func ChainLoaderMiddleware(mw ...LoaderMiddleware) LoaderMiddleware {
	return LoaderMiddlewareFunc(func(ctx context.Context, info LoaderInfo, next LoaderNext) (any, error) {
		return composeLoader(mw, info, next)(ctx)
	})
}

// composeLoader builds the call chain from the end to the start.
func composeLoader(mw []LoaderMiddleware, info LoaderInfo, final LoaderNext) LoaderNext {
	chain := final
	for i := len(mw) - 1; i >= 0; i-- {
		m := mw[i]
		next := chain
		chain = func(ctx context.Context) (any, error) {
			return m.HandleLoader(ctx, info, next)
		}
	}
	return chain
}

// callLoader runs the route's loader behind the middleware chain. A panic
// becomes an ELoaderError; a redirect is returned unwrapped.
func callLoader(ctx context.Context, route *Route, lc LoaderContext, info LoaderInfo, mw []LoaderMiddleware) (data any, err error) {
	final := func(ctx context.Context) (v any, err error) {
		defer func() {
			if p := recover(); p != nil {
				err = errors.New(errors.ELoaderError).
					WithRoute(route.id).
					WithDetailf("loader panicked: %v\n%s", p, debug.Stack())
			}
		}()
		return route.opts.Loader(ctx, lc)
	}

	data, err = composeLoader(mw, info, final)(ctx)
	if err == nil {
		return data, nil
	}
	if _, ok := AsRedirect(err); ok {
		return nil, err
	}
	if errors.HasCode(err, errors.ELoaderError) {
		return nil, err
	}
	return nil, errors.New(errors.ELoaderError).WithRoute(route.id).Wrap(err)
}

