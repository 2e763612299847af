// Package middleware provides observability for pathway routers.
//
// Both types in this package implement router.Observer and
// router.LoaderMiddleware, so the same value is passed to both options.
//
// # Prometheus Metrics
//
//	m := middleware.Prometheus(
//	    middleware.WithNamespace("shop"),
//	    middleware.WithRegistry(reg),
//	)
//	r, err := router.New(root,
//	    router.WithObserver(m),
//	    router.WithLoaderMiddleware(m),
//	)
//
// Metrics are registered once per registry. Calling Prometheus again with
// the same registry returns the existing collectors.
//
// # OpenTelemetry Tracing
//
// Every navigation becomes a span that ends when the navigation commits,
// redirects, is superseded or fails. Loader spans are children of their
// navigation's span, and the loader's context carries the loader span:
//
//	loader := func(ctx context.Context, lc router.LoaderContext) (any, error) {
//	    if span := middleware.SpanFromContext(ctx); span != nil {
//	        span.AddEvent("cache miss")
//	    }
//	    return fetch(ctx, lc.Params["id"])
//	}
package middleware
