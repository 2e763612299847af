package middleware

import (
	"context"
	"strings"
	"testing"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/vango-dev/pathway/pkg/router"
)

func newTracer(t *testing.T, opts ...OTelOption) (*Tracer, *tracetest.SpanRecorder) {
	t.Helper()
	sr := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })
	return OpenTelemetry(append([]OTelOption{WithTracerProvider(tp)}, opts...)...), sr
}

func spanNamed(spans []sdktrace.ReadOnlySpan, name string) sdktrace.ReadOnlySpan {
	for _, s := range spans {
		if s.Name() == name {
			return s
		}
	}
	return nil
}

func attr(s sdktrace.ReadOnlySpan, key string) (attribute.Value, bool) {
	for _, kv := range s.Attributes() {
		if string(kv.Key) == key {
			return kv.Value, true
		}
	}
	return attribute.Value{}, false
}

func TestOpenTelemetryLoaderSpans(t *testing.T) {
	tr, sr := newTracer(t)
	r := newRouter(t, router.WithObserver(tr), router.WithLoaderMiddleware(tr))

	if err := r.Navigate(context.Background(), "/ok"); err != nil {
		t.Fatal(err)
	}

	spans := sr.Ended()
	nav := spanNamed(spans, "pathway.navigate /ok")
	if nav == nil {
		t.Fatalf("no navigation span in %d spans", len(spans))
	}
	if v, _ := attr(nav, "pathway.outcome"); v.AsString() != "committed" {
		t.Errorf("outcome = %q", v.AsString())
	}
	if nav.Status().Code != codes.Ok {
		t.Errorf("navigation status = %v", nav.Status())
	}

	loader := spanNamed(spans, "pathway.loader /ok")
	if loader == nil {
		t.Fatal("no loader span")
	}
	if loader.Parent().SpanID() != nav.SpanContext().SpanID() {
		t.Error("loader span is not a child of the navigation span")
	}
	if v, _ := attr(loader, "pathway.route_id"); v.AsString() != "/ok" {
		t.Errorf("route_id = %q", v.AsString())
	}
	if v, _ := attr(loader, "pathway.cause"); v.AsString() != "enter" {
		t.Errorf("cause = %q", v.AsString())
	}
}

func TestOpenTelemetryLoaderError(t *testing.T) {
	tr, sr := newTracer(t)
	r := newRouter(t, router.WithObserver(tr), router.WithLoaderMiddleware(tr))

	if err := r.Navigate(context.Background(), "/bad"); err != nil {
		t.Fatal(err)
	}

	loader := spanNamed(sr.Ended(), "pathway.loader /bad")
	if loader == nil {
		t.Fatal("no loader span")
	}
	if loader.Status().Code != codes.Error || !strings.Contains(loader.Status().Description, "boom") {
		t.Errorf("status = %+v", loader.Status())
	}
	if len(loader.Events()) == 0 {
		t.Error("error was not recorded as an event")
	}
}

func TestOpenTelemetryRedirect(t *testing.T) {
	tr, sr := newTracer(t)
	r := newRouter(t, router.WithObserver(tr), router.WithLoaderMiddleware(tr))

	if err := r.Navigate(context.Background(), "/go"); err != nil {
		t.Fatal(err)
	}

	spans := sr.Ended()
	first := spanNamed(spans, "pathway.navigate /go")
	if first == nil {
		t.Fatal("no span for the redirecting navigation")
	}
	if v, _ := attr(first, "pathway.outcome"); v.AsString() != "redirected" {
		t.Errorf("outcome = %q", v.AsString())
	}
	loader := spanNamed(spans, "pathway.loader /go")
	if v, ok := attr(loader, "pathway.redirect"); !ok || !v.AsBool() {
		t.Error("loader span not marked as redirect")
	}
	target := spanNamed(spans, "pathway.navigate /ok")
	if target == nil {
		t.Fatal("no span for the redirect target")
	}
	if v, _ := attr(target, "pathway.redirects"); v.AsInt64() != 1 {
		t.Errorf("redirects = %d", v.AsInt64())
	}
}

func TestOpenTelemetryFilterAndAttributes(t *testing.T) {
	tr, sr := newTracer(t,
		WithLoaderFilter(func(info router.LoaderInfo) bool { return info.RouteID != "/bad" }),
		WithAttributeExtractor(func(info router.LoaderInfo) []attribute.KeyValue {
			return []attribute.KeyValue{attribute.String("tenant", "acme")}
		}),
	)
	r := newRouter(t, router.WithObserver(tr), router.WithLoaderMiddleware(tr))

	ctx := context.Background()
	for _, to := range []string{"/ok", "/bad"} {
		if err := r.Navigate(ctx, to); err != nil {
			t.Fatal(err)
		}
	}

	spans := sr.Ended()
	if spanNamed(spans, "pathway.loader /bad") != nil {
		t.Error("filtered loader was traced")
	}
	loader := spanNamed(spans, "pathway.loader /ok")
	if loader == nil {
		t.Fatal("no loader span")
	}
	if v, _ := attr(loader, "tenant"); v.AsString() != "acme" {
		t.Errorf("tenant = %q", v.AsString())
	}
}

func TestSpanFromContext(t *testing.T) {
	if SpanFromContext(context.Background()) != nil {
		t.Error("background context has a span")
	}

	tr, _ := newTracer(t)
	var seen bool
	next := func(ctx context.Context) (any, error) {
		seen = SpanFromContext(ctx) != nil
		return nil, nil
	}
	if _, err := tr.HandleLoader(context.Background(), router.LoaderInfo{RouteID: "/x"}, next); err != nil {
		t.Fatal(err)
	}
	if !seen {
		t.Error("loader context carries no span")
	}
}
