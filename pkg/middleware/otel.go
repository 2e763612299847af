package middleware

import (
	"context"
	"fmt"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/vango-dev/pathway/internal/errors"
	"github.com/vango-dev/pathway/pkg/router"
)

// Default tracer name for pathway routers.
const defaultTracerName = "pathway"

// OTelConfig configures the OpenTelemetry tracer.
type OTelConfig struct {
	// TracerName is the name of the tracer (default: "pathway").
	TracerName string

	// TracerProvider overrides the global provider.
	TracerProvider trace.TracerProvider

	// IncludeParams records route params as span attributes.
	// Params may carry user data, so this is disabled by default.
	IncludeParams bool

	// Filter determines which loaders to trace.
	// If nil, all loaders are traced.
	Filter func(info router.LoaderInfo) bool

	// AttributeExtractor adds custom attributes to loader spans.
	AttributeExtractor func(info router.LoaderInfo) []attribute.KeyValue
}

// OTelOption configures the OpenTelemetry tracer.
type OTelOption func(*OTelConfig)

// WithTracerName sets the tracer name.
func WithTracerName(name string) OTelOption {
	return func(c *OTelConfig) {
		c.TracerName = name
	}
}

// WithTracerProvider sets the tracer provider.
func WithTracerProvider(tp trace.TracerProvider) OTelOption {
	return func(c *OTelConfig) {
		c.TracerProvider = tp
	}
}

// WithIncludeParams enables route params on navigation spans.
func WithIncludeParams(include bool) OTelOption {
	return func(c *OTelConfig) {
		c.IncludeParams = include
	}
}

// WithLoaderFilter sets a filter function for loaders.
func WithLoaderFilter(filter func(info router.LoaderInfo) bool) OTelOption {
	return func(c *OTelConfig) {
		c.Filter = filter
	}
}

// WithAttributeExtractor sets a custom attribute extractor.
func WithAttributeExtractor(extractor func(info router.LoaderInfo) []attribute.KeyValue) OTelOption {
	return func(c *OTelConfig) {
		c.AttributeExtractor = extractor
	}
}

func defaultOTelConfig() OTelConfig {
	return OTelConfig{
		TracerName: defaultTracerName,
	}
}

// Tracer traces navigations and loaders. Each navigation gets a span that
// lives from start to outcome, and each loader call gets a child span of
// its navigation's span.
//
//	tr := middleware.OpenTelemetry(middleware.WithTracerName("shop"))
//	r, err := router.New(root,
//	    router.WithObserver(tr),
//	    router.WithLoaderMiddleware(tr),
//	)
type Tracer struct {
	config OTelConfig
	tracer trace.Tracer

	mu    sync.Mutex
	spans map[uint64]trace.Span
}

// OpenTelemetry returns a tracer that is both a router.Observer and a
// router.LoaderMiddleware.
//
// Span attributes:
//   - pathway.token: navigation token
//   - pathway.href: target location
//   - pathway.outcome: how the navigation ended
//   - pathway.route_id: route of a loader span
//   - pathway.pathname: matched pathname of a loader span
//   - pathway.cause: enter, stay or reload
func OpenTelemetry(opts ...OTelOption) *Tracer {
	config := defaultOTelConfig()
	for _, opt := range opts {
		opt(&config)
	}

	var tracer trace.Tracer
	if config.TracerProvider != nil {
		tracer = config.TracerProvider.Tracer(config.TracerName)
	} else {
		tracer = otel.Tracer(config.TracerName)
	}

	return &Tracer{
		config: config,
		tracer: tracer,
		spans:  make(map[uint64]trace.Span),
	}
}

// NavigationStarted implements router.Observer.
func (t *Tracer) NavigationStarted(ev router.NavigationEvent) {
	attrs := []attribute.KeyValue{
		attribute.Int64("pathway.token", int64(ev.Token)),
		attribute.String("pathway.href", ev.Location.Href),
		attribute.Int("pathway.redirects", ev.Redirects),
	}
	_, span := t.tracer.Start(context.Background(), "pathway.navigate "+ev.Location.Pathname,
		trace.WithTimestamp(ev.Started),
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(attrs...),
	)

	t.mu.Lock()
	t.spans[ev.Token] = span
	t.mu.Unlock()
}

// NavigationFinished implements router.Observer.
func (t *Tracer) NavigationFinished(ev router.NavigationEvent) {
	t.mu.Lock()
	span, ok := t.spans[ev.Token]
	delete(t.spans, ev.Token)
	t.mu.Unlock()
	if !ok {
		return
	}

	span.SetAttributes(attribute.String("pathway.outcome", ev.Outcome.String()))
	if ev.Outcome == router.OutcomeFailed && ev.Err != nil {
		span.RecordError(ev.Err)
		span.SetStatus(codes.Error, ev.Err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End(trace.WithTimestamp(ev.Started.Add(ev.Duration)))
}

// HandleLoader implements router.LoaderMiddleware.
func (t *Tracer) HandleLoader(ctx context.Context, info router.LoaderInfo, next router.LoaderNext) (any, error) {
	if t.config.Filter != nil && !t.config.Filter(info) {
		return next(ctx)
	}

	t.mu.Lock()
	parent, ok := t.spans[info.Token]
	t.mu.Unlock()
	if ok {
		ctx = trace.ContextWithSpan(ctx, parent)
	}

	attrs := []attribute.KeyValue{
		attribute.String("pathway.route_id", info.RouteID),
		attribute.String("pathway.pathname", info.Pathname),
		attribute.String("pathway.cause", info.Cause.String()),
		attribute.Int64("pathway.token", int64(info.Token)),
	}
	if t.config.IncludeParams {
		for k, v := range info.Params {
			attrs = append(attrs, attribute.String("pathway.param."+k, v))
		}
	}
	if t.config.AttributeExtractor != nil {
		attrs = append(attrs, t.config.AttributeExtractor(info)...)
	}

	ctx, span := t.tracer.Start(ctx, formatSpanName(info),
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(attrs...),
	)
	defer span.End()

	data, err := next(ctx)
	switch {
	case err == nil:
		span.SetStatus(codes.Ok, "")
	case errors.HasCode(err, errors.ERedirect):
		span.SetAttributes(attribute.Bool("pathway.redirect", true))
		span.SetStatus(codes.Ok, "")
	default:
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		span.SetAttributes(attribute.String("pathway.error_type", categorizeError(err)))
	}
	return data, err
}

// SpanFromContext returns the loader span carried by ctx, or nil when the
// loader is not traced.
func SpanFromContext(ctx context.Context) trace.Span {
	span := trace.SpanFromContext(ctx)
	if !span.SpanContext().IsValid() {
		return nil
	}
	return span
}

func formatSpanName(info router.LoaderInfo) string {
	return fmt.Sprintf("pathway.loader %s", info.RouteID)
}
