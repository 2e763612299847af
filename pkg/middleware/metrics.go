package middleware

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/vango-dev/pathway/internal/errors"
	"github.com/vango-dev/pathway/pkg/router"
)

// MetricsConfig configures the Prometheus metrics.
type MetricsConfig struct {
	// Namespace is the metrics namespace (default: "pathway").
	Namespace string

	// Subsystem is the metrics subsystem (default: "").
	Subsystem string

	// ConstLabels are constant labels added to all metrics.
	ConstLabels prometheus.Labels

	// Buckets are the histogram buckets for durations.
	// Default: prometheus.DefBuckets
	Buckets []float64

	// Registry is the Prometheus registry to use.
	// Default: prometheus.DefaultRegisterer
	Registry prometheus.Registerer
}

// MetricsOption configures the Prometheus metrics.
type MetricsOption func(*MetricsConfig)

// WithNamespace sets the metrics namespace.
func WithNamespace(namespace string) MetricsOption {
	return func(c *MetricsConfig) {
		c.Namespace = namespace
	}
}

// WithSubsystem sets the metrics subsystem.
func WithSubsystem(subsystem string) MetricsOption {
	return func(c *MetricsConfig) {
		c.Subsystem = subsystem
	}
}

// WithConstLabels sets constant labels for all metrics.
func WithConstLabels(labels prometheus.Labels) MetricsOption {
	return func(c *MetricsConfig) {
		c.ConstLabels = labels
	}
}

// WithBuckets sets the histogram buckets.
func WithBuckets(buckets []float64) MetricsOption {
	return func(c *MetricsConfig) {
		c.Buckets = buckets
	}
}

// WithRegistry sets the Prometheus registry.
func WithRegistry(registry prometheus.Registerer) MetricsOption {
	return func(c *MetricsConfig) {
		c.Registry = registry
	}
}

func defaultMetricsConfig() MetricsConfig {
	return MetricsConfig{
		Namespace: "pathway",
		Buckets:   prometheus.DefBuckets,
		Registry:  prometheus.DefaultRegisterer,
	}
}

// Metrics records navigation and loader metrics. It is both a
// router.Observer and a router.LoaderMiddleware:
//
//	m := middleware.Prometheus(middleware.WithNamespace("shop"))
//	r, err := router.New(root,
//	    router.WithObserver(m),
//	    router.WithLoaderMiddleware(m),
//	)
type Metrics struct {
	navigationsTotal   *prometheus.CounterVec
	navigationDuration *prometheus.HistogramVec
	pendingNavigations prometheus.Gauge
	redirectsTotal     prometheus.Counter
	loadersTotal       *prometheus.CounterVec
	loaderDuration     *prometheus.HistogramVec
	loaderErrors       *prometheus.CounterVec
}

// Metrics are registered once per registry and configuration; a second
// Prometheus call with the same registry and options returns the same
// collectors. Options that differ only in buckets or const label values
// still collide on metric names, and registration panics as promauto does.
var (
	registeredMu sync.Mutex
	registered   = map[metricsKey]*Metrics{}
)

type metricsKey struct {
	registry prometheus.Registerer
	config   string
}

func (c MetricsConfig) key() metricsKey {
	names := make([]string, 0, len(c.ConstLabels))
	for name := range c.ConstLabels {
		names = append(names, name)
	}
	sort.Strings(names)

	var b strings.Builder
	fmt.Fprintf(&b, "%s|%s|", c.Namespace, c.Subsystem)
	for _, name := range names {
		fmt.Fprintf(&b, "%s=%q,", name, c.ConstLabels[name])
	}
	fmt.Fprintf(&b, "|%v", c.Buckets)
	return metricsKey{registry: c.Registry, config: b.String()}
}

func newMetrics(config MetricsConfig) *Metrics {
	factory := promauto.With(config.Registry)

	return &Metrics{
		navigationsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "navigations_total",
			Help:        "Total number of finished navigations by outcome",
			ConstLabels: config.ConstLabels,
		}, []string{"outcome"}),

		navigationDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "navigation_duration_seconds",
			Help:        "Time from navigation start to its outcome in seconds",
			ConstLabels: config.ConstLabels,
			Buckets:     config.Buckets,
		}, []string{"outcome"}),

		pendingNavigations: factory.NewGauge(prometheus.GaugeOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "pending_navigations",
			Help:        "Navigations started and not yet finished",
			ConstLabels: config.ConstLabels,
		}),

		redirectsTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "redirects_total",
			Help:        "Total number of navigations ended by a redirect",
			ConstLabels: config.ConstLabels,
		}),

		loadersTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "loaders_total",
			Help:        "Total number of loader invocations by route and status",
			ConstLabels: config.ConstLabels,
		}, []string{"route", "status"}),

		loaderDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "loader_duration_seconds",
			Help:        "Loader duration in seconds",
			ConstLabels: config.ConstLabels,
			Buckets:     config.Buckets,
		}, []string{"route"}),

		loaderErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "loader_errors_total",
			Help:        "Total number of loader errors by route and error type",
			ConstLabels: config.ConstLabels,
		}, []string{"route", "error_type"}),
	}
}

// Prometheus returns the metrics for the configured registry and options,
// creating and registering them on first use.
//
// Metrics collected:
//   - pathway_navigations_total: navigations by outcome
//   - pathway_navigation_duration_seconds: navigation duration by outcome
//   - pathway_pending_navigations: navigations in flight
//   - pathway_redirects_total: navigations that redirected
//   - pathway_loaders_total: loader invocations by route and status
//   - pathway_loader_duration_seconds: loader duration by route
//   - pathway_loader_errors_total: loader errors by route and error type
func Prometheus(opts ...MetricsOption) *Metrics {
	config := defaultMetricsConfig()
	for _, opt := range opts {
		opt(&config)
	}

	registeredMu.Lock()
	defer registeredMu.Unlock()
	key := config.key()
	if m, ok := registered[key]; ok {
		return m
	}
	m := newMetrics(config)
	registered[key] = m
	return m
}

// NavigationStarted implements router.Observer.
func (m *Metrics) NavigationStarted(router.NavigationEvent) {
	m.pendingNavigations.Inc()
}

// NavigationFinished implements router.Observer.
func (m *Metrics) NavigationFinished(ev router.NavigationEvent) {
	m.pendingNavigations.Dec()
	outcome := ev.Outcome.String()
	m.navigationsTotal.WithLabelValues(outcome).Inc()
	m.navigationDuration.WithLabelValues(outcome).Observe(ev.Duration.Seconds())
	if ev.Outcome == router.OutcomeRedirected {
		m.redirectsTotal.Inc()
	}
}

// HandleLoader implements router.LoaderMiddleware.
func (m *Metrics) HandleLoader(ctx context.Context, info router.LoaderInfo, next router.LoaderNext) (any, error) {
	start := time.Now()
	data, err := next(ctx)
	m.loaderDuration.WithLabelValues(info.RouteID).Observe(time.Since(start).Seconds())

	status := "success"
	switch {
	case err == nil:
	case errors.HasCode(err, errors.ERedirect):
		status = "redirect"
	default:
		status = "error"
		m.loaderErrors.WithLabelValues(info.RouteID, categorizeError(err)).Inc()
	}
	m.loadersTotal.WithLabelValues(info.RouteID, status).Inc()
	return data, err
}

// categorizeError maps an error to a small fixed set of label values so
// error messages never become label values.
func categorizeError(err error) string {
	switch {
	case errors.Is(err, context.Canceled):
		return "canceled"
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.HasCode(err, errors.ENotFound):
		return "not_found"
	case errors.HasCode(err, errors.EInvalidSearch):
		return "validation"
	}

	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "timeout"):
		return "timeout"
	case strings.Contains(msg, "not found"):
		return "not_found"
	case strings.Contains(msg, "unauthorized"):
		return "unauthorized"
	case strings.Contains(msg, "forbidden"):
		return "forbidden"
	case strings.Contains(msg, "panic"):
		return "panic"
	default:
		return "internal"
	}
}
