package axnext

import (
	"strconv"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// MetricsCollector exports the request lifecycle as Prometheus metrics. It
// implements Observer and every optional extension, so it can be passed to
// WithObserver directly or through WithMetrics. It is safe for concurrent use.
type MetricsCollector struct {
	requestsTotal    *prometheus.CounterVec
	requestDuration  *prometheus.HistogramVec
	requestsInFlight *prometheus.GaugeVec

	errorsTotal *prometheus.CounterVec

	cacheHits   *prometheus.CounterVec
	cacheMisses *prometheus.CounterVec

	supersededTotal *prometheus.CounterVec

	tokenRefreshTotal    *prometheus.CounterVec
	tokenRefreshDuration prometheus.Histogram

	gatherer prometheus.Gatherer
}

var (
	_ Observer             = (*MetricsCollector)(nil)
	_ CacheObserver        = (*MetricsCollector)(nil)
	_ CancellationObserver = (*MetricsCollector)(nil)
	_ RefreshObserver      = (*MetricsCollector)(nil)
)

// NewMetricsCollector creates a collector on its own registry.
func NewMetricsCollector() *MetricsCollector {
	return NewMetricsCollectorWithRegisterer(prometheus.NewRegistry())
}

// NewMetricsCollectorWithRegisterer creates a collector on registerer. If the
// registerer is not also a Gatherer, Gatherer returns the default gatherer.
func NewMetricsCollectorWithRegisterer(registerer prometheus.Registerer) *MetricsCollector {
	factory := promauto.With(registerer)
	mc := &MetricsCollector{
		requestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "axnext_requests_total",
				Help: "Total number of exchanges dispatched or served from cache",
			},
			[]string{"method", "attempt"},
		),
		requestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "axnext_request_duration_seconds",
				Help:    "Duration of exchanges in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "attempt"},
		),
		requestsInFlight: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "axnext_requests_in_flight",
				Help: "Number of exchanges currently in flight",
			},
			[]string{"method"},
		),
		errorsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "axnext_errors_total",
				Help: "Total number of failures reported to the caller",
			},
			[]string{"type"},
		),
		cacheHits: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "axnext_cache_hits_total",
				Help: "Total number of response cache hits",
			},
			[]string{"method"},
		),
		cacheMisses: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "axnext_cache_misses_total",
				Help: "Total number of response cache misses",
			},
			[]string{"method"},
		),
		supersededTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "axnext_superseded_total",
				Help: "Total number of pending requests canceled by a newer duplicate",
			},
			[]string{"method"},
		),
		tokenRefreshTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "axnext_token_refresh_total",
				Help: "Total number of token refresh exchanges",
			},
			[]string{"result"},
		),
		tokenRefreshDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "axnext_token_refresh_duration_seconds",
				Help:    "Duration of token refresh exchanges in seconds",
				Buckets: prometheus.DefBuckets,
			},
		),
	}

	registerer.MustRegister(buildInfoGauge())

	if g, ok := registerer.(prometheus.Gatherer); ok {
		mc.gatherer = g
	} else {
		mc.gatherer = prometheus.DefaultGatherer
	}
	return mc
}

// OnDuration records request count and duration.
func (mc *MetricsCollector) OnDuration(req RequestDescriptor, d time.Duration) {
	if mc == nil {
		return
	}

	attempt := strconv.Itoa(req.Attempt)
	mc.requestsTotal.WithLabelValues(req.Method, attempt).Inc()
	mc.requestDuration.WithLabelValues(req.Method, attempt).Observe(d.Seconds())
}

// OnUnhandledError increments the error counter by kind.
func (mc *MetricsCollector) OnUnhandledError(err error) {
	if mc == nil || err == nil {
		return
	}

	errorType := "Unknown"
	var ce *ClientError
	if errors.As(err, &ce) {
		errorType = ce.Type
	}
	mc.errorsTotal.WithLabelValues(errorType).Inc()
}

// OnCacheLookup increments the hit or miss counter.
func (mc *MetricsCollector) OnCacheLookup(req RequestDescriptor, hit bool) {
	if mc == nil {
		return
	}

	if hit {
		mc.cacheHits.WithLabelValues(req.Method).Inc()
	} else {
		mc.cacheMisses.WithLabelValues(req.Method).Inc()
	}
}

// OnSuperseded increments the superseded counter.
func (mc *MetricsCollector) OnSuperseded(req RequestDescriptor) {
	if mc == nil {
		return
	}

	mc.supersededTotal.WithLabelValues(req.Method).Inc()
}

// OnTokenRefresh records one refresh exchange.
func (mc *MetricsCollector) OnTokenRefresh(success bool, d time.Duration) {
	if mc == nil {
		return
	}

	result := "success"
	if !success {
		result = "failure"
	}
	mc.tokenRefreshTotal.WithLabelValues(result).Inc()
	mc.tokenRefreshDuration.Observe(d.Seconds())
}

// RecordRequestStart increments the in-flight gauge.
func (mc *MetricsCollector) RecordRequestStart(method string) {
	if mc == nil {
		return
	}

	mc.requestsInFlight.WithLabelValues(method).Inc()
}

// RecordRequestEnd decrements the in-flight gauge.
func (mc *MetricsCollector) RecordRequestEnd(method string) {
	if mc == nil {
		return
	}

	mc.requestsInFlight.WithLabelValues(method).Dec()
}

// Gatherer exposes the registry the collector was registered on.
func (mc *MetricsCollector) Gatherer() prometheus.Gatherer {
	return mc.gatherer
}
