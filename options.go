package axnext

import (
	"net/http"
	"time"

	"go.opentelemetry.io/otel/trace"
)

// Option configures a Client.
type Option func(*Client)

// RequestOption configures a single call.
type RequestOption func(*Request)

// WithBaseAddress sets the prefix joined to relative request URLs
func WithBaseAddress(addr string) Option {
	return func(c *Client) {
		c.overrides.BaseAddress = &addr
	}
}

// WithTimeout sets the per-exchange timeout. Zero disables it.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.overrides.Timeout = &d
	}
}

// WithHeaders replaces the default headers sent with every request
func WithHeaders(headers map[string]string) Option {
	return func(c *Client) {
		c.overrides.Headers = headers
	}
}

// WithCache enables the response cache with the given TTL
func WithCache(ttl time.Duration) Option {
	return func(c *Client) {
		enabled := true
		c.overrides.CacheEnabled = &enabled
		c.overrides.CacheTTL = &ttl
	}
}

// WithoutCache disables the response cache
func WithoutCache() Option {
	return func(c *Client) {
		disabled := false
		c.overrides.CacheEnabled = &disabled
	}
}

// WithCacheSweepInterval sets how often expired entries are reclaimed
func WithCacheSweepInterval(d time.Duration) Option {
	return func(c *Client) {
		c.overrides.CacheSweepInterval = &d
	}
}

// WithCacheStore sets the backing store of the response cache
func WithCacheStore(store CacheStore) Option {
	return func(c *Client) {
		c.cacheStore = store
	}
}

// WithRetry enables the post-refresh retry after delay
func WithRetry(delay time.Duration) Option {
	return func(c *Client) {
		enabled := true
		c.overrides.RetryEnabled = &enabled
		c.overrides.RetryDelay = &delay
	}
}

// WithoutRetry disables the post-refresh retry. A 401 still refreshes the
// token.
func WithoutRetry() Option {
	return func(c *Client) {
		disabled := false
		c.overrides.RetryEnabled = &disabled
	}
}

// WithErrorHandling toggles 401 recovery and observer error reporting
func WithErrorHandling(enabled bool) Option {
	return func(c *Client) {
		c.overrides.ErrorHandlingEnabled = &enabled
	}
}

// WithPerformanceMonitoring toggles duration reporting
func WithPerformanceMonitoring(enabled bool) Option {
	return func(c *Client) {
		c.overrides.PerformanceMonitoringEnabled = &enabled
	}
}

// WithCancellation toggles superseding of duplicate in-flight reads
func WithCancellation(enabled bool) Option {
	return func(c *Client) {
		c.overrides.CancellationEnabled = &enabled
	}
}

// WithTokenRefresh enables bearer tokens refreshed at endpoint. A token
// within threshold of its expiry is refreshed on next use.
func WithTokenRefresh(endpoint string, threshold time.Duration) Option {
	return func(c *Client) {
		enabled := true
		c.overrides.TokenRefreshEnabled = &enabled
		c.overrides.RefreshEndpoint = &endpoint
		c.overrides.TokenRefreshThreshold = &threshold
	}
}

// WithoutTokenRefresh disables authorization headers and 401 recovery
func WithoutTokenRefresh() Option {
	return func(c *Client) {
		disabled := false
		c.overrides.TokenRefreshEnabled = &disabled
	}
}

// WithOverrides layers o over the overrides collected so far
func WithOverrides(o Overrides) Option {
	return func(c *Client) {
		c.overrides = c.overrides.Merge(o)
	}
}

// WithTransport sets the wire transport
func WithTransport(t Transport) Option {
	return func(c *Client) {
		c.transport = t
	}
}

// WithHTTPClient sends requests with a net/http client
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		c.transport = NewHTTPTransport(client)
	}
}

// WithObserver sets the telemetry sink
func WithObserver(o Observer) Option {
	return func(c *Client) {
		c.observer = o
	}
}

// WithMetrics enables Prometheus metrics on a private registry
func WithMetrics() Option {
	return func(c *Client) {
		c.metrics = NewMetricsCollector()
	}
}

// WithMetricsCollector sets a custom metrics collector
func WithMetricsCollector(collector *MetricsCollector) Option {
	return func(c *Client) {
		c.metrics = collector
	}
}

// WithTracer sets the OpenTelemetry tracer used for exchange spans
func WithTracer(tracer trace.Tracer) Option {
	return func(c *Client) {
		c.tracer = tracer
	}
}

// WithLogger sets the logger
func WithLogger(logger Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithTokenStore sets where credentials are persisted
func WithTokenStore(store TokenStore) Option {
	return func(c *Client) {
		c.tokenStore = store
	}
}

// WithRequestIDGenerator sets a custom function for generating request IDs
func WithRequestIDGenerator(gen func() string) Option {
	return func(c *Client) {
		c.idGen = gen
	}
}

// WithClock sets the time source used for cache expiry, token expiry and
// durations.
func WithClock(now func() time.Time) Option {
	return func(c *Client) {
		c.now = now
	}
}

// WithInterceptor appends interceptors that run after the built-in stages,
// just before dispatch.
func WithInterceptor(interceptors ...Interceptor) Option {
	return func(c *Client) {
		c.interceptors = append(c.interceptors, interceptors...)
	}
}

// WithCancelPrevious controls whether this call supersedes a pending
// duplicate. The default is true.
func WithCancelPrevious(cancel bool) RequestOption {
	return func(r *Request) {
		r.cancelPrevious = cancel
	}
}

// WithHeader sets a header on this call only
func WithHeader(key, value string) RequestOption {
	return func(r *Request) {
		r.Header.Set(key, value)
	}
}

// WithoutCacheLookup bypasses the response cache for this call
func WithoutCacheLookup() RequestOption {
	return func(r *Request) {
		r.skipCache = true
	}
}

// WithRequestTimeout overrides the client timeout for this call
func WithRequestTimeout(d time.Duration) RequestOption {
	return func(r *Request) {
		r.Timeout = d
	}
}
