package axnext

import (
	"fmt"
	"time"

	"github.com/cockroachdb/errors"
)

// Default configuration values.
const (
	DefaultTimeout               = 10 * time.Second
	DefaultCacheTTL              = 5 * time.Minute
	DefaultCacheSweepInterval    = time.Minute
	DefaultRetryDelay            = time.Second
	DefaultRefreshEndpoint       = "/auth/refresh"
	DefaultTokenRefreshThreshold = 5 * time.Minute
)

// Config is the resolved, immutable configuration of a Client. A Client
// keeps its own copy; Client.Config returns another copy.
type Config struct {
	BaseAddress                  string
	Headers                      map[string]string
	Timeout                      time.Duration
	CacheEnabled                 bool
	CacheTTL                     time.Duration
	CacheSweepInterval           time.Duration
	RetryEnabled                 bool
	RetryDelay                   time.Duration
	ErrorHandlingEnabled         bool
	PerformanceMonitoringEnabled bool
	CancellationEnabled          bool
	RefreshEndpoint              string
	TokenRefreshEnabled          bool
	TokenRefreshThreshold        time.Duration
}

// Overrides holds user-supplied values. Nil fields keep the default.
type Overrides struct {
	BaseAddress                  *string           `envconfig:"BASE_ADDRESS"`
	Headers                      map[string]string `envconfig:"HEADERS"`
	Timeout                      *time.Duration    `envconfig:"TIMEOUT"`
	CacheEnabled                 *bool             `envconfig:"CACHE_ENABLED"`
	CacheTTL                     *time.Duration    `envconfig:"CACHE_TTL"`
	CacheSweepInterval           *time.Duration    `envconfig:"CACHE_SWEEP_INTERVAL"`
	RetryEnabled                 *bool             `envconfig:"RETRY_ENABLED"`
	RetryDelay                   *time.Duration    `envconfig:"RETRY_DELAY"`
	ErrorHandlingEnabled         *bool             `envconfig:"ERROR_HANDLING_ENABLED"`
	PerformanceMonitoringEnabled *bool             `envconfig:"PERFORMANCE_MONITORING_ENABLED"`
	CancellationEnabled          *bool             `envconfig:"CANCELLATION_ENABLED"`
	RefreshEndpoint              *string           `envconfig:"REFRESH_ENDPOINT"`
	TokenRefreshEnabled          *bool             `envconfig:"TOKEN_REFRESH_ENABLED"`
	TokenRefreshThreshold        *time.Duration    `envconfig:"TOKEN_REFRESH_THRESHOLD"`
}

// DefaultConfig returns the documented defaults.
func DefaultConfig() Config {
	return Config{
		Headers:                      map[string]string{"Content-Type": "application/json"},
		Timeout:                      DefaultTimeout,
		CacheEnabled:                 true,
		CacheTTL:                     DefaultCacheTTL,
		CacheSweepInterval:           DefaultCacheSweepInterval,
		RetryEnabled:                 true,
		RetryDelay:                   DefaultRetryDelay,
		ErrorHandlingEnabled:         true,
		PerformanceMonitoringEnabled: true,
		CancellationEnabled:          true,
		RefreshEndpoint:              DefaultRefreshEndpoint,
		TokenRefreshEnabled:          true,
		TokenRefreshThreshold:        DefaultTokenRefreshThreshold,
	}
}

// Resolve merges overrides over DefaultConfig.
func Resolve(overrides Overrides) (Config, error) {
	cfg := DefaultConfig()
	cfg.apply(overrides)
	return cfg, cfg.Validate()
}

// Merge layers b over a; non-nil fields of b win.
func (a Overrides) Merge(b Overrides) Overrides {
	out := a
	if b.BaseAddress != nil {
		out.BaseAddress = b.BaseAddress
	}
	if b.Headers != nil {
		out.Headers = b.Headers
	}
	if b.Timeout != nil {
		out.Timeout = b.Timeout
	}
	if b.CacheEnabled != nil {
		out.CacheEnabled = b.CacheEnabled
	}
	if b.CacheTTL != nil {
		out.CacheTTL = b.CacheTTL
	}
	if b.CacheSweepInterval != nil {
		out.CacheSweepInterval = b.CacheSweepInterval
	}
	if b.RetryEnabled != nil {
		out.RetryEnabled = b.RetryEnabled
	}
	if b.RetryDelay != nil {
		out.RetryDelay = b.RetryDelay
	}
	if b.ErrorHandlingEnabled != nil {
		out.ErrorHandlingEnabled = b.ErrorHandlingEnabled
	}
	if b.PerformanceMonitoringEnabled != nil {
		out.PerformanceMonitoringEnabled = b.PerformanceMonitoringEnabled
	}
	if b.CancellationEnabled != nil {
		out.CancellationEnabled = b.CancellationEnabled
	}
	if b.RefreshEndpoint != nil {
		out.RefreshEndpoint = b.RefreshEndpoint
	}
	if b.TokenRefreshEnabled != nil {
		out.TokenRefreshEnabled = b.TokenRefreshEnabled
	}
	if b.TokenRefreshThreshold != nil {
		out.TokenRefreshThreshold = b.TokenRefreshThreshold
	}
	return out
}

func (c *Config) apply(o Overrides) {
	if o.BaseAddress != nil {
		c.BaseAddress = *o.BaseAddress
	}
	if o.Headers != nil {
		headers := make(map[string]string, len(o.Headers))
		for k, v := range o.Headers {
			headers[k] = v
		}
		c.Headers = headers
	}
	if o.Timeout != nil {
		c.Timeout = *o.Timeout
	}
	if o.CacheEnabled != nil {
		c.CacheEnabled = *o.CacheEnabled
	}
	if o.CacheTTL != nil {
		c.CacheTTL = *o.CacheTTL
	}
	if o.CacheSweepInterval != nil {
		c.CacheSweepInterval = *o.CacheSweepInterval
	}
	if o.RetryEnabled != nil {
		c.RetryEnabled = *o.RetryEnabled
	}
	if o.RetryDelay != nil {
		c.RetryDelay = *o.RetryDelay
	}
	if o.ErrorHandlingEnabled != nil {
		c.ErrorHandlingEnabled = *o.ErrorHandlingEnabled
	}
	if o.PerformanceMonitoringEnabled != nil {
		c.PerformanceMonitoringEnabled = *o.PerformanceMonitoringEnabled
	}
	if o.CancellationEnabled != nil {
		c.CancellationEnabled = *o.CancellationEnabled
	}
	if o.RefreshEndpoint != nil {
		c.RefreshEndpoint = *o.RefreshEndpoint
	}
	if o.TokenRefreshEnabled != nil {
		c.TokenRefreshEnabled = *o.TokenRefreshEnabled
	}
	if o.TokenRefreshThreshold != nil {
		c.TokenRefreshThreshold = *o.TokenRefreshThreshold
	}
}

// Validate checks non-negativity of durations. Nothing else is validated;
// odd values are the caller's responsibility.
func (c Config) Validate() error {
	var problems []string
	check := func(name string, d time.Duration) {
		if d < 0 {
			problems = append(problems, fmt.Sprintf("%s must be non-negative, got %v", name, d))
		}
	}
	check("timeout", c.Timeout)
	check("cacheTTL", c.CacheTTL)
	check("cacheSweepInterval", c.CacheSweepInterval)
	check("retryDelay", c.RetryDelay)
	check("tokenRefreshThreshold", c.TokenRefreshThreshold)

	if len(problems) > 0 {
		return newSetupError("configuration validation failed",
			errors.Newf("validation errors: %v", problems), nil)
	}
	return nil
}

func (c Config) clone() Config {
	out := c
	if c.Headers != nil {
		out.Headers = make(map[string]string, len(c.Headers))
		for k, v := range c.Headers {
			out.Headers[k] = v
		}
	}
	return out
}
