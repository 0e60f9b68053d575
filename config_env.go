package axnext

import (
	"os"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/kelseyhightower/envconfig"
	"github.com/xhit/go-str2duration/v2"
	"gopkg.in/yaml.v3"
)

// EnvPrefix is the default environment prefix, e.g. AXNEXT_BASE_ADDRESS.
const EnvPrefix = "AXNEXT"

// LoadEnvOverrides reads overrides from environment variables named
// <prefix>_<FIELD>. Unset variables leave the field nil.
func LoadEnvOverrides(prefix string) (Overrides, error) {
	var o Overrides
	if err := envconfig.Process(prefix, &o); err != nil {
		return Overrides{}, errors.Wrap(err, "failed to load overrides from environment")
	}
	return o, nil
}

// fileOverrides mirrors Overrides with durations as strings so files can
// say "90s" or "1d".
type fileOverrides struct {
	BaseAddress                  *string           `yaml:"baseAddress"`
	Headers                      map[string]string `yaml:"headers"`
	Timeout                      *string           `yaml:"timeout"`
	CacheEnabled                 *bool             `yaml:"cacheEnabled"`
	CacheTTL                     *string           `yaml:"cacheTTL"`
	CacheSweepInterval           *string           `yaml:"cacheSweepInterval"`
	RetryEnabled                 *bool             `yaml:"retryEnabled"`
	RetryDelay                   *string           `yaml:"retryDelay"`
	ErrorHandlingEnabled         *bool             `yaml:"errorHandlingEnabled"`
	PerformanceMonitoringEnabled *bool             `yaml:"performanceMonitoringEnabled"`
	CancellationEnabled          *bool             `yaml:"cancellationEnabled"`
	RefreshEndpoint              *string           `yaml:"refreshEndpoint"`
	TokenRefreshEnabled          *bool             `yaml:"tokenRefreshEnabled"`
	TokenRefreshThreshold        *string           `yaml:"tokenRefreshThreshold"`
}

// LoadFileOverrides reads overrides from a YAML file.
func LoadFileOverrides(path string) (Overrides, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Overrides{}, errors.Wrapf(err, "failed to read config file %s", path)
	}
	return ParseOverrides(data)
}

// ParseOverrides decodes YAML overrides.
func ParseOverrides(data []byte) (Overrides, error) {
	var f fileOverrides
	if err := yaml.Unmarshal(data, &f); err != nil {
		return Overrides{}, errors.Wrap(err, "failed to parse overrides")
	}

	o := Overrides{
		BaseAddress:                  f.BaseAddress,
		Headers:                      f.Headers,
		CacheEnabled:                 f.CacheEnabled,
		RetryEnabled:                 f.RetryEnabled,
		ErrorHandlingEnabled:         f.ErrorHandlingEnabled,
		PerformanceMonitoringEnabled: f.PerformanceMonitoringEnabled,
		CancellationEnabled:          f.CancellationEnabled,
		RefreshEndpoint:              f.RefreshEndpoint,
		TokenRefreshEnabled:          f.TokenRefreshEnabled,
	}

	durations := []struct {
		name string
		src  *string
		dst  **time.Duration
	}{
		{"timeout", f.Timeout, &o.Timeout},
		{"cacheTTL", f.CacheTTL, &o.CacheTTL},
		{"cacheSweepInterval", f.CacheSweepInterval, &o.CacheSweepInterval},
		{"retryDelay", f.RetryDelay, &o.RetryDelay},
		{"tokenRefreshThreshold", f.TokenRefreshThreshold, &o.TokenRefreshThreshold},
	}
	for _, d := range durations {
		if d.src == nil {
			continue
		}
		parsed, err := str2duration.ParseDuration(*d.src)
		if err != nil {
			return Overrides{}, errors.Wrapf(err, "invalid duration for %s", d.name)
		}
		*d.dst = &parsed
	}

	return o, nil
}
