package axnext

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Timeout != 10*time.Second {
		t.Errorf("Expected timeout 10s, got %v", cfg.Timeout)
	}
	if !cfg.CacheEnabled || cfg.CacheTTL != 5*time.Minute || cfg.CacheSweepInterval != time.Minute {
		t.Errorf("Unexpected cache defaults: %+v", cfg)
	}
	if !cfg.RetryEnabled || cfg.RetryDelay != time.Second {
		t.Errorf("Unexpected retry defaults: %+v", cfg)
	}
	if !cfg.ErrorHandlingEnabled || !cfg.PerformanceMonitoringEnabled || !cfg.CancellationEnabled {
		t.Errorf("Expected error handling, monitoring and cancellation on by default")
	}
	if cfg.RefreshEndpoint != "/auth/refresh" || !cfg.TokenRefreshEnabled || cfg.TokenRefreshThreshold != 5*time.Minute {
		t.Errorf("Unexpected token defaults: %+v", cfg)
	}
	if cfg.Headers["Content-Type"] != "application/json" {
		t.Errorf("Expected JSON content type header, got %v", cfg.Headers)
	}
}

func TestResolveOverrides(t *testing.T) {
	timeout := 3 * time.Second
	disabled := false
	base := "https://api.example.com"

	cfg, err := Resolve(Overrides{
		BaseAddress:  &base,
		Timeout:      &timeout,
		CacheEnabled: &disabled,
		Headers:      map[string]string{"X-App": "demo"},
	})
	require.NoError(t, err)

	assert.Equal(t, base, cfg.BaseAddress)
	assert.Equal(t, timeout, cfg.Timeout)
	assert.False(t, cfg.CacheEnabled)
	assert.Equal(t, map[string]string{"X-App": "demo"}, cfg.Headers, "headers are replaced as a whole")
	assert.Equal(t, DefaultCacheTTL, cfg.CacheTTL, "untouched fields keep defaults")
}

func TestOverridesMergeLastWriteWins(t *testing.T) {
	first, second := time.Second, 2*time.Second
	a := Overrides{Timeout: &first, Headers: map[string]string{"A": "1"}}
	b := Overrides{Timeout: &second}

	merged := a.Merge(b)
	assert.Equal(t, second, *merged.Timeout)
	assert.Equal(t, "1", merged.Headers["A"])
}

func TestValidateRejectsNegativeDurations(t *testing.T) {
	negative := -time.Second
	_, err := Resolve(Overrides{CacheTTL: &negative})
	if err == nil {
		t.Fatal("Expected validation error for negative TTL")
	}
	if !errors.Is(err, ErrSetup) {
		t.Errorf("Expected SetupError, got %v", err)
	}

	zero := time.Duration(0)
	_, err = Resolve(Overrides{Timeout: &zero, RetryDelay: &zero})
	assert.NoError(t, err, "zero durations are accepted")
}

func TestConfigCopyIsIsolated(t *testing.T) {
	c := New(WithHeaders(map[string]string{"X-A": "1"}))
	defer c.Close()

	cfg := c.Config()
	cfg.Headers["X-A"] = "changed"

	if c.Config().Headers["X-A"] != "1" {
		t.Error("Mutating a returned config must not affect the client")
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("AXNEXT_BASE_ADDRESS", "https://env.example.com")
	t.Setenv("AXNEXT_TIMEOUT", "2s")
	t.Setenv("AXNEXT_CACHE_ENABLED", "false")
	t.Setenv("AXNEXT_HEADERS", "X-One:1,X-Two:2")

	o, err := LoadEnvOverrides(EnvPrefix)
	require.NoError(t, err)

	require.NotNil(t, o.BaseAddress)
	assert.Equal(t, "https://env.example.com", *o.BaseAddress)
	require.NotNil(t, o.Timeout)
	assert.Equal(t, 2*time.Second, *o.Timeout)
	require.NotNil(t, o.CacheEnabled)
	assert.False(t, *o.CacheEnabled)
	assert.Equal(t, map[string]string{"X-One": "1", "X-Two": "2"}, o.Headers)
	assert.Nil(t, o.RetryDelay, "unset variables stay nil")
}

func TestParseOverridesYAML(t *testing.T) {
	data := []byte(`
baseAddress: https://file.example.com
timeout: 90s
cacheTTL: 1d
retryEnabled: false
tokenRefreshThreshold: 2m
`)
	o, err := ParseOverrides(data)
	require.NoError(t, err)

	cfg, err := Resolve(o)
	require.NoError(t, err)
	assert.Equal(t, "https://file.example.com", cfg.BaseAddress)
	assert.Equal(t, 90*time.Second, cfg.Timeout)
	assert.Equal(t, 24*time.Hour, cfg.CacheTTL)
	assert.False(t, cfg.RetryEnabled)
	assert.Equal(t, 2*time.Minute, cfg.TokenRefreshThreshold)
}

func TestParseOverridesInvalidDuration(t *testing.T) {
	_, err := ParseOverrides([]byte("timeout: soon\n"))
	assert.Error(t, err)
}

func TestLoadFileOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "axnext.yaml")
	require.NoError(t, os.WriteFile(path, []byte("cancellationEnabled: false\n"), 0o600))

	o, err := LoadFileOverrides(path)
	require.NoError(t, err)
	require.NotNil(t, o.CancellationEnabled)
	assert.False(t, *o.CancellationEnabled)

	_, err = LoadFileOverrides(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
