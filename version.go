package axnext

import (
	"fmt"
	"runtime"

	"github.com/prometheus/client_golang/prometheus"
)

// Build metadata. Release builds set these with
// -ldflags "-X github.com/ebetap/ax-next.GitCommit=...".
var (
	Version   = "v0.1.0"
	GitCommit = "unknown"
	BuildDate = "unknown"
	GoVersion = runtime.Version()
)

// GetVersion formats the build metadata for banners and logs.
func GetVersion() string {
	info := GetVersionInfo()
	return fmt.Sprintf("ax-next %s (commit %s, built %s, %s)",
		info["version"], info["commit"], info["build_date"], info["go_version"])
}

// GetVersionInfo returns the build metadata keyed by the label names of
// axnext_build_info.
func GetVersionInfo() map[string]string {
	return map[string]string{
		"version":    Version,
		"commit":     GitCommit,
		"build_date": BuildDate,
		"go_version": GoVersion,
	}
}

// UserAgent is sent on every request that does not set its own.
func UserAgent() string {
	return "ax-next/" + Version
}

func buildInfoGauge() prometheus.Collector {
	return prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name:        "axnext_build_info",
		Help:        "Build metadata of the ax-next client library",
		ConstLabels: prometheus.Labels(GetVersionInfo()),
	}, func() float64 { return 1 })
}
