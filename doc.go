// Package axnext is a request-lifecycle manager layered over an HTTP
// transport. Every call made through a Client passes a fixed pipeline:
//
//   - Request metadata (request ID, issue time, X-Request-ID header)
//   - OpenTelemetry client span
//   - Timing, reported to the Observer and Prometheus metrics
//   - Cancellation of a pending duplicate read (same method, URL and query)
//   - Time-bounded response cache for GET and HEAD
//   - Bearer authentication from the TokenManager
//   - User interceptors, then transport dispatch
//
// Failures are classified into one error type, *ClientError, whose Type is
// one of Transport, Response, NotFound, TokenRefresh, Canceled or Setup.
// A 401 is recovered locally: the token is refreshed once (concurrent
// refreshes share a single exchange) and the request is re-issued exactly
// once.
//
// Typical usage:
//
//	client := axnext.New(
//	    axnext.WithBaseAddress("https://api.example.com"),
//	    axnext.WithCache(time.Minute),
//	    axnext.WithTokenStore(axnext.NewMemoryTokenStore(refreshToken)),
//	    axnext.WithMetrics(),
//	)
//	defer client.Close()
//	data, err := client.Get(ctx, "/data", url.Values{"key": {"value"}})
//	if axnext.IsCanceled(err) {
//	    // superseded by a newer identical read
//	}
//
// Configuration may also come from the environment (LoadEnvOverrides) or a
// YAML file (LoadFileOverrides) and be applied with WithOverrides.
package axnext
