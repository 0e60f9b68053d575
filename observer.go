package axnext

import "time"

// Observer receives telemetry from a Client. Implementations must be safe
// for concurrent use and must not block.
type Observer interface {
	// OnDuration reports the elapsed time of one exchange, successful or not.
	OnDuration(req RequestDescriptor, d time.Duration)
	// OnUnhandledError reports a classified failure before it is returned
	// to the caller. Canceled requests and recovered 401s are not reported.
	OnUnhandledError(err error)
}

// CacheObserver is implemented by observers that want cache lookups.
type CacheObserver interface {
	OnCacheLookup(req RequestDescriptor, hit bool)
}

// CancellationObserver is implemented by observers that want to know when
// a pending request is superseded.
type CancellationObserver interface {
	OnSuperseded(req RequestDescriptor)
}

// RefreshObserver is implemented by observers that want refresh exchanges.
type RefreshObserver interface {
	OnTokenRefresh(success bool, d time.Duration)
}

// NopObserver discards everything.
type NopObserver struct{}

func (NopObserver) OnDuration(RequestDescriptor, time.Duration) {}
func (NopObserver) OnUnhandledError(error)                      {}

// ObserverFuncs adapts plain functions to Observer. Nil fields are skipped.
type ObserverFuncs struct {
	Duration       func(req RequestDescriptor, d time.Duration)
	UnhandledError func(err error)
}

func (f ObserverFuncs) OnDuration(req RequestDescriptor, d time.Duration) {
	if f.Duration != nil {
		f.Duration(req, d)
	}
}

func (f ObserverFuncs) OnUnhandledError(err error) {
	if f.UnhandledError != nil {
		f.UnhandledError(err)
	}
}

// LoggingObserver writes durations at debug level and unhandled errors at
// error level.
type LoggingObserver struct {
	Logger Logger
}

func (o LoggingObserver) OnDuration(req RequestDescriptor, d time.Duration) {
	o.Logger.Debug("request completed",
		"requestID", req.ID, "method", req.Method, "url", req.URL, "attempt", req.Attempt, "duration", d)
}

func (o LoggingObserver) OnUnhandledError(err error) {
	o.Logger.Error("request failed", "error", err)
}

func (o LoggingObserver) OnSuperseded(req RequestDescriptor) {
	o.Logger.Debug("request superseded", "requestID", req.ID, "identity", req.Identity.String())
}

// MultiObserver fans every callback out to its members, including the
// optional extensions each member implements.
type MultiObserver []Observer

func (m MultiObserver) OnDuration(req RequestDescriptor, d time.Duration) {
	for _, o := range m {
		o.OnDuration(req, d)
	}
}

func (m MultiObserver) OnUnhandledError(err error) {
	for _, o := range m {
		o.OnUnhandledError(err)
	}
}

func (m MultiObserver) OnCacheLookup(req RequestDescriptor, hit bool) {
	for _, o := range m {
		if co, ok := o.(CacheObserver); ok {
			co.OnCacheLookup(req, hit)
		}
	}
}

func (m MultiObserver) OnSuperseded(req RequestDescriptor) {
	for _, o := range m {
		if co, ok := o.(CancellationObserver); ok {
			co.OnSuperseded(req)
		}
	}
}

func (m MultiObserver) OnTokenRefresh(success bool, d time.Duration) {
	for _, o := range m {
		if ro, ok := o.(RefreshObserver); ok {
			ro.OnTokenRefresh(success, d)
		}
	}
}
