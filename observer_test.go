package axnext

import (
	"testing"
	"time"
)

func TestMultiObserverFansOut(t *testing.T) {
	a := newRecordingObserver()
	b := newRecordingObserver()
	var plainDurations int
	plain := ObserverFuncs{Duration: func(RequestDescriptor, time.Duration) { plainDurations++ }}

	m := MultiObserver{a, b, plain}
	req := RequestDescriptor{ID: "r", Method: "GET"}

	m.OnDuration(req, time.Millisecond)
	m.OnUnhandledError(ErrTransport)
	m.OnCacheLookup(req, true)
	m.OnSuperseded(req)
	m.OnTokenRefresh(true, time.Millisecond)

	for name, o := range map[string]*recordingObserver{"a": a, "b": b} {
		if o.durationCount() != 1 || o.errorCount() != 1 || o.supersededCount() != 1 {
			t.Errorf("%s: expected every callback once", name)
		}
		if o.lookups[true] != 1 || len(o.refreshes) != 1 {
			t.Errorf("%s: expected extension callbacks", name)
		}
	}
	if plainDurations != 1 {
		t.Errorf("Expected plain observer to receive the duration, got %d", plainDurations)
	}
}

func TestObserverFuncsNilFields(t *testing.T) {
	var f ObserverFuncs
	f.OnDuration(RequestDescriptor{}, time.Second)
	f.OnUnhandledError(ErrSetup)
}
