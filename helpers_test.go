package axnext

import (
	"sync"
	"time"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

// recordingObserver captures callbacks for assertions.
type recordingObserver struct {
	mu         sync.Mutex
	durations  []RequestDescriptor
	errors     []error
	lookups    map[bool]int
	superseded []RequestDescriptor
	refreshes  []bool
}

func newRecordingObserver() *recordingObserver {
	return &recordingObserver{lookups: make(map[bool]int)}
}

func (o *recordingObserver) OnDuration(req RequestDescriptor, _ time.Duration) {
	o.mu.Lock()
	o.durations = append(o.durations, req)
	o.mu.Unlock()
}

func (o *recordingObserver) OnUnhandledError(err error) {
	o.mu.Lock()
	o.errors = append(o.errors, err)
	o.mu.Unlock()
}

func (o *recordingObserver) OnCacheLookup(_ RequestDescriptor, hit bool) {
	o.mu.Lock()
	o.lookups[hit]++
	o.mu.Unlock()
}

func (o *recordingObserver) OnSuperseded(req RequestDescriptor) {
	o.mu.Lock()
	o.superseded = append(o.superseded, req)
	o.mu.Unlock()
}

func (o *recordingObserver) OnTokenRefresh(success bool, _ time.Duration) {
	o.mu.Lock()
	o.refreshes = append(o.refreshes, success)
	o.mu.Unlock()
}

func (o *recordingObserver) errorCount() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.errors)
}

func (o *recordingObserver) durationCount() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.durations)
}

func (o *recordingObserver) supersededCount() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.superseded)
}
