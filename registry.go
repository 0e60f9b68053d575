package axnext

import (
	"context"
	"sync"
)

// PendingRegistry tracks in-flight requests by identity so a newer request
// can cancel the ones it supersedes. An identity normally has one live
// record; requests registered without cancelPrevious join the existing
// records instead of replacing them.
type PendingRegistry struct {
	mu      sync.Mutex
	enabled bool
	seq     uint64
	entries map[Identity][]*pendingRecord
}

type pendingRecord struct {
	seq    uint64
	cancel context.CancelCauseFunc
}

// PendingHandle identifies one registration; Clear only removes the record
// it was issued for.
type PendingHandle struct {
	identity Identity
	seq      uint64
}

// NewPendingRegistry returns a registry. A disabled registry ignores every
// call.
func NewPendingRegistry(enabled bool) *PendingRegistry {
	return &PendingRegistry{
		enabled: enabled,
		entries: make(map[Identity][]*pendingRecord),
	}
}

// Enabled reports whether the registry tracks requests.
func (r *PendingRegistry) Enabled() bool {
	return r != nil && r.enabled
}

// Register records cancel as an in-flight request for id. Unless
// cancelPrevious is false, every live record for id is canceled with
// ErrSuperseded first. It reports whether a previous request was canceled.
func (r *PendingRegistry) Register(id Identity, cancel context.CancelCauseFunc, cancelPrevious bool) (PendingHandle, bool) {
	if !r.Enabled() {
		return PendingHandle{}, false
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	r.seq++
	rec := &pendingRecord{seq: r.seq, cancel: cancel}

	live := r.entries[id]
	if !cancelPrevious {
		r.entries[id] = append(live, rec)
		return PendingHandle{identity: id, seq: rec.seq}, false
	}

	for _, prev := range live {
		prev.cancel(ErrSuperseded)
	}
	r.entries[id] = []*pendingRecord{rec}
	return PendingHandle{identity: id, seq: rec.seq}, len(live) > 0
}

// CancelIfPresent cancels and removes every record for id.
func (r *PendingRegistry) CancelIfPresent(id Identity) bool {
	if !r.Enabled() {
		return false
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	live, ok := r.entries[id]
	if !ok {
		return false
	}
	for _, rec := range live {
		rec.cancel(ErrSuperseded)
	}
	delete(r.entries, id)
	return true
}

// Clear removes the record registered under h, if it is still tracked.
func (r *PendingRegistry) Clear(h PendingHandle) {
	if !r.Enabled() || h.seq == 0 {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	live := r.entries[h.identity]
	for i, rec := range live {
		if rec.seq != h.seq {
			continue
		}
		live = append(live[:i:i], live[i+1:]...)
		if len(live) == 0 {
			delete(r.entries, h.identity)
		} else {
			r.entries[h.identity] = live
		}
		return
	}
}

// CancelAll cancels every pending request with cause and returns how many
// were canceled.
func (r *PendingRegistry) CancelAll(cause error) int {
	if !r.Enabled() {
		return 0
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	n := 0
	for id, live := range r.entries {
		for _, rec := range live {
			rec.cancel(cause)
			n++
		}
		delete(r.entries, id)
	}
	return n
}

// Len returns the number of tracked requests.
func (r *PendingRegistry) Len() int {
	if r == nil {
		return 0
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	n := 0
	for _, live := range r.entries {
		n += len(live)
	}
	return n
}
