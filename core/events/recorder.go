package events

import "sync"

// Recorder retains the most recent emitted events in memory so the RPC layer
// can serve a bounded tail to off-ledger consumers.
type Recorder struct {
	mu    sync.RWMutex
	limit int
	buf   []Event
}

// NewRecorder creates a recorder that keeps at most limit events. A
// non-positive limit falls back to 1024.
func NewRecorder(limit int) *Recorder {
	if limit <= 0 {
		limit = 1024
	}
	return &Recorder{limit: limit}
}

// Emit implements the Emitter interface.
func (r *Recorder) Emit(evt Event) {
	if r == nil || evt == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.buf = append(r.buf, evt)
	if len(r.buf) > r.limit {
		r.buf = r.buf[len(r.buf)-r.limit:]
	}
}

// Tail returns up to n of the most recently recorded events, oldest first.
func (r *Recorder) Tail(n int) []Event {
	if r == nil || n <= 0 {
		return nil
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	if n > len(r.buf) {
		n = len(r.buf)
	}
	out := make([]Event, n)
	copy(out, r.buf[len(r.buf)-n:])
	return out
}
