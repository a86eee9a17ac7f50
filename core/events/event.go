package events

import (
	"sync"

	"w2rchain/core/types"
)

// Event represents a structured state change emitted by a native engine.
type Event interface {
	EventType() string
	Event() *types.Event
}

// Emitter broadcasts events to downstream subscribers (RPC pollers, indexers).
type Emitter interface {
	Emit(Event)
}

// NoopEmitter satisfies the Emitter interface while discarding all events. It
// is the default for engines whose caller has not wired a subscriber.
type NoopEmitter struct{}

// Emit implements the Emitter interface.
func (NoopEmitter) Emit(Event) {}

// Ring is a bounded in-memory event buffer. The RPC layer pages it so clients
// can poll for state transitions instead of holding listeners open.
type Ring struct {
	mu     sync.RWMutex
	buf    []*types.Event
	next   uint64
	filled bool
	cursor int
}

// NewRing returns a ring buffer retaining the most recent capacity events.
func NewRing(capacity int) *Ring {
	if capacity <= 0 {
		capacity = 256
	}
	return &Ring{buf: make([]*types.Event, capacity)}
}

// Emit appends the event payload, evicting the oldest entry once full.
func (r *Ring) Emit(evt Event) {
	if r == nil || evt == nil {
		return
	}
	payload := evt.Event()
	if payload == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.buf[r.cursor] = payload
	r.cursor = (r.cursor + 1) % len(r.buf)
	if r.cursor == 0 {
		r.filled = true
	}
	r.next++
}

// Latest returns up to limit events, newest first.
func (r *Ring) Latest(limit int) []*types.Event {
	if r == nil {
		return nil
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	size := r.cursor
	if r.filled {
		size = len(r.buf)
	}
	if limit <= 0 || limit > size {
		limit = size
	}
	out := make([]*types.Event, 0, limit)
	for i := 0; i < limit; i++ {
		idx := (r.cursor - 1 - i + len(r.buf)) % len(r.buf)
		if r.buf[idx] != nil {
			out = append(out, r.buf[idx])
		}
	}
	return out
}

// Seen reports the total number of events emitted since creation.
func (r *Ring) Seen() uint64 {
	if r == nil {
		return 0
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.next
}
