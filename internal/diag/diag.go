// Package diag provides an in-memory, bounded, timestamped diagnostics ledger.
//
// It is best-effort operator telemetry, not an audit of record: events are
// never persisted and the oldest are dropped once capacity is reached. The
// durable audit trail lives with the report recorder.
package diag

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Capacity is the maximum number of retained events. Once exceeded, the
// oldest event is evicted first.
const Capacity = 50

// Severity classifies a diagnostic event.
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
	SeverityInfo    Severity = "info"
	SeveritySuccess Severity = "success"
)

// Event is a single diagnostics entry.
type Event struct {
	ID        string    `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	Severity  Severity  `json:"severity"`
	Category  string    `json:"category"`
	Message   string    `json:"message"`
	Details   string    `json:"details,omitempty"`
}

// Recorder is a fixed-capacity FIFO event ledger with subscriber fanout.
// All methods are safe for concurrent use and never block or fail.
type Recorder struct {
	mu     sync.Mutex
	events []Event // oldest first
	next   int
	subs   map[int]func([]Event)
}

// NewRecorder creates an empty Recorder with the default capacity.
func NewRecorder() *Recorder {
	return &Recorder{
		events: make([]Event, 0, Capacity),
		subs:   make(map[int]func([]Event)),
	}
}

// Record appends an event, evicting the oldest entry once capacity is
// exceeded, and synchronously notifies every subscriber with the full
// current event list, newest first.
func (r *Recorder) Record(severity Severity, category, message, details string) {
	r.mu.Lock()
	ev := Event{
		ID:        uuid.New().String(),
		Timestamp: time.Now(),
		Severity:  severity,
		Category:  category,
		Message:   message,
		Details:   details,
	}
	if len(r.events) == Capacity {
		copy(r.events, r.events[1:])
		r.events[len(r.events)-1] = ev
	} else {
		r.events = append(r.events, ev)
	}

	snapshot := r.snapshotLocked()
	fns := make([]func([]Event), 0, len(r.subs))
	for _, fn := range r.subs {
		fns = append(fns, fn)
	}
	r.mu.Unlock()

	for _, fn := range fns {
		fn(snapshot)
	}
}

// Subscribe registers a listener and returns an unsubscribe function.
// Each notification receives its own copy of the event list.
func (r *Recorder) Subscribe(fn func([]Event)) func() {
	r.mu.Lock()
	defer r.mu.Unlock()

	id := r.next
	r.next++
	r.subs[id] = fn

	return func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		delete(r.subs, id)
	}
}

// Snapshot returns a copy of the current events, newest first. Mutating the
// returned slice has no effect on the recorder.
func (r *Recorder) Snapshot() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.snapshotLocked()
}

// snapshotLocked builds a newest-first copy. Caller must hold r.mu.
func (r *Recorder) snapshotLocked() []Event {
	out := make([]Event, len(r.events))
	for i, ev := range r.events {
		out[len(r.events)-1-i] = ev
	}
	return out
}
