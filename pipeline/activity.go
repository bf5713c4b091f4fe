package pipeline

import (
	"sync"
	"time"
)

// ActivityType distinguishes start and completion events.
type ActivityType string

const (
	ActivityStart    ActivityType = "start"
	ActivityComplete ActivityType = "complete"
)

// ActivityEvent records a stage run starting or completing.
type ActivityEvent struct {
	ID    string       `json:"id" yaml:"id"`
	Stage Stage        `json:"stage" yaml:"stage"`
	Type  ActivityType `json:"type" yaml:"type"`
	Time  time.Time    `json:"time" yaml:"time"`
}

// DefaultActivityRetention is used when a recorder is created with a
// non-positive retention.
const DefaultActivityRetention = 20

// ActivityRecorder is a bounded, most-recent-first log of activity events.
// Safe for concurrent use.
type ActivityRecorder struct {
	mu        sync.RWMutex
	retention int
	events    []ActivityEvent
}

// NewActivityRecorder returns a recorder that keeps at most retention events.
func NewActivityRecorder(retention int) *ActivityRecorder {
	if retention <= 0 {
		retention = DefaultActivityRetention
	}
	return &ActivityRecorder{retention: retention, events: make([]ActivityEvent, 0, retention)}
}

// Record prepends ev and evicts the oldest events beyond the retention cap.
func (r *ActivityRecorder) Record(ev ActivityEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ActivityEvent{})
	copy(r.events[1:], r.events)
	r.events[0] = ev
	if len(r.events) > r.retention {
		r.events = r.events[:r.retention]
	}
}

// Recent returns up to n events, most recent first. n <= 0 returns every
// retained event. The result is a snapshot; later Records do not affect it.
func (r *ActivityRecorder) Recent(n int) []ActivityEvent {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if n <= 0 || n > len(r.events) {
		n = len(r.events)
	}
	out := make([]ActivityEvent, n)
	copy(out, r.events[:n])
	return out
}

// Len returns the number of retained events.
func (r *ActivityRecorder) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.events)
}

// Retention returns the configured cap.
func (r *ActivityRecorder) Retention() int { return r.retention }

// Reset discards all events.
func (r *ActivityRecorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = r.events[:0]
}
