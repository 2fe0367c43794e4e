// Package eventlog holds the process-lifetime buffer of recently ingested
// events. It is intentionally not persistent: a new process instance starts
// empty, and in a multi-instance deployment each instance owns its own log.
package eventlog

import (
	"sync"

	"github.com/technicalkuldeep/blood-dapp/domain"
)

// DefaultCapacity matches the dashboard's "recent activity" window.
const DefaultCapacity = 100

// Log is a bounded, insertion-ordered event buffer. Once capacity is
// reached the oldest entries are evicted first. All methods are safe for
// concurrent use.
type Log struct {
	mu       sync.RWMutex
	capacity int
	events   []domain.Event // oldest first
}

// New returns an empty log holding at most capacity events. A
// non-positive capacity falls back to DefaultCapacity.
func New(capacity int) *Log {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Log{
		capacity: capacity,
		events:   make([]domain.Event, 0, capacity),
	}
}

// Append commits an event. It never fails; when the log is full the
// oldest event is dropped to make room.
func (l *Log) Append(ev domain.Event) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.events) == l.capacity {
		copy(l.events, l.events[1:])
		l.events[len(l.events)-1] = ev
		return
	}
	l.events = append(l.events, ev)
}

// Snapshot returns a copy of all retained events, newest first. The copy
// is detached from the log; concurrent appends do not invalidate it.
func (l *Log) Snapshot() []domain.Event {
	return l.SnapshotRecent(-1)
}

// SnapshotRecent returns a copy of at most n of the newest events, newest
// first. A negative n returns everything.
func (l *Log) SnapshotRecent(n int) []domain.Event {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if n < 0 || n > len(l.events) {
		n = len(l.events)
	}
	out := make([]domain.Event, 0, n)
	for i := len(l.events) - 1; i >= len(l.events)-n; i-- {
		out = append(out, l.events[i])
	}
	return out
}

// Len reports the number of retained events.
func (l *Log) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.events)
}

// Capacity reports the configured upper bound.
func (l *Log) Capacity() int {
	return l.capacity
}
