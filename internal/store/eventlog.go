package store

import (
	"sync"

	"github.com/seismoguard/quake-ingest/internal/domain"
)

// EventLog is the in-memory working set of admitted events, newest-first by
// discovery. New events are prepended as they are admitted, so sources that
// report newest-first (and are merged oldest-first) come out in overall
// newest-first presentation order. The log is bounded; the oldest-discovered
// tail is trimmed past capacity.
type EventLog struct {
	mu     sync.RWMutex
	cap    int
	events []domain.QuakeEvent
}

func NewEventLog(capacity int) *EventLog {
	if capacity <= 0 {
		capacity = 1000
	}
	return &EventLog{cap: capacity}
}

// Prepend inserts an event at the front of the log.
func (l *EventLog) Prepend(ev domain.QuakeEvent) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append([]domain.QuakeEvent{ev}, l.events...)
	if len(l.events) > l.cap {
		l.events = l.events[:l.cap]
	}
}

// Snapshot returns a copy of the log for read-only observers.
func (l *EventLog) Snapshot() []domain.QuakeEvent {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]domain.QuakeEvent, len(l.events))
	copy(out, l.events)
	return out
}

// Len is the current number of logged events.
func (l *EventLog) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.events)
}
