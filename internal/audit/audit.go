// Package audit provides an append-only log of security-relevant events:
// logins, rejected tokens, and account changes. Events never contain
// plaintext passwords or full token values.
package audit

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// EventType classifies audit events.
type EventType string

const (
	EventLoginSuccess    EventType = "login.success"
	EventLoginFailed     EventType = "login.failed"
	EventTokenRejected   EventType = "token.rejected"
	EventUserCreated     EventType = "user.created"
	EventUserDeleted     EventType = "user.deleted"
	EventPasswordChanged EventType = "password.changed"
	EventMetricsReset    EventType = "metrics.reset"
)

// Event is a single audit log entry.
type Event struct {
	ID        string    `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	Type      EventType `json:"type"`
	Actor     string    `json:"actor,omitempty"` // who initiated (username or "system")
	Summary   string    `json:"summary"`
	Detail    any       `json:"detail,omitempty"`
}

// Log is an append-only in-memory audit log with a bounded ring buffer.
type Log struct {
	events []Event
	mu     sync.RWMutex
	maxLen int // ring buffer size (0 = unbounded)
}

// NewLog creates a new audit log. maxLen=0 means unbounded.
func NewLog(maxLen int) *Log {
	return &Log{
		events: make([]Event, 0, 256),
		maxLen: maxLen,
	}
}

// Record appends an event to the log.
func (l *Log) Record(evt Event) {
	enrichEvent(&evt)

	l.mu.Lock()
	defer l.mu.Unlock()

	l.events = append(l.events, evt)

	// Ring buffer: drop oldest if over capacity
	if l.maxLen > 0 && len(l.events) > l.maxLen {
		l.events = l.events[len(l.events)-l.maxLen:]
	}
}

// Emit is a convenience for recording a new event with minimal args.
func (l *Log) Emit(typ EventType, actor, summary string) {
	l.Record(Event{Type: typ, Actor: actor, Summary: summary})
}

// Filter selects events for Query. Zero values match everything.
type Filter struct {
	Type  EventType
	Actor string
	Since time.Time
	Limit int // 0 = all
}

// Query returns filtered events, newest first.
func (l *Log) Query(f Filter) []Event {
	l.mu.RLock()
	defer l.mu.RUnlock()

	var result []Event
	for i := len(l.events) - 1; i >= 0; i-- {
		evt := l.events[i]
		if f.Type != "" && evt.Type != f.Type {
			continue
		}
		if f.Actor != "" && evt.Actor != f.Actor {
			continue
		}
		if !f.Since.IsZero() && evt.Timestamp.Before(f.Since) {
			continue
		}
		result = append(result, evt)
		if f.Limit > 0 && len(result) >= f.Limit {
			break
		}
	}
	return result
}

// Count returns the number of retained events.
func (l *Log) Count() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.events)
}

func enrichEvent(evt *Event) {
	if evt.ID == "" {
		evt.ID = uuid.NewString()
	}
	if evt.Timestamp.IsZero() {
		evt.Timestamp = time.Now().UTC()
	}
}
