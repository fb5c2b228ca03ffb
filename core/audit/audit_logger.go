package audit

import (
	"log"
	"sync"
	"time"

	"dharohar/types/ids"
)

// AuditEvent represents an integrity, persistence or registration event.
type AuditEvent struct {
	ID        string
	Timestamp time.Time
	EventType string            // e.g., "chain_verification", "snapshot_persist"
	EntityID  string            // e.g., block digest or transaction id
	Result    string            // e.g., "success", "failure"
	Reason    string            // error message or reason code
	Metadata  map[string]string // any extra details
}

const (
	ResultSuccess = "success"
	ResultFailure = "failure"
)

// AuditLogger is the interface for logging audit events.
type AuditLogger interface {
	LogEvent(event AuditEvent)
}

// Stamp fills in the id and timestamp when the caller left them empty.
func Stamp(event AuditEvent) AuditEvent {
	if event.ID == "" {
		event.ID = ids.NewEventID()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}
	return event
}

// LogAuditLogger writes audit events through a *log.Logger.
type LogAuditLogger struct {
	logger *log.Logger
}

func (l *LogAuditLogger) LogEvent(event AuditEvent) {
	event = Stamp(event)
	l.logger.Printf("[AUDIT] [%s] [%s] Entity: %s, Result: %s, Reason: %s, Metadata: %+v",
		event.Timestamp.Format(time.RFC3339), event.EventType, event.EntityID, event.Result, event.Reason, event.Metadata)
}

// NewLogAuditLogger returns an AuditLogger backed by logger (log.Default() when nil).
func NewLogAuditLogger(logger *log.Logger) AuditLogger {
	if logger == nil {
		logger = log.Default()
	}
	return &LogAuditLogger{logger: logger}
}

// MemoryAuditLogger keeps events in memory; used by the API and tests to
// surface recent integrity alarms.
type MemoryAuditLogger struct {
	mu     sync.Mutex
	events []AuditEvent
	next   AuditLogger
}

// NewMemoryAuditLogger records events and forwards them to next (optional).
func NewMemoryAuditLogger(next AuditLogger) *MemoryAuditLogger {
	return &MemoryAuditLogger{next: next}
}

func (m *MemoryAuditLogger) LogEvent(event AuditEvent) {
	event = Stamp(event)
	m.mu.Lock()
	m.events = append(m.events, event)
	m.mu.Unlock()
	if m.next != nil {
		m.next.LogEvent(event)
	}
}

// Events returns a copy of everything recorded so far.
func (m *MemoryAuditLogger) Events() []AuditEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]AuditEvent, len(m.events))
	copy(out, m.events)
	return out
}

// ByType returns recorded events of the given type.
func (m *MemoryAuditLogger) ByType(eventType string) []AuditEvent {
	var out []AuditEvent
	for _, e := range m.Events() {
		if e.EventType == eventType {
			out = append(out, e)
		}
	}
	return out
}
