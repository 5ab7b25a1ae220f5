package audit

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// EventType defines the type of auditable event
type EventType string

const (
	EventCheckIn         EventType = "CHECK_IN"
	EventCheckOut        EventType = "CHECK_OUT"
	EventCheckInRejected EventType = "CHECK_IN_REJECTED"
	EventAnomaly         EventType = "ATTENDANCE_ANOMALY"
	EventFaceEnrolled    EventType = "FACE_ENROLLED"
	EventFaceRemoved     EventType = "FACE_REMOVED"
	EventFaceIdentified  EventType = "FACE_IDENTIFIED"
)

// Event is one entry of the attendance audit trail. Biometric data never
// goes in here, only identifiers and outcomes.
type Event struct {
	ID         uuid.UUID         `json:"id"`
	Timestamp  time.Time         `json:"timestamp"`
	EventType  EventType         `json:"event_type"`
	EmployeeID *uuid.UUID        `json:"employee_id,omitempty"`
	TerminalID *uuid.UUID        `json:"terminal_id,omitempty"`
	LocationID *uuid.UUID        `json:"location_id,omitempty"`
	Method     string            `json:"method,omitempty"`
	Success    bool              `json:"success"`
	Reason     string            `json:"reason,omitempty"`
	Error      string            `json:"error,omitempty"`
	Metadata   map[string]string `json:"metadata,omitempty"`
	IPAddress  string            `json:"ip_address,omitempty"`
}

// Logger defines the interface for audit logging
type Logger interface {
	Log(ctx context.Context, event Event) error
}

// LogValue renders the event as one slog group, so handlers keep the
// fields typed instead of a JSON string inside a string.
func (e Event) LogValue() slog.Value {
	attrs := []slog.Attr{
		slog.String("id", e.ID.String()),
		slog.String("type", string(e.EventType)),
		slog.Time("timestamp", e.Timestamp),
		slog.Bool("success", e.Success),
	}
	for _, id := range []struct {
		key string
		val *uuid.UUID
	}{
		{"employee_id", e.EmployeeID},
		{"terminal_id", e.TerminalID},
		{"location_id", e.LocationID},
	} {
		if id.val != nil {
			attrs = append(attrs, slog.String(id.key, id.val.String()))
		}
	}
	for key, val := range map[string]string{
		"method":     e.Method,
		"reason":     e.Reason,
		"error":      e.Error,
		"ip_address": e.IPAddress,
	} {
		if val != "" {
			attrs = append(attrs, slog.String(key, val))
		}
	}
	if len(e.Metadata) > 0 {
		meta := make([]any, 0, len(e.Metadata))
		for k, v := range e.Metadata {
			meta = append(meta, slog.String(k, v))
		}
		attrs = append(attrs, slog.Group("metadata", meta...))
	}
	return slog.GroupValue(attrs...)
}

// SlogLogger writes the audit trail through the process logger.
type SlogLogger struct {
	logger *slog.Logger
}

func NewSlogLogger(logger *slog.Logger) *SlogLogger {
	return &SlogLogger{logger: logger.With("component", "audit")}
}

func (l *SlogLogger) Log(ctx context.Context, event Event) error {
	if event.ID == uuid.Nil {
		event.ID = uuid.New()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}

	level := slog.LevelInfo
	if event.EventType == EventAnomaly {
		level = slog.LevelWarn
	}
	l.logger.Log(ctx, level, "audit_event", slog.Any("event", event))
	return nil
}

// NoOpLogger drops events.
type NoOpLogger struct{}

func (l *NoOpLogger) Log(_ context.Context, _ Event) error {
	return nil
}
