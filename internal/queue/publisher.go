package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
)

const (
	AttendanceStreamName  = "ATTENDANCE"
	AttendanceSubjectBase = "attendance"
)

// AttendanceEvent is published after every successful check-in or
// check-out, for payroll and reporting consumers.
type AttendanceEvent struct {
	ID           uuid.UUID  `json:"id"`
	Action       string     `json:"action"`
	EmployeeID   uuid.UUID  `json:"employee_id"`
	IntervalID   uuid.UUID  `json:"interval_id"`
	LocationID   *uuid.UUID `json:"location_id,omitempty"`
	TerminalID   uuid.UUID  `json:"terminal_id"`
	Method       string     `json:"method"`
	OccurredAt   time.Time  `json:"occurred_at"`
	Anomaly      string     `json:"anomaly,omitempty"`
	BreakSeconds int64      `json:"break_seconds,omitempty"`
}

// Subject is "attendance.<action>.<employee_id>".
func (e AttendanceEvent) Subject() string {
	return fmt.Sprintf("%s.%s.%s", AttendanceSubjectBase, e.Action, e.EmployeeID)
}

// Publisher is what the check-in service needs from the message bus.
type Publisher interface {
	PublishAttendance(ctx context.Context, event AttendanceEvent) error
}

type Producer struct {
	nc *nats.Conn
	js jetstream.JetStream
}

func NewProducer(natsURL string) (*Producer, error) {
	nc, err := nats.Connect(natsURL,
		nats.Name("ponto-api"),
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("connect to nats: %w", err)
	}

	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("create jetstream context: %w", err)
	}

	return &Producer{nc: nc, js: js}, nil
}

// EnsureStream creates the attendance stream, retrying while NATS starts.
func (p *Producer) EnsureStream(ctx context.Context, logger *slog.Logger) error {
	cfg := jetstream.StreamConfig{
		Name:        AttendanceStreamName,
		Subjects:    []string{AttendanceSubjectBase + ".>"},
		Retention:   jetstream.LimitsPolicy,
		MaxAge:      7 * 24 * time.Hour,
		Storage:     jetstream.FileStorage,
		Duplicates:  2 * time.Minute,
		Description: "Check-in and check-out events",
	}

	const maxAttempts = 30
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		opCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		_, err := p.js.CreateOrUpdateStream(opCtx, cfg)
		cancel()
		if err == nil {
			logger.Info("ensured NATS stream", slog.String("name", cfg.Name))
			return nil
		}
		if attempt == maxAttempts {
			return fmt.Errorf("create stream %s: %w (after %d attempts)", cfg.Name, err, maxAttempts)
		}
		logger.Warn("ensure NATS stream (retrying...)",
			slog.String("name", cfg.Name),
			slog.Int("attempt", attempt),
			slog.Any("error", err),
		)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Second):
		}
	}
	return nil
}

// PublishAttendance uses the event id as message id so a retried publish is
// deduplicated by the stream.
func (p *Producer) PublishAttendance(ctx context.Context, event AttendanceEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal attendance event: %w", err)
	}

	if _, err := p.js.Publish(ctx, event.Subject(), payload, jetstream.WithMsgID(event.ID.String())); err != nil {
		return fmt.Errorf("publish attendance event: %w", err)
	}
	return nil
}

func (p *Producer) Ping() error {
	if !p.nc.IsConnected() {
		return fmt.Errorf("nats not connected")
	}
	return nil
}

func (p *Producer) Close() {
	p.nc.Close()
}

// NoOpPublisher drops events. Used when NATS_URL is empty.
type NoOpPublisher struct{}

func (NoOpPublisher) PublishAttendance(context.Context, AttendanceEvent) error { return nil }

var _ Publisher = (*Producer)(nil)
