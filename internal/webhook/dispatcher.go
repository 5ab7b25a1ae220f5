// Package webhook delivers attendance events to an HTTP endpoint (typically
// a payroll system) with an HMAC signature and retries.
package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/saturnino-fabrica-de-software/ponto/internal/observability"
	"github.com/saturnino-fabrica-de-software/ponto/internal/queue"
)

const (
	HeaderSignature = "X-Ponto-Signature"
	HeaderTimestamp = "X-Ponto-Timestamp"
	HeaderEvent     = "X-Ponto-Event"
	HeaderDelivery  = "X-Ponto-Delivery"
)

// ErrQueueFull is returned when the dispatcher cannot accept more events.
var ErrQueueFull = errors.New("webhook queue full")

type Config struct {
	URL         string
	Secret      string
	MaxAttempts int
	QueueSize   int
	Timeout     time.Duration
	// BaseDelay is doubled after every failed attempt.
	BaseDelay time.Duration
}

type job struct {
	event    queue.AttendanceEvent
	payload  []byte
	attempts int
}

// Dispatcher queues events in memory and delivers them from one goroutine.
// PublishAttendance never waits for the endpoint.
type Dispatcher struct {
	cfg    Config
	client *http.Client
	logger *slog.Logger
	now    func() time.Time

	jobs     chan job
	stopOnce sync.Once
	stopCh   chan struct{}
	done     chan struct{}
}

func NewDispatcher(cfg Config, logger *slog.Logger) *Dispatcher {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 5
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 256
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.BaseDelay <= 0 {
		cfg.BaseDelay = time.Second
	}

	return &Dispatcher{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
		logger: logger.With("component", "webhook"),
		now:    time.Now,
		jobs:   make(chan job, cfg.QueueSize),
		stopCh: make(chan struct{}),
		done:   make(chan struct{}),
	}
}

func (d *Dispatcher) PublishAttendance(_ context.Context, event queue.AttendanceEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	select {
	case d.jobs <- job{event: event, payload: payload}:
		return nil
	default:
		observability.WebhookDeliveries.WithLabelValues("dropped").Inc()
		return ErrQueueFull
	}
}

// Run delivers queued events until ctx is canceled or Stop is called.
func (d *Dispatcher) Run(ctx context.Context) {
	defer close(d.done)
	d.logger.Info("webhook dispatcher started", slog.String("url", d.cfg.URL))

	for {
		select {
		case <-ctx.Done():
			d.logger.Info("webhook dispatcher stopped")
			return
		case <-d.stopCh:
			d.logger.Info("webhook dispatcher stopped")
			return
		case j := <-d.jobs:
			d.deliver(ctx, j)
		}
	}
}

func (d *Dispatcher) Stop() {
	d.stopOnce.Do(func() { close(d.stopCh) })
	<-d.done
}

func (d *Dispatcher) deliver(ctx context.Context, j job) {
	for {
		j.attempts++
		err := d.send(ctx, j)
		if err == nil {
			observability.WebhookDeliveries.WithLabelValues("delivered").Inc()
			d.logger.Debug("webhook delivered",
				slog.String("event_id", j.event.ID.String()),
				slog.Int("attempts", j.attempts),
			)
			return
		}

		if j.attempts >= d.cfg.MaxAttempts {
			observability.WebhookDeliveries.WithLabelValues("failed").Inc()
			d.logger.Warn("webhook delivery failed",
				slog.String("event_id", j.event.ID.String()),
				slog.Int("attempts", j.attempts),
				slog.String("error", err.Error()),
			)
			return
		}

		delay := d.cfg.BaseDelay * time.Duration(1<<(j.attempts-1))
		d.logger.Info("webhook delivery scheduled for retry",
			slog.String("event_id", j.event.ID.String()),
			slog.Int("attempts", j.attempts),
			slog.Duration("delay", delay),
			slog.String("error", err.Error()),
		)

		select {
		case <-ctx.Done():
			return
		case <-d.stopCh:
			return
		case <-time.After(delay):
		}
	}
}

func (d *Dispatcher) send(ctx context.Context, j job) error {
	ts := d.now().Unix()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.cfg.URL, bytes.NewReader(j.payload))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "Ponto-Webhook/1.0")
	req.Header.Set(HeaderEvent, j.event.Action)
	req.Header.Set(HeaderDelivery, j.event.ID.String())
	req.Header.Set(HeaderTimestamp, strconv.FormatInt(ts, 10))
	if d.cfg.Secret != "" {
		req.Header.Set(HeaderSignature, Sign(d.cfg.Secret, ts, j.payload))
	}

	resp, err := d.client.Do(req)
	if err != nil {
		return err
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("HTTP %d", resp.StatusCode)
	}
	return nil
}

var _ queue.Publisher = (*Dispatcher)(nil)
