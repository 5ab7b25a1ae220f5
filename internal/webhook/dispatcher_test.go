package webhook

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/saturnino-fabrica-de-software/ponto/internal/queue"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testEvent() queue.AttendanceEvent {
	return queue.AttendanceEvent{
		ID:         uuid.New(),
		Action:     "check_in",
		EmployeeID: uuid.New(),
		IntervalID: uuid.New(),
		TerminalID: uuid.New(),
		Method:     "token",
		OccurredAt: time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC),
	}
}

func startDispatcher(t *testing.T, cfg Config) *Dispatcher {
	t.Helper()
	d := NewDispatcher(cfg, testLogger())
	go d.Run(context.Background())
	t.Cleanup(d.Stop)
	return d
}

func TestDispatcher_DeliversSignedEvent(t *testing.T) {
	type received struct {
		body    []byte
		headers http.Header
	}
	got := make(chan received, 1)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		got <- received{body: body, headers: r.Header.Clone()}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	d := startDispatcher(t, Config{URL: srv.URL, Secret: "s3cret"})
	event := testEvent()
	require.NoError(t, d.PublishAttendance(context.Background(), event))

	select {
	case r := <-got:
		assert.Equal(t, "check_in", r.headers.Get(HeaderEvent))
		assert.Equal(t, event.ID.String(), r.headers.Get(HeaderDelivery))

		ts, err := strconv.ParseInt(r.headers.Get(HeaderTimestamp), 10, 64)
		require.NoError(t, err)
		assert.True(t, Verify("s3cret", ts, r.body, r.headers.Get(HeaderSignature)))
		assert.Contains(t, string(r.body), event.EmployeeID.String())
	case <-time.After(2 * time.Second):
		t.Fatal("webhook was not delivered")
	}
}

func TestDispatcher_RetriesUntilSuccess(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	d := startDispatcher(t, Config{URL: srv.URL, MaxAttempts: 5, BaseDelay: time.Millisecond})
	require.NoError(t, d.PublishAttendance(context.Background(), testEvent()))

	assert.Eventually(t, func() bool { return calls.Load() == 3 }, 2*time.Second, 5*time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, int32(3), calls.Load())
}

func TestDispatcher_GivesUpAfterMaxAttempts(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	d := startDispatcher(t, Config{URL: srv.URL, MaxAttempts: 2, BaseDelay: time.Millisecond})
	require.NoError(t, d.PublishAttendance(context.Background(), testEvent()))

	assert.Eventually(t, func() bool { return calls.Load() == 2 }, 2*time.Second, 5*time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, int32(2), calls.Load())
}

func TestDispatcher_QueueFull(t *testing.T) {
	// Not started: nothing drains the queue.
	d := NewDispatcher(Config{URL: "http://127.0.0.1:1", QueueSize: 1}, testLogger())

	require.NoError(t, d.PublishAttendance(context.Background(), testEvent()))
	assert.ErrorIs(t, d.PublishAttendance(context.Background(), testEvent()), ErrQueueFull)
}

func TestDispatcher_UnsignedWithoutSecret(t *testing.T) {
	got := make(chan http.Header, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got <- r.Header.Clone()
	}))
	defer srv.Close()

	d := startDispatcher(t, Config{URL: srv.URL})
	require.NoError(t, d.PublishAttendance(context.Background(), testEvent()))

	select {
	case h := <-got:
		assert.Empty(t, h.Get(HeaderSignature))
		assert.NotEmpty(t, h.Get(HeaderTimestamp))
	case <-time.After(2 * time.Second):
		t.Fatal("webhook was not delivered")
	}
}
