package service

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/saturnino-fabrica-de-software/ponto/internal/domain"
	"github.com/saturnino-fabrica-de-software/ponto/internal/provider"
	"github.com/saturnino-fabrica-de-software/ponto/internal/queue"
	"github.com/saturnino-fabrica-de-software/ponto/internal/ws"
)

type MockEmployeeRepository struct {
	mock.Mock
}

func (m *MockEmployeeRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Employee, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Employee), args.Error(1)
}

func (m *MockEmployeeRepository) GetByToken(ctx context.Context, token string) (*domain.Employee, error) {
	args := m.Called(ctx, token)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Employee), args.Error(1)
}

type MockEnrollmentRepository struct {
	mock.Mock
}

func (m *MockEnrollmentRepository) Upsert(ctx context.Context, e *domain.FaceEnrollment) error {
	args := m.Called(ctx, e)
	return args.Error(0)
}

func (m *MockEnrollmentRepository) GetByEmployee(ctx context.Context, employeeID uuid.UUID) (*domain.FaceEnrollment, error) {
	args := m.Called(ctx, employeeID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.FaceEnrollment), args.Error(1)
}

func (m *MockEnrollmentRepository) ListGallery(ctx context.Context, locationID *uuid.UUID) ([]domain.GalleryEntry, error) {
	args := m.Called(ctx, locationID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.GalleryEntry), args.Error(1)
}

func (m *MockEnrollmentRepository) Delete(ctx context.Context, employeeID uuid.UUID) error {
	args := m.Called(ctx, employeeID)
	return args.Error(0)
}

type MockLocationRepository struct {
	mock.Mock
}

func (m *MockLocationRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Location, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Location), args.Error(1)
}

type MockAttendanceRepository struct {
	mock.Mock
}

func (m *MockAttendanceRepository) FindOpen(ctx context.Context, employeeID uuid.UUID) ([]domain.AttendanceInterval, error) {
	args := m.Called(ctx, employeeID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.AttendanceInterval), args.Error(1)
}

func (m *MockAttendanceRepository) Open(ctx context.Context, a *domain.AttendanceInterval) error {
	args := m.Called(ctx, a)
	return args.Error(0)
}

func (m *MockAttendanceRepository) Close(ctx context.Context, id uuid.UUID, endedAt time.Time, breakDuration time.Duration) (*domain.AttendanceInterval, error) {
	args := m.Called(ctx, id, endedAt, breakDuration)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.AttendanceInterval), args.Error(1)
}

type MockExtractor struct {
	mock.Mock
	version   string
	dimension int
}

func (m *MockExtractor) Extract(ctx context.Context, frame *provider.Frame) ([]float64, error) {
	args := m.Called(ctx, frame)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]float64), args.Error(1)
}

func (m *MockExtractor) ModelVersion() string { return m.version }
func (m *MockExtractor) Dimension() int       { return m.dimension }

type MockQualityGate struct {
	mock.Mock
}

func (m *MockQualityGate) HasUsableFace(ctx context.Context, frame *provider.Frame) bool {
	args := m.Called(ctx, frame)
	return args.Bool(0)
}

type MockImageStore struct {
	mock.Mock
}

func (m *MockImageStore) PutObject(ctx context.Context, key string, data []byte, contentType string) error {
	args := m.Called(ctx, key, data, contentType)
	return args.Error(0)
}

func (m *MockImageStore) DeleteObject(ctx context.Context, key string) error {
	args := m.Called(ctx, key)
	return args.Error(0)
}

// recordingPublisher keeps every published event.
type recordingPublisher struct {
	mu     sync.Mutex
	events []queue.AttendanceEvent
	err    error
}

func (p *recordingPublisher) PublishAttendance(_ context.Context, event queue.AttendanceEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return p.err
}

func (p *recordingPublisher) Events() []queue.AttendanceEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]queue.AttendanceEvent(nil), p.events...)
}

type broadcast struct {
	LocationID uuid.UUID
	Type       ws.EventType
}

type recordingBroadcaster struct {
	mu   sync.Mutex
	sent []broadcast
}

func (b *recordingBroadcaster) BroadcastToLocation(locationID uuid.UUID, eventType ws.EventType, _ interface{}) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.sent = append(b.sent, broadcast{LocationID: locationID, Type: eventType})
}

func (b *recordingBroadcaster) Sent() []broadcast {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]broadcast(nil), b.sent...)
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// pngOf encodes a small uniform capture. Different colors produce
// different mock embeddings.
func pngOf(t *testing.T, c color.RGBA) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 16, 16))
	for y := 0; y < 16; y++ {
		for x := 0; x < 16; x++ {
			img.SetRGBA(x, y, c)
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func ptr[T any](v T) *T {
	return &v
}
