package service

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/saturnino-fabrica-de-software/ponto/internal/domain"
	"github.com/saturnino-fabrica-de-software/ponto/internal/provider"
	"github.com/saturnino-fabrica-de-software/ponto/internal/ws"
)

// EmployeeRepository defines the interface for employee lookups
type EmployeeRepository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Employee, error)
	GetByToken(ctx context.Context, token string) (*domain.Employee, error)
}

// EnrollmentRepository defines the interface for face enrollment persistence
type EnrollmentRepository interface {
	Upsert(ctx context.Context, enrollment *domain.FaceEnrollment) error
	GetByEmployee(ctx context.Context, employeeID uuid.UUID) (*domain.FaceEnrollment, error)
	ListGallery(ctx context.Context, locationID *uuid.UUID) ([]domain.GalleryEntry, error)
	Delete(ctx context.Context, employeeID uuid.UUID) error
}

type LocationRepository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Location, error)
}

// AttendanceRepository persists attendance intervals. FindOpen returns the
// open intervals of an employee, most recent first.
type AttendanceRepository interface {
	FindOpen(ctx context.Context, employeeID uuid.UUID) ([]domain.AttendanceInterval, error)
	Open(ctx context.Context, interval *domain.AttendanceInterval) error
	Close(ctx context.Context, intervalID uuid.UUID, endedAt time.Time, breakDuration time.Duration) (*domain.AttendanceInterval, error)
}

// EmbeddingExtractor is satisfied by *face.Extractor.
type EmbeddingExtractor interface {
	Extract(ctx context.Context, frame *provider.Frame) ([]float64, error)
	ModelVersion() string
	Dimension() int
}

// Broadcaster pushes live attendance events to the kiosks of a location.
type Broadcaster interface {
	BroadcastToLocation(locationID uuid.UUID, eventType ws.EventType, data interface{})
}

type noopBroadcaster struct{}

func (noopBroadcaster) BroadcastToLocation(uuid.UUID, ws.EventType, interface{}) {}
