package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/saturnino-fabrica-de-software/ponto/internal/audit"
	"github.com/saturnino-fabrica-de-software/ponto/internal/domain"
	"github.com/saturnino-fabrica-de-software/ponto/internal/observability"
	"github.com/saturnino-fabrica-de-software/ponto/internal/provider"
	"github.com/saturnino-fabrica-de-software/ponto/internal/storage"
	"github.com/saturnino-fabrica-de-software/ponto/internal/ws"
)

// ReferenceImage is the capture an enrollment was produced from.
type ReferenceImage struct {
	Data        []byte
	ContentType string
}

// EnrollmentService keeps the single active face enrollment of each
// employee.
type EnrollmentService struct {
	employees   EmployeeRepository
	enrollments EnrollmentRepository
	pipeline    *facePipeline
	images      storage.ImageStore
	auditLogger audit.Logger
	broadcaster Broadcaster
	logger      *slog.Logger
	now         func() time.Time
}

type EnrollmentOption func(*EnrollmentService)

// WithImageStore keeps the reference capture of every enrollment.
func WithImageStore(store storage.ImageStore) EnrollmentOption {
	return func(s *EnrollmentService) {
		s.images = store
	}
}

func WithEnrollmentAudit(logger audit.Logger) EnrollmentOption {
	return func(s *EnrollmentService) {
		s.auditLogger = logger
	}
}

func WithEnrollmentBroadcaster(b Broadcaster) EnrollmentOption {
	return func(s *EnrollmentService) {
		s.broadcaster = b
	}
}

func WithEnrollmentClock(now func() time.Time) EnrollmentOption {
	return func(s *EnrollmentService) {
		s.now = now
	}
}

func NewEnrollmentService(
	employees EmployeeRepository,
	enrollments EnrollmentRepository,
	gate provider.QualityGate,
	extractor EmbeddingExtractor,
	extractionTimeout time.Duration,
	logger *slog.Logger,
	opts ...EnrollmentOption,
) *EnrollmentService {
	logger = logger.With("component", "enrollment")
	s := &EnrollmentService{
		employees:   employees,
		enrollments: enrollments,
		pipeline:    newFacePipeline(gate, extractor, enrollments, extractionTimeout, logger),
		images:      storage.NoOpStore{},
		auditLogger: &audit.NoOpLogger{},
		broadcaster: noopBroadcaster{},
		logger:      logger,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Register extracts an embedding from the capture and enrolls it under the
// current model version. A failed extraction never touches the stored
// enrollment.
func (s *EnrollmentService) Register(ctx context.Context, employeeID uuid.UUID, raw []byte, contentType string) (*domain.FaceEnrollment, error) {
	if _, err := s.activeEmployee(ctx, employeeID); err != nil {
		return nil, err
	}

	probe, err := s.pipeline.embed(ctx, raw, contentType)
	if err != nil {
		return nil, err
	}

	return s.Enroll(ctx, employeeID, probe, s.pipeline.extractor.ModelVersion(), &ReferenceImage{
		Data:        raw,
		ContentType: contentType,
	})
}

// Enroll stores embedding as the only enrollment of the employee, replacing
// any previous one. versionTag identifies the model that produced it.
func (s *EnrollmentService) Enroll(ctx context.Context, employeeID uuid.UUID, embedding []float64, versionTag string, image *ReferenceImage) (*domain.FaceEnrollment, error) {
	emp, err := s.activeEmployee(ctx, employeeID)
	if err != nil {
		return nil, err
	}
	if len(embedding) == 0 {
		return nil, domain.ErrValidationFailed.WithError(errors.New("empty embedding"))
	}

	previous, err := s.enrollments.GetByEmployee(ctx, employeeID)
	if err != nil && !errors.Is(err, domain.ErrEnrollmentNotFound) {
		return nil, domain.ErrPersistence.WithError(fmt.Errorf("employee %s: load enrollment: %w", employeeID, err))
	}

	var imageKey string
	if image != nil && len(image.Data) > 0 {
		imageKey = storage.ReferenceKey(employeeID, s.now(), image.ContentType)
		if err := s.images.PutObject(ctx, imageKey, image.Data, image.ContentType); err != nil {
			return nil, fmt.Errorf("employee %s: store reference image: %w", employeeID, err)
		}
	}

	enrollment := &domain.FaceEnrollment{
		EmployeeID:        employeeID,
		Embedding:         embedding,
		Dimension:         len(embedding),
		ModelVersion:      versionTag,
		ReferenceImageKey: imageKey,
	}
	if err := s.enrollments.Upsert(ctx, enrollment); err != nil {
		if imageKey != "" {
			s.deleteImage(ctx, imageKey)
		}
		return nil, domain.ErrPersistence.WithError(fmt.Errorf("employee %s: upsert enrollment: %w", employeeID, err))
	}

	operation := "create"
	if previous != nil {
		operation = "replace"
		if previous.ReferenceImageKey != "" && previous.ReferenceImageKey != imageKey {
			s.deleteImage(ctx, previous.ReferenceImageKey)
		}
	}
	observability.Enrollments.WithLabelValues(operation).Inc()

	s.logger.InfoContext(ctx, "face enrolled",
		slog.String("employee_id", employeeID.String()),
		slog.String("operation", operation),
		slog.String("model_version", versionTag),
		slog.Int("dimension", enrollment.Dimension),
	)

	_ = s.auditLogger.Log(ctx, audit.Event{
		EventType:  audit.EventFaceEnrolled,
		EmployeeID: &employeeID,
		LocationID: emp.LocationID,
		Success:    true,
		Metadata: map[string]string{
			"operation":     operation,
			"model_version": versionTag,
		},
	})
	if emp.LocationID != nil {
		s.broadcaster.BroadcastToLocation(*emp.LocationID, ws.EventEnrollment, map[string]interface{}{
			"employee_id": employeeID,
			"operation":   operation,
		})
	}

	return enrollment, nil
}

// Gallery returns a snapshot of the enrollments visible from a location.
// A nil location returns every active enrollment.
func (s *EnrollmentService) Gallery(ctx context.Context, locationID *uuid.UUID) ([]domain.GalleryEntry, error) {
	gallery, err := s.enrollments.ListGallery(ctx, locationID)
	if err != nil {
		return nil, fmt.Errorf("list gallery: %w", err)
	}
	return gallery, nil
}

// Remove deletes the enrollment of an employee. The employee can no longer
// be identified by face until enrolled again.
func (s *EnrollmentService) Remove(ctx context.Context, employeeID uuid.UUID) error {
	emp, err := s.employees.GetByID(ctx, employeeID)
	if err != nil {
		return err
	}

	current, err := s.enrollments.GetByEmployee(ctx, employeeID)
	if err != nil {
		return err
	}

	if err := s.enrollments.Delete(ctx, employeeID); err != nil {
		return err
	}
	if current.ReferenceImageKey != "" {
		s.deleteImage(ctx, current.ReferenceImageKey)
	}
	observability.Enrollments.WithLabelValues("delete").Inc()

	_ = s.auditLogger.Log(ctx, audit.Event{
		EventType:  audit.EventFaceRemoved,
		EmployeeID: &employeeID,
		LocationID: emp.LocationID,
		Success:    true,
	})
	if emp.LocationID != nil {
		s.broadcaster.BroadcastToLocation(*emp.LocationID, ws.EventEnrollmentGone, map[string]interface{}{
			"employee_id": employeeID,
		})
	}
	return nil
}

func (s *EnrollmentService) activeEmployee(ctx context.Context, employeeID uuid.UUID) (*domain.Employee, error) {
	emp, err := s.employees.GetByID(ctx, employeeID)
	if err != nil {
		return nil, err
	}
	if !emp.IsActive {
		return nil, domain.ErrEmployeeInactive
	}
	return emp, nil
}

func (s *EnrollmentService) deleteImage(ctx context.Context, key string) {
	if err := s.images.DeleteObject(ctx, key); err != nil {
		s.logger.WarnContext(ctx, "failed to delete reference image",
			slog.String("key", key),
			slog.String("error", err.Error()),
		)
	}
}
