package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/saturnino-fabrica-de-software/ponto/internal/audit"
	"github.com/saturnino-fabrica-de-software/ponto/internal/domain"
	"github.com/saturnino-fabrica-de-software/ponto/internal/face"
	"github.com/saturnino-fabrica-de-software/ponto/internal/provider"
)

// IdentifyResult is the outcome of an administrative re-verification.
type IdentifyResult struct {
	Employee   domain.Employee `json:"employee"`
	Similarity float64         `json:"similarity"`
	Threshold  float64         `json:"threshold"`
	Compared   int             `json:"compared"`
	Skipped    int             `json:"skipped"`
}

// IdentifyService runs gate, extraction and matching without touching
// attendance. It defaults to the stricter admin threshold.
type IdentifyService struct {
	pipeline    *facePipeline
	threshold   float64
	auditLogger audit.Logger
	logger      *slog.Logger
}

func NewIdentifyService(
	enrollments EnrollmentRepository,
	gate provider.QualityGate,
	extractor EmbeddingExtractor,
	threshold float64,
	extractionTimeout time.Duration,
	auditLogger audit.Logger,
	logger *slog.Logger,
) *IdentifyService {
	if threshold <= 0 {
		threshold = face.AdminThreshold
	}
	if auditLogger == nil {
		auditLogger = &audit.NoOpLogger{}
	}
	logger = logger.With("component", "identify")
	return &IdentifyService{
		pipeline:    newFacePipeline(gate, extractor, enrollments, extractionTimeout, logger),
		threshold:   threshold,
		auditLogger: auditLogger,
		logger:      logger,
	}
}

// Identify returns the best enrolled match for the capture. It fails with
// domain.ErrNoMatch when nobody scores at or above the threshold.
func (s *IdentifyService) Identify(ctx context.Context, locationID *uuid.UUID, raw []byte, contentType string, threshold *float64) (*IdentifyResult, error) {
	t, err := validThreshold(threshold, s.threshold)
	if err != nil {
		return nil, err
	}

	probe, err := s.pipeline.embed(ctx, raw, contentType)
	if err != nil {
		return nil, err
	}

	match, err := s.pipeline.match(ctx, probe, locationID, t)
	if err != nil {
		return nil, err
	}

	if match.Match == nil {
		s.logger.InfoContext(ctx, "identification without match",
			slog.String("reason", string(match.Reason)),
			slog.Float64("best_similarity", match.BestSimilarity),
			slog.Int("compared", match.Compared),
			slog.Int("skipped", match.Skipped),
		)
		_ = s.auditLogger.Log(ctx, audit.Event{
			EventType:  audit.EventFaceIdentified,
			LocationID: locationID,
			Success:    false,
			Reason:     string(match.Reason),
		})
		return nil, domain.ErrNoMatch.WithError(fmt.Errorf("%s (best %.3f)", match.Reason, match.BestSimilarity))
	}

	empID := match.Match.Employee.ID
	_ = s.auditLogger.Log(ctx, audit.Event{
		EventType:  audit.EventFaceIdentified,
		EmployeeID: &empID,
		LocationID: locationID,
		Success:    true,
		Metadata: map[string]string{
			"similarity": fmt.Sprintf("%.4f", match.Match.Similarity),
		},
	})

	return &IdentifyResult{
		Employee:   match.Match.Employee,
		Similarity: match.Match.Similarity,
		Threshold:  t,
		Compared:   match.Compared,
		Skipped:    match.Skipped,
	}, nil
}
