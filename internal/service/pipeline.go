package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/saturnino-fabrica-de-software/ponto/internal/domain"
	"github.com/saturnino-fabrica-de-software/ponto/internal/face"
	"github.com/saturnino-fabrica-de-software/ponto/internal/observability"
	"github.com/saturnino-fabrica-de-software/ponto/internal/provider"
)

// facePipeline runs gate -> extract -> match, strictly in that order.
type facePipeline struct {
	gate        provider.QualityGate
	extractor   EmbeddingExtractor
	enrollments EnrollmentRepository
	matcher     *face.Matcher
	timeout     time.Duration
	logger      *slog.Logger
}

func newFacePipeline(gate provider.QualityGate, extractor EmbeddingExtractor, enrollments EnrollmentRepository, timeout time.Duration, logger *slog.Logger) *facePipeline {
	if timeout <= 0 {
		timeout = DefaultExtractionTimeout
	}
	return &facePipeline{
		gate:        gate,
		extractor:   extractor,
		enrollments: enrollments,
		matcher:     face.NewMatcher(extractor.ModelVersion(), logger),
		timeout:     timeout,
		logger:      logger,
	}
}

// embed decodes the image, asks the quality gate and extracts the probe
// embedding. Errors are domain.ErrInvalidImage, domain.ErrQualityRejected
// or domain.ErrExtractionFailed.
func (p *facePipeline) embed(ctx context.Context, raw []byte, contentType string) ([]float64, error) {
	frame, err := face.DecodeFrame(raw, contentType)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	usable := p.gate.HasUsableFace(ctx, frame)
	observability.StageDuration.WithLabelValues("quality").Observe(time.Since(start).Seconds())
	if !usable {
		return nil, domain.ErrQualityRejected
	}

	extractCtx := ctx
	if p.timeout > 0 {
		var cancel context.CancelFunc
		extractCtx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}

	start = time.Now()
	probe, err := p.extractor.Extract(extractCtx, frame)
	observability.StageDuration.WithLabelValues("extract").Observe(time.Since(start).Seconds())
	if err != nil {
		if errors.Is(err, domain.ErrExtractionFailed) {
			return nil, err
		}
		return nil, domain.ErrExtractionFailed.WithError(err)
	}
	return probe, nil
}

// match compares probe against the gallery of the location.
func (p *facePipeline) match(ctx context.Context, probe []float64, locationID *uuid.UUID, threshold float64) (face.MatchResult, error) {
	gallery, err := p.enrollments.ListGallery(ctx, locationID)
	if err != nil {
		return face.MatchResult{}, domain.ErrPersistence.WithError(fmt.Errorf("load gallery: %w", err))
	}

	start := time.Now()
	result := p.matcher.FindBestMatch(probe, gallery, threshold)
	observability.StageDuration.WithLabelValues("match").Observe(time.Since(start).Seconds())

	if result.Compared > 0 {
		observability.MatchSimilarity.Observe(result.BestSimilarity)
	}
	if result.Skipped > 0 {
		observability.IncompatibleEnrollments.Add(float64(result.Skipped))
	}
	return result, nil
}

func validThreshold(threshold *float64, fallback float64) (float64, error) {
	if threshold == nil {
		return fallback, nil
	}
	// Written so that NaN fails too.
	if !(*threshold >= 0 && *threshold <= 1) {
		return 0, domain.ErrInvalidThreshold
	}
	return *threshold, nil
}
