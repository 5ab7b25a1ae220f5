package face

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/saturnino-fabrica-de-software/ponto/internal/domain"
	"github.com/saturnino-fabrica-de-software/ponto/internal/provider"
)

// Extractor turns frames into L2-normalized embeddings. The model is loaded
// on the first call and reused afterwards; a failed load is retried on the
// next call.
type Extractor struct {
	load      provider.ModelLoader
	version   string
	dimension int
	logger    *slog.Logger

	mu    sync.Mutex
	model provider.EmbeddingModel
}

func NewExtractor(load provider.ModelLoader, version string, dimension int, logger *slog.Logger) *Extractor {
	return &Extractor{
		load:      load,
		version:   version,
		dimension: dimension,
		logger:    logger.With("component", "extractor"),
	}
}

// ModelVersion is the tag stored with enrollments produced by this extractor.
func (e *Extractor) ModelVersion() string {
	return e.version
}

// Dimension is the expected embedding length; 0 accepts any length.
func (e *Extractor) Dimension() int {
	return e.dimension
}

func (e *Extractor) Loaded() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.model != nil
}

// Extract fails with domain.ErrExtractionFailed on load, inference or shape
// errors. Callers must not enroll or match on a failed extraction.
func (e *Extractor) Extract(ctx context.Context, frame *provider.Frame) ([]float64, error) {
	if frame.Empty() {
		return nil, domain.ErrExtractionFailed.WithError(fmt.Errorf("empty frame"))
	}

	model, err := e.ensureModel(ctx)
	if err != nil {
		return nil, domain.ErrExtractionFailed.WithError(fmt.Errorf("load model %s: %w", e.version, err))
	}

	raw, err := model.Embed(ctx, frame)
	if err != nil {
		return nil, domain.ErrExtractionFailed.WithError(fmt.Errorf("embed: %w", err))
	}

	if len(raw) == 0 {
		return nil, domain.ErrExtractionFailed.WithError(fmt.Errorf("model returned an empty embedding"))
	}
	if e.dimension > 0 && len(raw) != e.dimension {
		return nil, domain.ErrExtractionFailed.WithError(
			fmt.Errorf("model returned %d dimensions, want %d", len(raw), e.dimension))
	}

	return Normalize(raw), nil
}

func (e *Extractor) ensureModel(ctx context.Context) (provider.EmbeddingModel, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.model != nil {
		return e.model, nil
	}

	start := time.Now()
	model, err := e.load(ctx)
	if err != nil {
		e.logger.Warn("model load failed",
			slog.String("model_version", e.version),
			slog.Any("error", err),
		)
		return nil, err
	}

	e.logger.Info("model loaded",
		slog.String("model_version", e.version),
		slog.Duration("took", time.Since(start)),
	)
	e.model = model
	return model, nil
}

// Close releases the model if it was ever loaded.
func (e *Extractor) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.model == nil {
		return nil
	}
	err := e.model.Close()
	e.model = nil
	return err
}
