package deepface

import (
	"context"
	"fmt"

	"github.com/saturnino-fabrica-de-software/ponto/internal/provider"
)

// Model is a remote embedding model served by a DeepFace API.
type Model struct {
	client *Client
}

func NewModel(config Config) *Model {
	return &Model{client: NewClient(config)}
}

// Loader returns a loader for the remote model. DeepFace loads its weights
// on its side, so there is nothing to warm up locally.
func Loader(config Config) provider.ModelLoader {
	return func(ctx context.Context) (provider.EmbeddingModel, error) {
		if config.BaseURL == "" {
			return nil, fmt.Errorf("deepface base url not configured")
		}
		return NewModel(config), nil
	}
}

// Embed returns the embedding of the largest face DeepFace found.
func (m *Model) Embed(ctx context.Context, frame *provider.Frame) ([]float64, error) {
	if frame == nil || len(frame.Raw) == 0 {
		return nil, fmt.Errorf("embed: frame has no encoded bytes")
	}

	results, err := m.client.Represent(ctx, frame.Raw, frame.ContentType)
	if err != nil {
		if isSpoofRejection(err) {
			return nil, ErrSpoofDetected
		}
		return nil, fmt.Errorf("represent: %w", err)
	}

	if len(results) == 0 {
		return nil, ErrNoFaceInResponse
	}

	best := results[0]
	for _, r := range results[1:] {
		if r.FacialArea.Area() > best.FacialArea.Area() {
			best = r
		}
	}

	if len(best.Embedding) == 0 {
		return nil, ErrNoFaceInResponse
	}

	return best.Embedding, nil
}

func (m *Model) Close() error {
	m.client.http.CloseIdleConnections()
	return nil
}

var _ provider.EmbeddingModel = (*Model)(nil)
