package provider

import (
	"context"
	"image"
)

// Frame is a captured kiosk image, decoded once and shared by every stage.
type Frame struct {
	Image       image.Image
	Raw         []byte
	ContentType string
}

// Empty reports whether the frame has no pixels to look at.
func (f *Frame) Empty() bool {
	if f == nil || f.Image == nil {
		return true
	}
	b := f.Image.Bounds()
	return b.Dx() <= 0 || b.Dy() <= 0
}

// EmbeddingModel define a interface para modelos que transformam uma face em vetor
type EmbeddingModel interface {
	// Embed returns the raw, not yet normalized, embedding of the face in the frame.
	Embed(ctx context.Context, frame *Frame) ([]float64, error)

	// Close releases the model resources.
	Close() error
}

// ModelLoader builds a model. It is called lazily, on first use.
type ModelLoader func(ctx context.Context) (EmbeddingModel, error)

// QualityGate rejects frames that cannot contain a usable face before the
// embedding model is invoked.
type QualityGate interface {
	HasUsableFace(ctx context.Context, frame *Frame) bool
}
