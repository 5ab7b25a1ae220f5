package mock

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"errors"
	"image"

	"github.com/saturnino-fabrica-de-software/ponto/internal/provider"
)

const DefaultDimension = 512

// Model gera embeddings determinísticos a partir do hash da imagem, para
// desenvolvimento e testes. The same bytes always map to the same vector.
type Model struct {
	dimension int
}

func New(dimension int) *Model {
	if dimension <= 0 {
		dimension = DefaultDimension
	}
	return &Model{dimension: dimension}
}

func Loader(dimension int) provider.ModelLoader {
	return func(context.Context) (provider.EmbeddingModel, error) {
		return New(dimension), nil
	}
}

func (m *Model) Embed(_ context.Context, frame *provider.Frame) ([]float64, error) {
	if frame == nil {
		return nil, errors.New("nil frame")
	}

	seed := frame.Raw
	if len(seed) == 0 {
		seed = pixelSeed(frame.Image)
	}
	if len(seed) == 0 {
		return nil, errors.New("frame has neither bytes nor pixels")
	}

	return generateEmbedding(seed, m.dimension), nil
}

func (m *Model) Close() error {
	return nil
}

// generateEmbedding expands sha256 blocks into values in [-1, 1]. The
// result is not normalized; the extractor does that.
func generateEmbedding(seed []byte, dimension int) []float64 {
	embedding := make([]float64, 0, dimension)
	block := sha256.Sum256(seed)
	var counter [8]byte

	for n := uint64(0); len(embedding) < dimension; n++ {
		for _, b := range block {
			if len(embedding) == dimension {
				break
			}
			embedding = append(embedding, (float64(b)/255.0)*2-1)
		}
		binary.BigEndian.PutUint64(counter[:], n)
		block = sha256.Sum256(append(block[:], counter[:]...))
	}

	return embedding
}

func pixelSeed(img image.Image) []byte {
	if img == nil {
		return nil
	}
	b := img.Bounds()
	out := make([]byte, 0, 64)
	for y := b.Min.Y; y < b.Max.Y; y += max(1, b.Dy()/8) {
		for x := b.Min.X; x < b.Max.X; x += max(1, b.Dx()/8) {
			r, g, bl, _ := img.At(x, y).RGBA()
			out = append(out, byte(r>>8), byte(g>>8), byte(bl>>8))
		}
	}
	return out
}

var _ provider.EmbeddingModel = (*Model)(nil)
