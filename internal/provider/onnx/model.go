package onnx

import (
	"context"
	"errors"
	"fmt"
	"image"
	"sync"

	"github.com/disintegration/imaging"
	ort "github.com/yalue/onnxruntime_go"

	"github.com/saturnino-fabrica-de-software/ponto/internal/provider"
)

// Config describes an ArcFace-style ONNX model: square RGB input in CHW
// layout, one embedding output.
type Config struct {
	ModelPath   string
	LibraryPath string
	InputSize   int
	Dimension   int
	InputName   string
	OutputName  string
}

// DefaultConfig matches the insightface w600k_r50 export.
func DefaultConfig() Config {
	return Config{
		ModelPath:  "models/w600k_r50.onnx",
		InputSize:  112,
		Dimension:  512,
		InputName:  "input.1",
		OutputName: "683",
	}
}

// Model runs a local ONNX Runtime session. Sessions are not safe for
// concurrent Run calls, so inference is serialized.
type Model struct {
	cfg    Config
	mu     sync.Mutex
	sess   *ort.AdvancedSession
	input  *ort.Tensor[float32]
	output *ort.Tensor[float32]
}

// Loader initializes the runtime and the session on first use.
func Loader(cfg Config) provider.ModelLoader {
	return func(ctx context.Context) (provider.EmbeddingModel, error) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		return New(cfg)
	}
}

func New(cfg Config) (*Model, error) {
	if cfg.ModelPath == "" {
		return nil, errors.New("onnx model path not configured")
	}
	if cfg.InputSize <= 0 || cfg.Dimension <= 0 {
		return nil, fmt.Errorf("invalid onnx shape: input %d, dimension %d", cfg.InputSize, cfg.Dimension)
	}

	if !ort.IsInitialized() {
		if cfg.LibraryPath != "" {
			ort.SetSharedLibraryPath(cfg.LibraryPath)
		}
		if err := ort.InitializeEnvironment(); err != nil {
			return nil, fmt.Errorf("initialize onnxruntime: %w", err)
		}
	}

	size := int64(cfg.InputSize)
	input, err := ort.NewEmptyTensor[float32](ort.NewShape(1, 3, size, size))
	if err != nil {
		return nil, fmt.Errorf("create input tensor: %w", err)
	}

	output, err := ort.NewEmptyTensor[float32](ort.NewShape(1, int64(cfg.Dimension)))
	if err != nil {
		_ = input.Destroy()
		return nil, fmt.Errorf("create output tensor: %w", err)
	}

	sess, err := ort.NewAdvancedSession(cfg.ModelPath,
		[]string{cfg.InputName},
		[]string{cfg.OutputName},
		[]ort.Value{input},
		[]ort.Value{output},
		nil,
	)
	if err != nil {
		_ = input.Destroy()
		_ = output.Destroy()
		return nil, fmt.Errorf("create session %s: %w", cfg.ModelPath, err)
	}

	return &Model{cfg: cfg, sess: sess, input: input, output: output}, nil
}

func (m *Model) Embed(ctx context.Context, frame *provider.Frame) ([]float64, error) {
	if frame == nil || frame.Image == nil {
		return nil, errors.New("frame has no decoded image")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	data := Preprocess(frame.Image, m.cfg.InputSize)

	m.mu.Lock()
	defer m.mu.Unlock()

	copy(m.input.GetData(), data)
	if err := m.sess.Run(); err != nil {
		return nil, fmt.Errorf("run session: %w", err)
	}

	out := m.output.GetData()
	embedding := make([]float64, len(out))
	for i, v := range out {
		embedding[i] = float64(v)
	}
	return embedding, nil
}

func (m *Model) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	var errs []error
	if m.sess != nil {
		errs = append(errs, m.sess.Destroy())
		m.sess = nil
	}
	if m.input != nil {
		errs = append(errs, m.input.Destroy())
		m.input = nil
	}
	if m.output != nil {
		errs = append(errs, m.output.Destroy())
		m.output = nil
	}
	return errors.Join(errs...)
}

// Preprocess center-crops the frame to a square, resizes it to size x size
// and lays it out as CHW float32 with (p - 127.5) / 127.5 scaling.
func Preprocess(img image.Image, size int) []float32 {
	square := imaging.Fill(img, size, size, imaging.Center, imaging.Lanczos)

	plane := size * size
	out := make([]float32, 3*plane)
	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			i := square.PixOffset(x, y)
			p := y*size + x
			out[p] = (float32(square.Pix[i]) - 127.5) / 127.5
			out[plane+p] = (float32(square.Pix[i+1]) - 127.5) / 127.5
			out[2*plane+p] = (float32(square.Pix[i+2]) - 127.5) / 127.5
		}
	}
	return out
}

var _ provider.EmbeddingModel = (*Model)(nil)
