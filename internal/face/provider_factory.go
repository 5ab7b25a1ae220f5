package face

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/saturnino-fabrica-de-software/ponto/internal/config"
	"github.com/saturnino-fabrica-de-software/ponto/internal/provider"
	"github.com/saturnino-fabrica-de-software/ponto/internal/provider/deepface"
	"github.com/saturnino-fabrica-de-software/ponto/internal/provider/mock"
	"github.com/saturnino-fabrica-de-software/ponto/internal/provider/onnx"
	"github.com/saturnino-fabrica-de-software/ponto/internal/provider/rekognition"
)

// ExtractorType defines supported embedding backends
type ExtractorType string

const (
	// ExtractorDeepFace calls a DeepFace API over HTTP
	ExtractorDeepFace ExtractorType = "deepface"
	// ExtractorONNX runs an ArcFace model in-process with ONNX Runtime
	ExtractorONNX ExtractorType = "onnx"
	// ExtractorMock derives vectors from the image hash (dev/test only)
	ExtractorMock ExtractorType = "mock"
)

type GateType string

const (
	GateLuma        GateType = "luma"
	GateRekognition GateType = "rekognition"
)

// NewExtractorFromConfig wires the configured model behind a lazy Extractor.
// Nothing is loaded until the first extraction.
//
// Environment variables:
//   - EXTRACTOR_TYPE: "deepface", "onnx" or "mock" (default: "deepface")
//   - DEEPFACE_URL, DEEPFACE_MODEL, DEEPFACE_DETECTOR, ANTI_SPOOFING: DeepFace API settings
//   - ONNX_MODEL_PATH / ONNX_LIBRARY_PATH: model file and onnxruntime shared library
//   - MODEL_VERSION / EMBEDDING_DIM: tag and length of produced embeddings
func NewExtractorFromConfig(cfg *config.Config, logger *slog.Logger) (*Extractor, error) {
	loader, err := newLoader(cfg)
	if err != nil {
		return nil, err
	}
	return NewExtractor(loader, cfg.ModelVersion, cfg.EmbeddingDim, logger), nil
}

func newLoader(cfg *config.Config) (provider.ModelLoader, error) {
	switch ExtractorType(cfg.ExtractorType) {
	case ExtractorDeepFace, "":
		dfCfg := deepface.DefaultConfig()
		if cfg.DeepFaceURL != "" {
			dfCfg.BaseURL = cfg.DeepFaceURL
		}
		if cfg.DeepFaceModel != "" {
			dfCfg.Model = cfg.DeepFaceModel
		}
		if cfg.DeepFaceDetector != "" {
			dfCfg.Detector = cfg.DeepFaceDetector
		}
		dfCfg.AntiSpoofing = cfg.AntiSpoofing
		return deepface.Loader(dfCfg), nil

	case ExtractorONNX:
		onnxCfg := onnx.DefaultConfig()
		onnxCfg.ModelPath = cfg.ONNXModelPath
		onnxCfg.LibraryPath = cfg.ONNXLibraryPath
		if cfg.EmbeddingDim > 0 {
			onnxCfg.Dimension = cfg.EmbeddingDim
		}
		return onnx.Loader(onnxCfg), nil

	case ExtractorMock:
		return mock.Loader(cfg.EmbeddingDim), nil

	default:
		return nil, fmt.Errorf("unknown extractor type: %s (supported: %s, %s, %s)",
			cfg.ExtractorType, ExtractorDeepFace, ExtractorONNX, ExtractorMock)
	}
}

// NewQualityGateFromConfig returns the luma gate, optionally backed by
// Rekognition face detection.
func NewQualityGateFromConfig(ctx context.Context, cfg *config.Config, logger *slog.Logger) (provider.QualityGate, error) {
	luma := NewLumaGate()

	switch GateType(cfg.QualityGate) {
	case GateLuma, "":
		return luma, nil

	case GateRekognition:
		rekCfg := rekognition.DefaultConfig()
		if cfg.AWSRegion != "" {
			rekCfg.Region = cfg.AWSRegion
		}
		client, err := rekognition.NewClient(ctx, rekCfg)
		if err != nil {
			return nil, fmt.Errorf("create rekognition gate: %w", err)
		}
		return rekognition.NewQualityGate(client, luma, rekCfg, logger,
			rekognition.WithLumaBounds(luma.Min, luma.Max)), nil

	default:
		return nil, fmt.Errorf("unknown quality gate: %s (supported: %s, %s)", cfg.QualityGate, GateLuma, GateRekognition)
	}
}
