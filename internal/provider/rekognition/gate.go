package rekognition

import (
	"context"
	"errors"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/service/rekognition"
	"github.com/aws/aws-sdk-go-v2/service/rekognition/types"

	"github.com/saturnino-fabrica-de-software/ponto/internal/provider"
)

const (
	// maxImageSize is the maximum image size accepted inline by DetectFaces (5MB)
	maxImageSize = 5 * 1024 * 1024

	// Rekognition brightness is reported on a 0-100 scale.
	brightnessScale = 255.0 / 100.0
)

// QualityGate runs a local gate first and, when that passes, asks
// Rekognition whether a face is actually present with acceptable
// brightness. If Rekognition cannot be reached the local verdict stands.
type QualityGate struct {
	api           DetectFacesAPI
	local         provider.QualityGate
	minConfidence float64
	minLuma       float64
	maxLuma       float64
	logger        *slog.Logger
}

type GateOption func(*QualityGate)

// WithLumaBounds sets the brightness band, on the 0-255 luma scale.
func WithLumaBounds(lo, hi float64) GateOption {
	return func(g *QualityGate) {
		g.minLuma = lo
		g.maxLuma = hi
	}
}

func NewQualityGate(api DetectFacesAPI, local provider.QualityGate, cfg Config, logger *slog.Logger, opts ...GateOption) *QualityGate {
	g := &QualityGate{
		api:           api,
		local:         local,
		minConfidence: cfg.MinConfidence,
		minLuma:       30,
		maxLuma:       220,
		logger:        logger.With("component", "rekognition_gate"),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

func (g *QualityGate) HasUsableFace(ctx context.Context, frame *provider.Frame) bool {
	if !g.local.HasUsableFace(ctx, frame) {
		return false
	}

	if err := supported(frame); err != nil {
		g.logger.Debug("skipping rekognition check", slog.Any("error", err))
		return true
	}

	out, err := g.api.DetectFaces(ctx, &rekognition.DetectFacesInput{
		Image:      &types.Image{Bytes: frame.Raw},
		Attributes: []types.Attribute{types.AttributeDefault},
	})
	if err != nil {
		if ctx.Err() != nil {
			return false
		}
		g.logger.Warn("rekognition unavailable, using local verdict",
			slog.String("aws_code", apiErrorCode(err)),
			slog.Any("error", classify(err)),
		)
		return true
	}

	for _, detail := range out.FaceDetails {
		if g.usable(detail) {
			return true
		}
	}
	return false
}

func (g *QualityGate) usable(detail types.FaceDetail) bool {
	if detail.Confidence == nil || float64(*detail.Confidence) < g.minConfidence {
		return false
	}
	if detail.Quality == nil || detail.Quality.Brightness == nil {
		return true
	}
	luma := float64(*detail.Quality.Brightness) * brightnessScale
	return luma > g.minLuma && luma < g.maxLuma
}

func supported(frame *provider.Frame) error {
	if len(frame.Raw) == 0 || len(frame.Raw) > maxImageSize {
		return ErrUnsupportedImage
	}
	switch frame.ContentType {
	case "image/jpeg", "image/png":
		return nil
	}
	return errors.Join(ErrUnsupportedImage, errors.New("only jpeg and png are accepted"))
}

var _ provider.QualityGate = (*QualityGate)(nil)
