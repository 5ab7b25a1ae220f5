package face

import (
	"context"
	"image"

	"github.com/saturnino-fabrica-de-software/ponto/internal/provider"
)

const (
	// MinLuma and MaxLuma bound the accepted average brightness (exclusive).
	MinLuma = 30.0
	MaxLuma = 220.0

	lumaStride = 10
)

// LumaGate accepts a frame when the average luma of a uniform subsample lies
// strictly between Min and Max. It rejects covered lenses and blown out
// captures; it does not detect faces.
type LumaGate struct {
	Min    float64
	Max    float64
	Stride int
}

func NewLumaGate() *LumaGate {
	return &LumaGate{
		Min:    MinLuma,
		Max:    MaxLuma,
		Stride: lumaStride,
	}
}

func (g *LumaGate) HasUsableFace(_ context.Context, frame *provider.Frame) bool {
	if frame.Empty() {
		return false
	}

	avg, ok := AverageLuma(frame.Image, g.Stride)
	if !ok {
		return false
	}

	return avg > g.Min && avg < g.Max
}

// AverageLuma averages Rec.601 luma (0.299R + 0.587G + 0.114B, 8-bit scale)
// over every stride-th pixel in raster order. ok is false for empty images.
func AverageLuma(img image.Image, stride int) (avg float64, ok bool) {
	if img == nil {
		return 0, false
	}
	if stride < 1 {
		stride = 1
	}

	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if w <= 0 || h <= 0 {
		return 0, false
	}

	var sum float64
	var n int
	for i := 0; i < w*h; i += stride {
		x := b.Min.X + i%w
		y := b.Min.Y + i/w
		sum += pixelLuma(img, x, y)
		n++
	}

	return sum / float64(n), true
}

func pixelLuma(img image.Image, x, y int) float64 {
	switch m := img.(type) {
	case *image.YCbCr:
		// JPEG stores full range Rec.601 luma in the Y plane.
		return float64(m.Y[m.YOffset(x, y)])
	case *image.Gray:
		return float64(m.Pix[m.PixOffset(x, y)])
	case *image.RGBA:
		i := m.PixOffset(x, y)
		return rec601(float64(m.Pix[i]), float64(m.Pix[i+1]), float64(m.Pix[i+2]))
	case *image.NRGBA:
		i := m.PixOffset(x, y)
		return rec601(float64(m.Pix[i]), float64(m.Pix[i+1]), float64(m.Pix[i+2]))
	}

	r, g, bl, _ := img.At(x, y).RGBA()
	return rec601(float64(r>>8), float64(g>>8), float64(bl>>8))
}

func rec601(r, g, b float64) float64 {
	return 0.299*r + 0.587*g + 0.114*b
}

var _ provider.QualityGate = (*LumaGate)(nil)
