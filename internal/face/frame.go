package face

import (
	"bytes"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/webp"

	"github.com/saturnino-fabrica-de-software/ponto/internal/domain"
	"github.com/saturnino-fabrica-de-software/ponto/internal/provider"
)

// DecodeFrame decodes a JPEG, PNG or WebP capture. The raw bytes are kept on
// the frame for models that forward the encoded image.
func DecodeFrame(raw []byte, contentType string) (*provider.Frame, error) {
	if len(raw) == 0 {
		return nil, domain.ErrInvalidImage.WithError(fmt.Errorf("empty frame"))
	}

	img, format, err := image.Decode(bytes.NewReader(raw))
	if err != nil {
		return nil, domain.ErrInvalidImage.WithError(fmt.Errorf("decode frame: %w", err))
	}

	if contentType == "" {
		contentType = "image/" + format
	}

	return &provider.Frame{
		Image:       img,
		Raw:         raw,
		ContentType: contentType,
	}, nil
}
