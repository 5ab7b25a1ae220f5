package handler

import (
	"errors"
	"io"
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/saturnino-fabrica-de-software/ponto/internal/domain"
)

// Captures above this size are rejected before they are read.
const maxCaptureBytes = 10 << 20

var acceptedCaptureTypes = map[string]struct{}{
	"image/jpeg": {},
	"image/png":  {},
	"image/webp": {},
}

// capture is the multipart "image" part of a scan or enrollment.
type capture struct {
	Data        []byte
	ContentType string
}

// readCapture loads the "image" form part. The content type is sniffed from
// the bytes; the declared header only decides when sniffing is inconclusive.
func readCapture(c *fiber.Ctx) (*capture, error) {
	part, err := c.FormFile("image")
	if err != nil {
		return nil, domain.ErrValidationFailed.WithError(errors.New("image is required"))
	}
	if part.Size == 0 || part.Size > maxCaptureBytes {
		return nil, domain.ErrInvalidImage.WithError(nil)
	}

	f, err := part.Open()
	if err != nil {
		return nil, domain.ErrInvalidImage.WithError(err)
	}
	defer func() { _ = f.Close() }()

	data, err := io.ReadAll(io.LimitReader(f, maxCaptureBytes))
	if err != nil {
		return nil, domain.ErrInvalidImage.WithError(err)
	}

	contentType := http.DetectContentType(data)
	if contentType == "application/octet-stream" {
		contentType = part.Header.Get(fiber.HeaderContentType)
	}
	if _, ok := acceptedCaptureTypes[contentType]; !ok {
		return nil, domain.ErrInvalidImage.WithError(nil)
	}

	return &capture{Data: data, ContentType: contentType}, nil
}
