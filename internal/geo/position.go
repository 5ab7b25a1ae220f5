package geo

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/saturnino-fabrica-de-software/ponto/internal/domain"
)

var (
	ErrPermissionDenied    = errors.New("location permission denied")
	ErrPositionTimeout     = errors.New("timed out waiting for a position fix")
	ErrPositionUnsupported = errors.New("position not available on this device")
	ErrInvalidPosition     = errors.New("reported position is out of range")
)

// PositionSource yields the live position of the device performing the
// check-in. It may block, e.g. while the user answers a permission prompt.
type PositionSource interface {
	Position(ctx context.Context) (domain.Coordinates, error)
}

// Position error codes a kiosk may report instead of a fix.
const (
	PositionErrorDenied      = "permission_denied"
	PositionErrorTimeout     = "timeout"
	PositionErrorUnsupported = "unsupported"
)

// Reported is the fix (or the failure) that the kiosk sent along with the
// scan. A nil Coordinates with no Error means the device sent nothing.
type Reported struct {
	Coordinates *domain.Coordinates
	Accuracy    *float64
	Error       string
}

func (r Reported) Position(ctx context.Context) (domain.Coordinates, error) {
	if err := ctx.Err(); err != nil {
		return domain.Coordinates{}, err
	}

	if r.Error != "" {
		return domain.Coordinates{}, ParsePositionError(r.Error)
	}
	if r.Coordinates == nil {
		return domain.Coordinates{}, ErrPositionUnsupported
	}
	if !r.Coordinates.Valid() {
		return domain.Coordinates{}, fmt.Errorf("%w: %.6f,%.6f", ErrInvalidPosition, r.Coordinates.Latitude, r.Coordinates.Longitude)
	}
	return *r.Coordinates, nil
}

// ParsePositionError maps a device error code to its sentinel. Unknown codes
// are treated as unsupported.
func ParsePositionError(code string) error {
	switch strings.ToLower(strings.TrimSpace(code)) {
	case PositionErrorDenied, "denied":
		return ErrPermissionDenied
	case PositionErrorTimeout:
		return ErrPositionTimeout
	case PositionErrorUnsupported:
		return ErrPositionUnsupported
	default:
		return fmt.Errorf("%w: %s", ErrPositionUnsupported, code)
	}
}

// Fixed always reports the same coordinates.
type Fixed domain.Coordinates

func (f Fixed) Position(ctx context.Context) (domain.Coordinates, error) {
	if err := ctx.Err(); err != nil {
		return domain.Coordinates{}, err
	}
	return domain.Coordinates(f), nil
}

// PositionFunc adapts a function to PositionSource.
type PositionFunc func(ctx context.Context) (domain.Coordinates, error)

func (f PositionFunc) Position(ctx context.Context) (domain.Coordinates, error) {
	return f(ctx)
}
