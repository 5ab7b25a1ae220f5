package geo

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/saturnino-fabrica-de-software/ponto/internal/domain"
)

const DefaultPositionTimeout = 10 * time.Second

// Decision is the outcome of a geofence check. DistanceMeters is set only
// when a position was obtained for an enforced fence.
type Decision struct {
	Allowed        bool     `json:"allowed"`
	Enforced       bool     `json:"enforced"`
	DistanceMeters *float64 `json:"distance_meters,omitempty"`
	Error          string   `json:"error,omitempty"`

	err error
}

// Err returns the position acquisition error, if any.
func (d Decision) Err() error {
	return d.err
}

// PositionUnavailable reports whether the check failed because no usable
// position could be obtained.
func (d Decision) PositionUnavailable() bool {
	return d.err != nil
}

type Validator struct {
	timeout time.Duration
	logger  *slog.Logger
}

func NewValidator(timeout time.Duration, logger *slog.Logger) *Validator {
	if timeout <= 0 {
		timeout = DefaultPositionTimeout
	}
	return &Validator{
		timeout: timeout,
		logger:  logger.With("component", "geofence"),
	}
}

// Check allows everything when the fence has no center or radius. Otherwise
// the position is requested from source and compared against the radius; a
// missing position is never treated as inside the fence.
func (v *Validator) Check(ctx context.Context, fence domain.Geofence, source PositionSource) Decision {
	if !fence.Enabled() {
		return Decision{Allowed: true}
	}

	if source == nil {
		return v.unavailable(ErrPositionUnsupported)
	}

	posCtx, cancel := context.WithTimeout(ctx, v.timeout)
	defer cancel()

	pos, err := source.Position(posCtx)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			err = ErrPositionTimeout
		}
		return v.unavailable(err)
	}
	if !pos.Valid() {
		return v.unavailable(ErrInvalidPosition)
	}

	center := domain.Coordinates{Latitude: *fence.Latitude, Longitude: *fence.Longitude}
	distance := Haversine(center, pos)

	return Decision{
		Allowed:        distance <= *fence.RadiusMeters,
		Enforced:       true,
		DistanceMeters: &distance,
	}
}

func (v *Validator) unavailable(err error) Decision {
	v.logger.Debug("position unavailable", slog.Any("error", err))
	return Decision{
		Allowed:  false,
		Enforced: true,
		Error:    err.Error(),
		err:      err,
	}
}
