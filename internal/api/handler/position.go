package handler

import (
	"errors"
	"strconv"
	"strings"

	"github.com/saturnino-fabrica-de-software/ponto/internal/domain"
	"github.com/saturnino-fabrica-de-software/ponto/internal/geo"
)

// PositionInput is what a kiosk reports about its location. Latitude and
// Longitude come together or not at all; PositionError carries the device
// failure code when no fix could be taken.
type PositionInput struct {
	Latitude      *float64 `json:"latitude,omitempty"`
	Longitude     *float64 `json:"longitude,omitempty"`
	Accuracy      *float64 `json:"accuracy,omitempty"`
	PositionError string   `json:"position_error,omitempty"`
}

func (p PositionInput) source() (geo.Reported, error) {
	if (p.Latitude == nil) != (p.Longitude == nil) {
		return geo.Reported{}, domain.ErrInvalidCoordinates.WithError(errors.New("latitude and longitude must be sent together"))
	}

	reported := geo.Reported{
		Accuracy: p.Accuracy,
		Error:    strings.TrimSpace(p.PositionError),
	}
	if p.Latitude != nil {
		reported.Coordinates = &domain.Coordinates{Latitude: *p.Latitude, Longitude: *p.Longitude}
	}
	return reported, nil
}

// parseOptionalFloat reads a form or query value; an empty value is nil.
func parseOptionalFloat(field, raw string) (*float64, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return nil, domain.ErrValidationFailed.WithError(errors.New(field + " must be a number"))
	}
	return &v, nil
}
