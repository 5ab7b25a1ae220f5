package handler

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/saturnino-fabrica-de-software/ponto/internal/api/middleware"
	"github.com/saturnino-fabrica-de-software/ponto/internal/domain"
	"github.com/saturnino-fabrica-de-software/ponto/internal/geo"
)

type LocationLookup interface {
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Location, error)
}

// GeofenceHandler lets installers verify a kiosk placement without
// creating attendance records.
type GeofenceHandler struct {
	locations LocationLookup
	validator *geo.Validator
	logger    *slog.Logger
}

func NewGeofenceHandler(locations LocationLookup, validator *geo.Validator, logger *slog.Logger) *GeofenceHandler {
	return &GeofenceHandler{
		locations: locations,
		validator: validator,
		logger:    logger,
	}
}

type GeofenceCheckResponse struct {
	LocationID   string          `json:"location_id"`
	LocationName string          `json:"location_name"`
	Fence        domain.Geofence `json:"fence"`
	geo.Decision
}

// Check GET /v1/geofence/check?latitude=&longitude=[&location_id=]
func (h *GeofenceHandler) Check(c *fiber.Ctx) error {
	terminal, err := middleware.GetTerminal(c)
	if err != nil {
		return err
	}

	locationID := terminal.LocationID
	if raw := strings.TrimSpace(c.Query("location_id")); raw != "" {
		if locationID, err = uuid.Parse(raw); err != nil {
			return domain.ErrValidationFailed.WithError(errors.New("location_id must be a UUID"))
		}
	}

	var input PositionInput
	if input.Latitude, err = parseOptionalFloat("latitude", c.Query("latitude")); err != nil {
		return err
	}
	if input.Longitude, err = parseOptionalFloat("longitude", c.Query("longitude")); err != nil {
		return err
	}
	input.PositionError = c.Query("position_error")

	position, err := input.source()
	if err != nil {
		return err
	}

	loc, err := h.locations.GetByID(c.UserContext(), locationID)
	if err != nil {
		return err
	}

	decision := h.validator.Check(c.UserContext(), loc.Geofence(), position)

	return c.JSON(GeofenceCheckResponse{
		LocationID:   loc.ID.String(),
		LocationName: loc.Name,
		Fence:        loc.Geofence(),
		Decision:     decision,
	})
}
