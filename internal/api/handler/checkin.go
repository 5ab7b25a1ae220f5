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
	"github.com/saturnino-fabrica-de-software/ponto/internal/service"
)

// CheckInProcessor runs the attendance state machine.
type CheckInProcessor interface {
	Process(ctx context.Context, req service.CheckInRequest) *domain.CheckInResult
	Status(ctx context.Context, employeeID uuid.UUID) (*domain.AttendanceStatus, error)
}

type CheckInHandler struct {
	service CheckInProcessor
	logger  *slog.Logger
}

func NewCheckInHandler(service CheckInProcessor, logger *slog.Logger) *CheckInHandler {
	return &CheckInHandler{
		service: service,
		logger:  logger,
	}
}

// TokenCheckInRequest is the JSON body of a badge scan.
type TokenCheckInRequest struct {
	Token string `json:"token"`
	Note  string `json:"note,omitempty"`
	PositionInput
}

// TokenCheckIn POST /v1/checkins/token
//
// The result is always 200; the kiosk reads success, reason_code and rearm.
func (h *CheckInHandler) TokenCheckIn(c *fiber.Ctx) error {
	terminal, err := middleware.GetTerminal(c)
	if err != nil {
		return err
	}

	var body TokenCheckInRequest
	if err := c.BodyParser(&body); err != nil {
		return domain.ErrBadRequest.WithError(err)
	}

	position, err := body.source()
	if err != nil {
		return err
	}

	result := h.service.Process(c.UserContext(), service.CheckInRequest{
		TerminalID: terminal.ID,
		LocationID: terminal.LocationID,
		Token:      strings.TrimSpace(body.Token),
		Position:   position,
		Note:       body.Note,
		IPAddress:  c.IP(),
	})

	return c.JSON(result)
}

// FaceCheckIn POST /v1/checkins/face
func (h *CheckInHandler) FaceCheckIn(c *fiber.Ctx) error {
	terminal, err := middleware.GetTerminal(c)
	if err != nil {
		return err
	}

	img, err := readCapture(c)
	if err != nil {
		// A bad capture is a scan outcome, not a transport error.
		if errors.Is(err, domain.ErrInvalidImage) || errors.Is(err, domain.ErrValidationFailed) {
			return c.JSON(domain.Failure(domain.ReasonInvalidRequest, "a single image capture is required"))
		}
		return err
	}

	input := PositionInput{PositionError: c.FormValue("position_error")}
	if input.Latitude, err = parseOptionalFloat("latitude", c.FormValue("latitude")); err != nil {
		return err
	}
	if input.Longitude, err = parseOptionalFloat("longitude", c.FormValue("longitude")); err != nil {
		return err
	}
	if input.Accuracy, err = parseOptionalFloat("accuracy", c.FormValue("accuracy")); err != nil {
		return err
	}

	position, err := input.source()
	if err != nil {
		return err
	}

	result := h.service.Process(c.UserContext(), service.CheckInRequest{
		TerminalID:  terminal.ID,
		LocationID:  terminal.LocationID,
		Image:       img.Data,
		ContentType: img.ContentType,
		Position:    position,
		Note:        c.FormValue("note"),
		IPAddress:   c.IP(),
	})

	return c.JSON(result)
}

// Status GET /v1/attendance/:employee_id/status
func (h *CheckInHandler) Status(c *fiber.Ctx) error {
	employeeID, err := uuid.Parse(c.Params("employee_id"))
	if err != nil {
		return domain.ErrValidationFailed.WithError(errors.New("employee_id must be a UUID"))
	}

	status, err := h.service.Status(c.UserContext(), employeeID)
	if err != nil {
		return err
	}

	return c.JSON(status)
}
