package handler

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/saturnino-fabrica-de-software/ponto/internal/api/middleware"
	"github.com/saturnino-fabrica-de-software/ponto/internal/domain"
	"github.com/saturnino-fabrica-de-software/ponto/internal/service"
)

type EnrollmentManager interface {
	Register(ctx context.Context, employeeID uuid.UUID, raw []byte, contentType string) (*domain.FaceEnrollment, error)
	Remove(ctx context.Context, employeeID uuid.UUID) error
}

type Identifier interface {
	Identify(ctx context.Context, locationID *uuid.UUID, raw []byte, contentType string, threshold *float64) (*service.IdentifyResult, error)
}

// AdminHandler serves the enrollment and re-verification endpoints.
type AdminHandler struct {
	enrollments EnrollmentManager
	identifier  Identifier
	logger      *slog.Logger
}

func NewAdminHandler(enrollments EnrollmentManager, identifier Identifier, logger *slog.Logger) *AdminHandler {
	return &AdminHandler{
		enrollments: enrollments,
		identifier:  identifier,
		logger:      logger,
	}
}

type EnrollmentResponse struct {
	EmployeeID   string `json:"employee_id"`
	ModelVersion string `json:"model_version"`
	Dimension    int    `json:"dimension"`
	HasImage     bool   `json:"has_reference_image"`
	EnrolledAt   string `json:"enrolled_at"`
}

// Enroll POST /v1/admin/enrollments
func (h *AdminHandler) Enroll(c *fiber.Ctx) error {
	employeeID, err := uuid.Parse(strings.TrimSpace(c.FormValue("employee_id")))
	if err != nil {
		return domain.ErrValidationFailed.WithError(errors.New("employee_id must be a UUID"))
	}

	img, err := readCapture(c)
	if err != nil {
		return err
	}

	enrollment, err := h.enrollments.Register(c.UserContext(), employeeID, img.Data, img.ContentType)
	if err != nil {
		return err
	}

	return c.Status(fiber.StatusCreated).JSON(EnrollmentResponse{
		EmployeeID:   enrollment.EmployeeID.String(),
		ModelVersion: enrollment.ModelVersion,
		Dimension:    enrollment.Dimension,
		HasImage:     enrollment.ReferenceImageKey != "",
		EnrolledAt:   enrollment.UpdatedAt.Format(time.RFC3339),
	})
}

// RemoveEnrollment DELETE /v1/admin/enrollments/:employee_id
func (h *AdminHandler) RemoveEnrollment(c *fiber.Ctx) error {
	employeeID, err := uuid.Parse(c.Params("employee_id"))
	if err != nil {
		return domain.ErrValidationFailed.WithError(errors.New("employee_id must be a UUID"))
	}

	if err := h.enrollments.Remove(c.UserContext(), employeeID); err != nil {
		return err
	}

	return c.SendStatus(fiber.StatusNoContent)
}

type IdentifyResponse struct {
	EmployeeID   string  `json:"employee_id"`
	EmployeeName string  `json:"employee_name"`
	Similarity   float64 `json:"similarity"`
	Threshold    float64 `json:"threshold"`
	Compared     int     `json:"compared"`
	LatencyMs    int64   `json:"latency_ms"`
}

// Identify POST /v1/admin/identify
//
// The gallery is scoped to the calling terminal's location.
func (h *AdminHandler) Identify(c *fiber.Ctx) error {
	terminal, err := middleware.GetTerminal(c)
	if err != nil {
		return err
	}

	img, err := readCapture(c)
	if err != nil {
		return err
	}

	var threshold *float64
	if raw := strings.TrimSpace(c.FormValue("threshold")); raw != "" {
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return domain.ErrInvalidThreshold.WithError(err)
		}
		threshold = &v
	}

	start := time.Now()
	result, err := h.identifier.Identify(c.UserContext(), &terminal.LocationID, img.Data, img.ContentType, threshold)
	if err != nil {
		return err
	}

	return c.JSON(IdentifyResponse{
		EmployeeID:   result.Employee.ID.String(),
		EmployeeName: result.Employee.Name,
		Similarity:   result.Similarity,
		Threshold:    result.Threshold,
		Compared:     result.Compared,
		LatencyMs:    time.Since(start).Milliseconds(),
	})
}
