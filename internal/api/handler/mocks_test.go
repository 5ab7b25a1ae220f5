package handler

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"mime/multipart"
	"net/textproto"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"github.com/saturnino-fabrica-de-software/ponto/internal/api/middleware"
	"github.com/saturnino-fabrica-de-software/ponto/internal/domain"
	"github.com/saturnino-fabrica-de-software/ponto/internal/service"
)

type MockCheckInProcessor struct {
	mock.Mock
}

func (m *MockCheckInProcessor) Process(ctx context.Context, req service.CheckInRequest) *domain.CheckInResult {
	args := m.Called(ctx, req)
	return args.Get(0).(*domain.CheckInResult)
}

func (m *MockCheckInProcessor) Status(ctx context.Context, employeeID uuid.UUID) (*domain.AttendanceStatus, error) {
	args := m.Called(ctx, employeeID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.AttendanceStatus), args.Error(1)
}

type MockEnrollmentManager struct {
	mock.Mock
}

func (m *MockEnrollmentManager) Register(ctx context.Context, employeeID uuid.UUID, raw []byte, contentType string) (*domain.FaceEnrollment, error) {
	args := m.Called(ctx, employeeID, raw, contentType)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.FaceEnrollment), args.Error(1)
}

func (m *MockEnrollmentManager) Remove(ctx context.Context, employeeID uuid.UUID) error {
	args := m.Called(ctx, employeeID)
	return args.Error(0)
}

type MockIdentifier struct {
	mock.Mock
}

func (m *MockIdentifier) Identify(ctx context.Context, locationID *uuid.UUID, raw []byte, contentType string, threshold *float64) (*service.IdentifyResult, error) {
	args := m.Called(ctx, locationID, raw, contentType, threshold)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.IdentifyResult), args.Error(1)
}

type MockLocationLookup struct {
	mock.Mock
}

func (m *MockLocationLookup) GetByID(ctx context.Context, id uuid.UUID) (*domain.Location, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Location), args.Error(1)
}

type MockPinger struct {
	mock.Mock
}

func (m *MockPinger) Ping(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

// testLogger returns a logger that discards all output
func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// createMultipartRequest builds a form with the given text fields and an
// optional image part.
func createMultipartRequest(fields map[string]string, imageContent []byte, contentType string) (*bytes.Buffer, string, error) {
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)

	for k, v := range fields {
		_ = writer.WriteField(k, v)
	}

	if imageContent != nil {
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", `form-data; name="image"; filename="capture.jpg"`)
		h.Set("Content-Type", contentType)

		part, err := writer.CreatePart(h)
		if err != nil {
			return nil, "", err
		}
		_, _ = part.Write(imageContent)
	}

	_ = writer.Close()
	return body, writer.FormDataContentType(), nil
}

// createTestApp simulates an authenticated kiosk.
func createTestApp(terminal *domain.Terminal) *fiber.App {
	app := fiber.New(fiber.Config{ErrorHandler: middleware.ErrorHandler(testLogger())})

	app.Use(func(c *fiber.Ctx) error {
		c.Locals(middleware.LocalTerminalID, terminal.ID)
		c.Locals(middleware.LocalTerminal, terminal)
		c.Locals(middleware.LocalLocationID, terminal.LocationID)
		return c.Next()
	})

	return app
}

func testTerminal() *domain.Terminal {
	return &domain.Terminal{
		ID:         uuid.New(),
		Name:       "Front door",
		LocationID: uuid.New(),
		IsActive:   true,
	}
}

func ptr[T any](v T) *T {
	return &v
}
