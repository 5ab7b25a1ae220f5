package handler

import (
	"context"
	"encoding/json"
	"io"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/saturnino-fabrica-de-software/ponto/internal/domain"
	"github.com/saturnino-fabrica-de-software/ponto/internal/geo"
	"github.com/saturnino-fabrica-de-software/ponto/internal/service"
)

func TestCheckInHandler_TokenCheckIn(t *testing.T) {
	terminal := testTerminal()
	employeeID := uuid.New()

	tests := []struct {
		name           string
		body           string
		setupMock      func(*MockCheckInProcessor)
		expectedStatus int
		checkResponse  func(t *testing.T, body []byte)
	}{
		{
			name: "check-in with a position fix",
			body: `{"token":" badge-42 ","latitude":52.52,"longitude":13.405,"accuracy":8,"note":"morning"}`,
			setupMock: func(m *MockCheckInProcessor) {
				m.On("Process", mock.Anything, mock.MatchedBy(func(req service.CheckInRequest) bool {
					pos, ok := req.Position.(geo.Reported)
					return ok &&
						req.TerminalID == terminal.ID &&
						req.LocationID == terminal.LocationID &&
						req.Token == "badge-42" &&
						req.Note == "morning" &&
						pos.Coordinates != nil &&
						pos.Coordinates.Latitude == 52.52 &&
						*pos.Accuracy == 8
				})).Return(&domain.CheckInResult{
					Success:    true,
					Reason:     domain.ReasonCheckedIn,
					Action:     domain.ActionCheckIn,
					Method:     domain.MethodToken,
					EmployeeID: &employeeID,
					Rearm:      true,
				})
			},
			expectedStatus: 200,
			checkResponse: func(t *testing.T, body []byte) {
				var result domain.CheckInResult
				require.NoError(t, json.Unmarshal(body, &result))
				assert.True(t, result.Success)
				assert.Equal(t, domain.ReasonCheckedIn, result.Reason)
				assert.Equal(t, employeeID, *result.EmployeeID)
			},
		},
		{
			name: "rejections are still rendered as 200",
			body: `{"token":"nope"}`,
			setupMock: func(m *MockCheckInProcessor) {
				m.On("Process", mock.Anything, mock.Anything).Return(domain.Failure(domain.ReasonUnknownToken, "badge not recognized"))
			},
			expectedStatus: 200,
			checkResponse: func(t *testing.T, body []byte) {
				var result domain.CheckInResult
				require.NoError(t, json.Unmarshal(body, &result))
				assert.False(t, result.Success)
				assert.Equal(t, domain.ReasonUnknownToken, result.Reason)
				assert.True(t, result.Rearm)
			},
		},
		{
			name: "device error is forwarded",
			body: `{"token":"badge-42","position_error":"permission_denied"}`,
			setupMock: func(m *MockCheckInProcessor) {
				m.On("Process", mock.Anything, mock.MatchedBy(func(req service.CheckInRequest) bool {
					pos, ok := req.Position.(geo.Reported)
					return ok && pos.Error == geo.PositionErrorDenied && pos.Coordinates == nil
				})).Return(domain.Failure(domain.ReasonPositionUnavailable, "location permission denied"))
			},
			expectedStatus: 200,
		},
		{
			name:           "latitude without longitude",
			body:           `{"token":"badge-42","latitude":52.52}`,
			setupMock:      func(m *MockCheckInProcessor) {},
			expectedStatus: 422,
		},
		{
			name:           "malformed JSON",
			body:           `{"token":`,
			setupMock:      func(m *MockCheckInProcessor) {},
			expectedStatus: 400,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockService := new(MockCheckInProcessor)
			tt.setupMock(mockService)

			h := NewCheckInHandler(mockService, testLogger())
			app := createTestApp(terminal)
			app.Post("/v1/checkins/token", h.TokenCheckIn)

			req := httptest.NewRequest("POST", "/v1/checkins/token", strings.NewReader(tt.body))
			req.Header.Set("Content-Type", "application/json")

			resp, err := app.Test(req)
			require.NoError(t, err)
			assert.Equal(t, tt.expectedStatus, resp.StatusCode)

			if tt.checkResponse != nil {
				body, _ := io.ReadAll(resp.Body)
				tt.checkResponse(t, body)
			}

			mockService.AssertExpectations(t)
		})
	}
}

func TestCheckInHandler_FaceCheckIn(t *testing.T) {
	terminal := testTerminal()
	capture := []byte("\xff\xd8\xff\xe0jpeg-bytes")

	tests := []struct {
		name           string
		fields         map[string]string
		image          []byte
		contentType    string
		setupMock      func(*MockCheckInProcessor)
		expectedStatus int
		expectedReason domain.ReasonCode
	}{
		{
			name:        "face scan with position",
			fields:      map[string]string{"latitude": "52.52", "longitude": "13.405", "note": "gate B"},
			image:       capture,
			contentType: "image/jpeg",
			setupMock: func(m *MockCheckInProcessor) {
				m.On("Process", mock.Anything, mock.MatchedBy(func(req service.CheckInRequest) bool {
					pos := req.Position.(geo.Reported)
					return req.Token == "" &&
						string(req.Image) == string(capture) &&
						req.ContentType == "image/jpeg" &&
						req.Note == "gate B" &&
						pos.Coordinates.Longitude == 13.405
				})).Return(&domain.CheckInResult{Success: true, Reason: domain.ReasonCheckedOut, Rearm: true})
			},
			expectedStatus: 200,
			expectedReason: domain.ReasonCheckedOut,
		},
		{
			name:           "missing image is an invalid request",
			fields:         map[string]string{"latitude": "52.52", "longitude": "13.405"},
			setupMock:      func(m *MockCheckInProcessor) {},
			expectedStatus: 200,
			expectedReason: domain.ReasonInvalidRequest,
		},
		{
			name:           "unsupported image type",
			image:          []byte("GIF89a-bytes"),
			contentType:    "image/gif",
			setupMock:      func(m *MockCheckInProcessor) {},
			expectedStatus: 200,
			expectedReason: domain.ReasonInvalidRequest,
		},
		{
			name:           "non-numeric latitude",
			fields:         map[string]string{"latitude": "north", "longitude": "13.405"},
			image:          capture,
			contentType:    "image/jpeg",
			setupMock:      func(m *MockCheckInProcessor) {},
			expectedStatus: 422,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockService := new(MockCheckInProcessor)
			tt.setupMock(mockService)

			h := NewCheckInHandler(mockService, testLogger())
			app := createTestApp(terminal)
			app.Post("/v1/checkins/face", h.FaceCheckIn)

			body, contentType, err := createMultipartRequest(tt.fields, tt.image, tt.contentType)
			require.NoError(t, err)

			req := httptest.NewRequest("POST", "/v1/checkins/face", body)
			req.Header.Set("Content-Type", contentType)

			resp, err := app.Test(req)
			require.NoError(t, err)
			assert.Equal(t, tt.expectedStatus, resp.StatusCode)

			if tt.expectedReason != "" {
				var result domain.CheckInResult
				raw, _ := io.ReadAll(resp.Body)
				require.NoError(t, json.Unmarshal(raw, &result))
				assert.Equal(t, tt.expectedReason, result.Reason)
			}

			mockService.AssertExpectations(t)
		})
	}
}

func TestCheckInHandler_Status(t *testing.T) {
	terminal := testTerminal()
	employeeID := uuid.New()

	tests := []struct {
		name           string
		param          string
		setupMock      func(*MockCheckInProcessor)
		expectedStatus int
	}{
		{
			name:  "checked in",
			param: employeeID.String(),
			setupMock: func(m *MockCheckInProcessor) {
				m.On("Status", mock.Anything, employeeID).Return(&domain.AttendanceStatus{
					EmployeeID: employeeID,
					State:      domain.StateIn,
				}, nil)
			},
			expectedStatus: 200,
		},
		{
			name:  "unknown employee",
			param: employeeID.String(),
			setupMock: func(m *MockCheckInProcessor) {
				m.On("Status", mock.Anything, employeeID).Return(nil, domain.ErrEmployeeNotFound)
			},
			expectedStatus: 404,
		},
		{
			name:  "attendance store down",
			param: employeeID.String(),
			setupMock: func(m *MockCheckInProcessor) {
				m.On("Status", mock.Anything, employeeID).Return(nil, domain.ErrPersistence.WithError(context.DeadlineExceeded))
			},
			expectedStatus: 503,
		},
		{
			name:           "invalid id",
			param:          "not-a-uuid",
			setupMock:      func(m *MockCheckInProcessor) {},
			expectedStatus: 422,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockService := new(MockCheckInProcessor)
			tt.setupMock(mockService)

			h := NewCheckInHandler(mockService, testLogger())
			app := createTestApp(terminal)
			app.Get("/v1/attendance/:employee_id/status", h.Status)

			resp, err := app.Test(httptest.NewRequest("GET", "/v1/attendance/"+tt.param+"/status", nil))
			require.NoError(t, err)
			assert.Equal(t, tt.expectedStatus, resp.StatusCode)

			mockService.AssertExpectations(t)
		})
	}
}
