package docs

import (
	"github.com/go-swagno/swagno"
	"github.com/go-swagno/swagno/components/endpoint"
	"github.com/go-swagno/swagno/components/http/response"
	"github.com/go-swagno/swagno/components/mime"
	"github.com/go-swagno/swagno/components/parameter"
)

// CheckInResult is the body of every kiosk scan response
type CheckInResult struct {
	Success        bool     `json:"success" example:"true"`
	ReasonCode     string   `json:"reason_code" example:"checked_in"`
	Detail         string   `json:"detail,omitempty" example:""`
	Action         string   `json:"action,omitempty" example:"check_in"`
	Method         string   `json:"method,omitempty" example:"face"`
	EmployeeID     string   `json:"employee_id,omitempty" example:"550e8400-e29b-41d4-a716-446655440000"`
	EmployeeName   string   `json:"employee_name,omitempty" example:"Ana Souza"`
	Interval       Interval `json:"interval"`
	Similarity     float64  `json:"similarity,omitempty" example:"0.91"`
	DistanceMeters float64  `json:"distance_meters,omitempty" example:"12.4"`
	Anomaly        string   `json:"anomaly,omitempty" example:""`
	Rearm          bool     `json:"rearm" example:"true"`
}

// Interval is a worked span
type Interval struct {
	ID               string  `json:"id" example:"7c9e6679-7425-40de-944b-e07fc1f90ae7"`
	EmployeeID       string  `json:"employee_id" example:"550e8400-e29b-41d4-a716-446655440000"`
	LocationID       string  `json:"location_id,omitempty" example:"0e4e8a1c-3b55-4c3b-9c1f-2f0d5b7a9e11"`
	TerminalID       string  `json:"terminal_id,omitempty" example:"a1b2c3d4-0000-4000-8000-000000000001"`
	StartedAt        string  `json:"started_at" example:"2026-03-02T08:00:00Z"`
	EndedAt          string  `json:"ended_at,omitempty" example:"2026-03-02T16:00:00Z"`
	BreakDuration    int64   `json:"break_duration" example:"1800000000000"`
	Note             string  `json:"note,omitempty" example:""`
	Method           string  `json:"method" example:"token"`
	CheckInDistanceM float64 `json:"check_in_distance_m,omitempty" example:"12.4"`
}

// TokenCheckInRequest is the JSON body of a badge scan
type TokenCheckInRequest struct {
	Token         string  `json:"token" example:"badge-0042"`
	Latitude      float64 `json:"latitude,omitempty" example:"52.52"`
	Longitude     float64 `json:"longitude,omitempty" example:"13.405"`
	Accuracy      float64 `json:"accuracy,omitempty" example:"8"`
	PositionError string  `json:"position_error,omitempty" example:"permission_denied"`
	Note          string  `json:"note,omitempty" example:"forgot badge yesterday"`
}

// AttendanceStatus is the current state of an employee
type AttendanceStatus struct {
	EmployeeID   string   `json:"employee_id" example:"550e8400-e29b-41d4-a716-446655440000"`
	State        string   `json:"state" example:"IN"`
	OpenInterval Interval `json:"open_interval"`
	Anomaly      string   `json:"anomaly,omitempty" example:""`
}

// GeofenceCheckResponse is the outcome of a placement diagnostic
type GeofenceCheckResponse struct {
	LocationID     string  `json:"location_id" example:"0e4e8a1c-3b55-4c3b-9c1f-2f0d5b7a9e11"`
	LocationName   string  `json:"location_name" example:"Berlin HQ"`
	Fence          Fence   `json:"fence"`
	Allowed        bool    `json:"allowed" example:"true"`
	Enforced       bool    `json:"enforced" example:"true"`
	DistanceMeters float64 `json:"distance_meters,omitempty" example:"12.4"`
	Error          string  `json:"error,omitempty" example:""`
}

// Fence is the circle a check-in must fall in
type Fence struct {
	Latitude     float64 `json:"latitude,omitempty" example:"52.52"`
	Longitude    float64 `json:"longitude,omitempty" example:"13.405"`
	RadiusMeters float64 `json:"radius_meters,omitempty" example:"50"`
}

// EnrollmentResponse is returned after a face enrollment
type EnrollmentResponse struct {
	EmployeeID   string `json:"employee_id" example:"550e8400-e29b-41d4-a716-446655440000"`
	ModelVersion string `json:"model_version" example:"facenet512-v1"`
	Dimension    int    `json:"dimension" example:"512"`
	HasImage     bool   `json:"has_reference_image" example:"true"`
	EnrolledAt   string `json:"enrolled_at" example:"2026-03-02T08:00:00Z"`
}

// IdentifyResponse is returned by an administrative re-verification
type IdentifyResponse struct {
	EmployeeID   string  `json:"employee_id" example:"550e8400-e29b-41d4-a716-446655440000"`
	EmployeeName string  `json:"employee_name" example:"Ana Souza"`
	Similarity   float64 `json:"similarity" example:"0.93"`
	Threshold    float64 `json:"threshold" example:"0.85"`
	Compared     int     `json:"compared" example:"42"`
	LatencyMs    int64   `json:"latency_ms" example:"180"`
}

// ErrorResponse represents a standard error response
type ErrorResponse struct {
	Code    string `json:"code" example:"VALIDATION_FAILED"`
	Message string `json:"message" example:"Request validation failed"`
}

// EmptyResponse represents no content response (204)
type EmptyResponse struct{}

var (
	errUnauthorized = response.New(ErrorResponse{Code: "UNAUTHORIZED", Message: "Invalid or missing API key"}, "401", "Unauthorized")
	errRateLimited  = response.New(ErrorResponse{Code: "RATE_LIMIT_EXCEEDED", Message: "Too many requests from this terminal"}, "429", "Too Many Requests")
	errInternal     = response.New(ErrorResponse{Code: "INTERNAL_ERROR", Message: "An unexpected error occurred"}, "500", "Internal Server Error")
	errAdminKey     = response.New(ErrorResponse{Code: "FORBIDDEN", Message: "Access denied"}, "403", "Forbidden")
	terminalAuth    = []map[string][]string{{"ApiKeyAuth": {}}}
	adminAuth       = []map[string][]string{{"ApiKeyAuth": {}, "AdminKeyAuth": {}}}
)

// NewSwagger creates and configures the Swagger documentation
func NewSwagger() *swagno.Swagger {
	sw := swagno.New(swagno.Config{
		Title:       "Ponto Attendance API",
		Version:     "v1.0.0",
		Description: "Kiosk check-in by face or badge with geofenced attendance",
		Host:        "localhost:3000",
		Path:        "/v1",
	})

	endpoints := []*endpoint.EndPoint{
		// POST /v1/checkins/token
		endpoint.New(
			endpoint.POST,
			"/checkins/token",
			endpoint.WithTags("Check-in"),
			endpoint.WithSummary("Check in or out with a badge token"),
			endpoint.WithDescription("Toggles the attendance state of the badge holder. Scan outcomes, including rejections, are returned as 200 with a reason_code."),
			endpoint.WithConsume([]mime.MIME{mime.JSON}),
			endpoint.WithProduce([]mime.MIME{mime.JSON}),
			endpoint.WithBody(TokenCheckInRequest{}),
			endpoint.WithSuccessfulReturns([]response.Response{
				response.New(CheckInResult{}, "200", "Scan processed"),
			}),
			endpoint.WithErrors([]response.Response{
				response.New(ErrorResponse{Code: "BAD_REQUEST", Message: "Malformed JSON body"}, "400", "Bad Request"),
				errUnauthorized,
				response.New(ErrorResponse{Code: "INVALID_COORDINATES", Message: "Latitude and longitude must be sent together"}, "422", "Unprocessable Entity"),
				errRateLimited,
				errInternal,
			}),
			endpoint.WithSecurity(terminalAuth),
		),

		// POST /v1/checkins/face
		endpoint.New(
			endpoint.POST,
			"/checkins/face",
			endpoint.WithTags("Check-in"),
			endpoint.WithSummary("Check in or out with a face capture"),
			endpoint.WithDescription("Multipart form with an image field plus optional latitude, longitude, accuracy, position_error and note. The gallery is scoped to the terminal's location."),
			endpoint.WithConsume([]mime.MIME{mime.MIME("multipart/form-data")}),
			endpoint.WithProduce([]mime.MIME{mime.JSON}),
			endpoint.WithSuccessfulReturns([]response.Response{
				response.New(CheckInResult{}, "200", "Scan processed"),
			}),
			endpoint.WithErrors([]response.Response{
				errUnauthorized,
				response.New(ErrorResponse{Code: "VALIDATION_FAILED", Message: "latitude must be a number"}, "422", "Unprocessable Entity"),
				errRateLimited,
				errInternal,
			}),
			endpoint.WithSecurity(terminalAuth),
		),

		// GET /v1/attendance/{employee_id}/status
		endpoint.New(
			endpoint.GET,
			"/attendance/{employee_id}/status",
			endpoint.WithTags("Attendance"),
			endpoint.WithSummary("Current attendance state of an employee"),
			endpoint.WithProduce([]mime.MIME{mime.JSON}),
			endpoint.WithParams(
				parameter.StrParam("employee_id", parameter.Path, parameter.WithDescription("Employee UUID")),
			),
			endpoint.WithSuccessfulReturns([]response.Response{
				response.New(AttendanceStatus{}, "200", "Status retrieved"),
			}),
			endpoint.WithErrors([]response.Response{
				errUnauthorized,
				response.New(ErrorResponse{Code: "EMPLOYEE_NOT_FOUND", Message: "Employee not found"}, "404", "Not Found"),
				response.New(ErrorResponse{Code: "PERSISTENCE_ERROR", Message: "Attendance store unavailable"}, "503", "Service Unavailable"),
			}),
			endpoint.WithSecurity(terminalAuth),
		),

		// GET /v1/geofence/check
		endpoint.New(
			endpoint.GET,
			"/geofence/check",
			endpoint.WithTags("Geofence"),
			endpoint.WithSummary("Check a position against a location's geofence"),
			endpoint.WithDescription("Diagnostic for kiosk placement. Uses the terminal's location unless location_id is given. Nothing is recorded."),
			endpoint.WithProduce([]mime.MIME{mime.JSON}),
			endpoint.WithParams(
				parameter.StrParam("latitude", parameter.Query, parameter.WithDescription("Latitude in degrees")),
				parameter.StrParam("longitude", parameter.Query, parameter.WithDescription("Longitude in degrees")),
				parameter.StrParam("location_id", parameter.Query, parameter.WithDescription("Location UUID (default: terminal location)")),
				parameter.StrParam("position_error", parameter.Query, parameter.WithDescription("Device error code: permission_denied, timeout, unsupported")),
			),
			endpoint.WithSuccessfulReturns([]response.Response{
				response.New(GeofenceCheckResponse{}, "200", "Check completed"),
			}),
			endpoint.WithErrors([]response.Response{
				errUnauthorized,
				response.New(ErrorResponse{Code: "LOCATION_NOT_FOUND", Message: "Location not found"}, "404", "Not Found"),
				response.New(ErrorResponse{Code: "INVALID_COORDINATES", Message: "Latitude and longitude must be sent together"}, "422", "Unprocessable Entity"),
			}),
			endpoint.WithSecurity(terminalAuth),
		),

		// POST /v1/admin/enrollments
		endpoint.New(
			endpoint.POST,
			"/admin/enrollments",
			endpoint.WithTags("Admin"),
			endpoint.WithSummary("Enroll or re-enroll an employee's face"),
			endpoint.WithDescription("Multipart form with employee_id and image. Replaces any previous enrollment and stamps the current model version."),
			endpoint.WithConsume([]mime.MIME{mime.MIME("multipart/form-data")}),
			endpoint.WithProduce([]mime.MIME{mime.JSON}),
			endpoint.WithSuccessfulReturns([]response.Response{
				response.New(EnrollmentResponse{}, "201", "Enrolled"),
			}),
			endpoint.WithErrors([]response.Response{
				errUnauthorized,
				errAdminKey,
				response.New(ErrorResponse{Code: "EMPLOYEE_NOT_FOUND", Message: "Employee not found"}, "404", "Not Found"),
				response.New(ErrorResponse{Code: "QUALITY_REJECTED", Message: "No usable face in the capture"}, "422", "Unprocessable Entity"),
				response.New(ErrorResponse{Code: "EXTRACTION_FAILED", Message: "Could not compute the face embedding"}, "502", "Bad Gateway"),
				response.New(ErrorResponse{Code: "PERSISTENCE_ERROR", Message: "Enrollment store unavailable"}, "503", "Service Unavailable"),
			}),
			endpoint.WithSecurity(adminAuth),
		),

		// DELETE /v1/admin/enrollments/{employee_id}
		endpoint.New(
			endpoint.DELETE,
			"/admin/enrollments/{employee_id}",
			endpoint.WithTags("Admin"),
			endpoint.WithSummary("Remove an employee's face enrollment"),
			endpoint.WithProduce([]mime.MIME{mime.JSON}),
			endpoint.WithParams(
				parameter.StrParam("employee_id", parameter.Path, parameter.WithDescription("Employee UUID")),
			),
			endpoint.WithSuccessfulReturns([]response.Response{
				response.New(EmptyResponse{}, "204", "Enrollment removed"),
			}),
			endpoint.WithErrors([]response.Response{
				errUnauthorized,
				errAdminKey,
				response.New(ErrorResponse{Code: "ENROLLMENT_NOT_FOUND", Message: "Employee has no face enrollment"}, "404", "Not Found"),
			}),
			endpoint.WithSecurity(adminAuth),
		),

		// POST /v1/admin/identify
		endpoint.New(
			endpoint.POST,
			"/admin/identify",
			endpoint.WithTags("Admin"),
			endpoint.WithSummary("Identify a face without touching attendance"),
			endpoint.WithDescription("Multipart form with image and optional threshold (default: admin threshold). Searches the terminal location's gallery."),
			endpoint.WithConsume([]mime.MIME{mime.MIME("multipart/form-data")}),
			endpoint.WithProduce([]mime.MIME{mime.JSON}),
			endpoint.WithSuccessfulReturns([]response.Response{
				response.New(IdentifyResponse{}, "200", "Identified"),
			}),
			endpoint.WithErrors([]response.Response{
				errUnauthorized,
				errAdminKey,
				response.New(ErrorResponse{Code: "NO_MATCH", Message: "No enrolled face matches the capture"}, "404", "Not Found"),
				response.New(ErrorResponse{Code: "INVALID_THRESHOLD", Message: "Threshold must be between 0 and 1"}, "422", "Unprocessable Entity"),
				errRateLimited,
			}),
			endpoint.WithSecurity(adminAuth),
		),
	}

	sw.AddEndpoints(endpoints)

	return sw
}
