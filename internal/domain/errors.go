package domain

import (
	"fmt"
	"net/http"
)

type AppError struct {
	Code       string `json:"code"`
	Message    string `json:"message"`
	StatusCode int    `json:"-"`
	Err        error  `json:"-"`
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// Is matches on Code so copies produced by WithError still satisfy errors.Is
// against the predefined sentinels.
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

func newError(status int, code, message string) *AppError {
	return &AppError{Code: code, Message: message, StatusCode: status}
}

// WithError returns a copy carrying err as its cause. The sentinel itself
// is never mutated.
func (e *AppError) WithError(err error) *AppError {
	return &AppError{
		Code:       e.Code,
		Message:    e.Message,
		StatusCode: e.StatusCode,
		Err:        err,
	}
}

// Request errors
var (
	ErrInternal           = newError(http.StatusInternalServerError, "INTERNAL_ERROR", "An unexpected error occurred")
	ErrBadRequest         = newError(http.StatusBadRequest, "BAD_REQUEST", "Invalid request")
	ErrUnauthorized       = newError(http.StatusUnauthorized, "UNAUTHORIZED", "Invalid or missing API key")
	ErrForbidden          = newError(http.StatusForbidden, "FORBIDDEN", "Access denied")
	ErrNotFound           = newError(http.StatusNotFound, "NOT_FOUND", "Resource not found")
	ErrValidationFailed   = newError(http.StatusUnprocessableEntity, "VALIDATION_FAILED", "Request validation failed")
	ErrInvalidImage       = newError(http.StatusUnprocessableEntity, "INVALID_IMAGE", "Invalid image format or corrupted file")
	ErrInvalidThreshold   = newError(http.StatusUnprocessableEntity, "INVALID_THRESHOLD", "Threshold must be between 0 and 1")
	ErrInvalidCoordinates = newError(http.StatusUnprocessableEntity, "INVALID_COORDINATES", "Latitude must be within [-90, 90] and longitude within [-180, 180]")
)

// Registry errors
var (
	ErrEmployeeNotFound   = newError(http.StatusNotFound, "EMPLOYEE_NOT_FOUND", "Employee not found")
	ErrEmployeeInactive   = newError(http.StatusNotFound, "EMPLOYEE_INACTIVE", "Employee is inactive")
	ErrLocationNotFound   = newError(http.StatusNotFound, "LOCATION_NOT_FOUND", "Location not found")
	ErrTerminalNotFound   = newError(http.StatusNotFound, "TERMINAL_NOT_FOUND", "Terminal not found")
	ErrEnrollmentNotFound = newError(http.StatusNotFound, "ENROLLMENT_NOT_FOUND", "No face enrollment for this employee")
)

// Recognition errors
var (
	ErrQualityRejected  = newError(http.StatusUnprocessableEntity, "QUALITY_REJECTED", "Frame is too dark or overexposed to contain a usable face")
	ErrExtractionFailed = newError(http.StatusBadGateway, "EXTRACTION_FAILED", "Could not extract a face embedding")
	ErrNoMatch          = newError(http.StatusNotFound, "NO_MATCH", "No enrolled employee matched the face")
)

// Attendance errors
var (
	ErrAlreadyCheckedIn  = newError(http.StatusConflict, "ALREADY_CHECKED_IN", "Employee already has an open attendance interval")
	ErrIntervalNotOpen   = newError(http.StatusConflict, "INTERVAL_NOT_OPEN", "Attendance interval is already closed")
	ErrPersistence       = newError(http.StatusServiceUnavailable, "PERSISTENCE_ERROR", "Attendance store unavailable")
	ErrTerminalBusy      = newError(http.StatusConflict, "TERMINAL_BUSY", "Terminal is already processing a check-in")
	ErrRateLimitExceeded = newError(http.StatusTooManyRequests, "RATE_LIMIT_EXCEEDED", "Too many requests from this terminal")
)
