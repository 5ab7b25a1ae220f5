package deepface

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

var (
	ErrDeepFaceUnavailable = errors.New("deepface service unavailable")
	ErrInvalidResponse     = errors.New("invalid response from deepface")
	ErrNoFaceInResponse    = errors.New("no face data in deepface response")
	ErrSpoofDetected       = errors.New("deepface rejected the capture as a spoof")
)

// StatusError is returned for non-2xx answers.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("deepface returned status %d: %s", e.StatusCode, e.Body)
}

// Temporary reports whether retrying may help.
func (e *StatusError) Temporary() bool {
	return e.StatusCode >= 500 || e.StatusCode == 429
}

// isSpoofRejection recognizes the 400 DeepFace sends when anti-spoofing
// flags the face.
func isSpoofRejection(err error) bool {
	var se *StatusError
	return errors.As(err, &se) &&
		se.StatusCode == http.StatusBadRequest &&
		strings.Contains(strings.ToLower(se.Body), "spoof")
}
