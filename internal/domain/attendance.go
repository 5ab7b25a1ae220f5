package domain

import (
	"time"

	"github.com/google/uuid"
)

type IdentificationMethod string

const (
	MethodToken IdentificationMethod = "token"
	MethodFace  IdentificationMethod = "face"
)

// AttendanceInterval is a worked span. EndedAt == nil means the employee is
// currently checked in.
type AttendanceInterval struct {
	ID               uuid.UUID            `json:"id"`
	EmployeeID       uuid.UUID            `json:"employee_id"`
	LocationID       *uuid.UUID           `json:"location_id,omitempty"`
	TerminalID       *uuid.UUID           `json:"terminal_id,omitempty"`
	StartedAt        time.Time            `json:"started_at"`
	EndedAt          *time.Time           `json:"ended_at,omitempty"`
	BreakDuration    time.Duration        `json:"break_duration"`
	Note             string               `json:"note,omitempty"`
	Method           IdentificationMethod `json:"method"`
	CheckInDistanceM *float64             `json:"check_in_distance_m,omitempty"`
}

func (a *AttendanceInterval) IsOpen() bool {
	return a.EndedAt == nil
}

// Worked returns the interval length minus the break. Open intervals are
// measured up to now.
func (a *AttendanceInterval) Worked(now time.Time) time.Duration {
	end := now
	if a.EndedAt != nil {
		end = *a.EndedAt
	}
	d := end.Sub(a.StartedAt) - a.BreakDuration
	if d < 0 {
		return 0
	}
	return d
}

type AttendanceState string

const (
	StateIn  AttendanceState = "IN"
	StateOut AttendanceState = "OUT"
)

type AttendanceStatus struct {
	EmployeeID uuid.UUID           `json:"employee_id"`
	State      AttendanceState     `json:"state"`
	Open       *AttendanceInterval `json:"open_interval,omitempty"`
	Anomaly    string              `json:"anomaly,omitempty"`
}
