package domain

import (
	"github.com/google/uuid"
)

type ReasonCode string

const (
	ReasonCheckedIn  ReasonCode = "checked_in"
	ReasonCheckedOut ReasonCode = "checked_out"

	ReasonInvalidRequest         ReasonCode = "invalid_request"
	ReasonTerminalBusy           ReasonCode = "terminal_busy"
	ReasonQualityRejected        ReasonCode = "quality_rejected"
	ReasonExtractionFailed       ReasonCode = "extraction_failed"
	ReasonNoMatch                ReasonCode = "no_match"
	ReasonIncompatibleEnrollment ReasonCode = "incompatible_enrollment"
	ReasonUnknownToken           ReasonCode = "unknown_token"
	ReasonIdentityNotFound       ReasonCode = "identity_not_found"
	ReasonIdentityInactive       ReasonCode = "identity_inactive"
	ReasonGeofenceDenied         ReasonCode = "geofence_denied"
	ReasonPositionUnavailable    ReasonCode = "position_unavailable"
	ReasonDuplicateScan          ReasonCode = "duplicate_scan"
	ReasonAlreadyCheckedIn       ReasonCode = "already_checked_in"
	ReasonPersistenceError       ReasonCode = "persistence_error"
)

type CheckInAction string

const (
	ActionCheckIn  CheckInAction = "check_in"
	ActionCheckOut CheckInAction = "check_out"
)

const AnomalyMultipleOpenIntervals = "multiple_open_intervals"

// CheckInResult is what the kiosk renders after a scan. Rearm tells the
// terminal whether it may resume scanning on its own.
type CheckInResult struct {
	Success        bool                 `json:"success"`
	Reason         ReasonCode           `json:"reason_code"`
	Detail         string               `json:"detail,omitempty"`
	Action         CheckInAction        `json:"action,omitempty"`
	Method         IdentificationMethod `json:"method,omitempty"`
	EmployeeID     *uuid.UUID           `json:"employee_id,omitempty"`
	EmployeeName   string               `json:"employee_name,omitempty"`
	Interval       *AttendanceInterval  `json:"interval,omitempty"`
	Similarity     *float64             `json:"similarity,omitempty"`
	DistanceMeters *float64             `json:"distance_meters,omitempty"`
	Anomaly        string               `json:"anomaly,omitempty"`
	Rearm          bool                 `json:"rearm"`
}

func Failure(reason ReasonCode, detail string) *CheckInResult {
	return &CheckInResult{
		Success: false,
		Reason:  reason,
		Detail:  detail,
		Rearm:   true,
	}
}
