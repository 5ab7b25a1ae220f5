package ws

import (
	"time"

	"github.com/google/uuid"
)

type EventType string

const (
	EventConnected      EventType = "connected"
	EventCheckIn        EventType = "attendance.check_in"
	EventCheckOut       EventType = "attendance.check_out"
	EventEnrollment     EventType = "enrollment.updated"
	EventEnrollmentGone EventType = "enrollment.removed"
)

type Event struct {
	LocationID uuid.UUID   `json:"-"`
	Type       EventType   `json:"type"`
	Data       interface{} `json:"data"`
	Timestamp  time.Time   `json:"timestamp"`
}
