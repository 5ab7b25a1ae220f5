package domain

import (
	"time"

	"github.com/google/uuid"
)

// FaceEnrollment is the single active embedding of an employee.
type FaceEnrollment struct {
	ID                uuid.UUID `json:"id"`
	EmployeeID        uuid.UUID `json:"employee_id"`
	Embedding         []float64 `json:"-"`
	Dimension         int       `json:"dimension"`
	ModelVersion      string    `json:"model_version,omitempty"`
	ReferenceImageKey string    `json:"reference_image_key,omitempty"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}

// GalleryEntry joins an employee with its enrollment for one match pass.
type GalleryEntry struct {
	Employee   Employee
	Enrollment FaceEnrollment
}
