package domain

import (
	"time"

	"github.com/google/uuid"
)

// Employee representa uma pessoa que registra ponto nos terminais
type Employee struct {
	ID         uuid.UUID  `json:"id"`
	Name       string     `json:"name"`
	BadgeToken string     `json:"-"`
	LocationID *uuid.UUID `json:"location_id,omitempty"`
	IsActive   bool       `json:"is_active"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
}

// Terminal is a kiosk authenticated by API key. Its location scopes the
// face gallery used for identification.
type Terminal struct {
	ID         uuid.UUID  `json:"id"`
	Name       string     `json:"name"`
	LocationID uuid.UUID  `json:"location_id"`
	APIKeyHash string     `json:"-"`
	IsActive   bool       `json:"is_active"`
	LastSeenAt *time.Time `json:"last_seen_at,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
}
