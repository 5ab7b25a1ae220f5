package domain

import (
	"github.com/google/uuid"
)

// Location is a workplace. Latitude, Longitude and RadiusMeters are all
// optional; the geofence is enforced only when the center and the radius
// are present.
type Location struct {
	ID           uuid.UUID `json:"id"`
	Name         string    `json:"name"`
	Latitude     *float64  `json:"latitude,omitempty"`
	Longitude    *float64  `json:"longitude,omitempty"`
	RadiusMeters *float64  `json:"radius_meters,omitempty"`
}

// Geofence returns the fence configured for the location.
func (l *Location) Geofence() Geofence {
	if l == nil {
		return Geofence{}
	}
	return Geofence{
		Latitude:     l.Latitude,
		Longitude:    l.Longitude,
		RadiusMeters: l.RadiusMeters,
	}
}

type Geofence struct {
	Latitude     *float64 `json:"latitude,omitempty"`
	Longitude    *float64 `json:"longitude,omitempty"`
	RadiusMeters *float64 `json:"radius_meters,omitempty"`
}

func (g Geofence) Enabled() bool {
	return g.Latitude != nil && g.Longitude != nil && g.RadiusMeters != nil
}

type Coordinates struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

func (c Coordinates) Valid() bool {
	return c.Latitude >= -90 && c.Latitude <= 90 &&
		c.Longitude >= -180 && c.Longitude <= 180
}
