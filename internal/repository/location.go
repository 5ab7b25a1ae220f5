package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/saturnino-fabrica-de-software/ponto/internal/domain"
)

type LocationRepository struct {
	pool PgxPool
}

func NewLocationRepository(pool PgxPool) *LocationRepository {
	return &LocationRepository{pool: pool}
}

func (r *LocationRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Location, error) {
	query := `
		SELECT id, name, latitude, longitude, radius_meters
		FROM locations
		WHERE id = $1
	`

	var loc domain.Location
	err := r.pool.QueryRow(ctx, query, id).Scan(
		&loc.ID,
		&loc.Name,
		&loc.Latitude,
		&loc.Longitude,
		&loc.RadiusMeters,
	)

	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrLocationNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get location by id: %w", err)
	}

	return &loc, nil
}

func (r *LocationRepository) Create(ctx context.Context, loc *domain.Location) error {
	query := `
		INSERT INTO locations (id, name, latitude, longitude, radius_meters)
		VALUES ($1, $2, $3, $4, $5)
	`

	if loc.ID == uuid.Nil {
		loc.ID = uuid.New()
	}

	_, err := r.pool.Exec(ctx, query, loc.ID, loc.Name, loc.Latitude, loc.Longitude, loc.RadiusMeters)
	if err != nil {
		return fmt.Errorf("create location: %w", err)
	}

	return nil
}
