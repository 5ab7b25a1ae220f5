package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/pgvector/pgvector-go"

	"github.com/saturnino-fabrica-de-software/ponto/internal/domain"
)

type EnrollmentRepository struct {
	pool PgxPool
}

func NewEnrollmentRepository(pool PgxPool) *EnrollmentRepository {
	return &EnrollmentRepository{pool: pool}
}

// Upsert creates the enrollment or replaces the existing one for the same
// employee in a single statement. Readers see either the old row or the new
// one.
func (r *EnrollmentRepository) Upsert(ctx context.Context, e *domain.FaceEnrollment) error {
	query := `
		INSERT INTO face_enrollments (id, employee_id, embedding, dimension, model_version, reference_image_key, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, NOW(), NOW())
		ON CONFLICT (employee_id) DO UPDATE SET
			embedding = EXCLUDED.embedding,
			dimension = EXCLUDED.dimension,
			model_version = EXCLUDED.model_version,
			reference_image_key = EXCLUDED.reference_image_key,
			updated_at = NOW()
		RETURNING id, created_at, updated_at
	`

	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	if e.Dimension == 0 {
		e.Dimension = len(e.Embedding)
	}

	err := r.pool.QueryRow(ctx, query,
		e.ID,
		e.EmployeeID,
		toVector(e.Embedding),
		e.Dimension,
		e.ModelVersion,
		e.ReferenceImageKey,
	).Scan(&e.ID, &e.CreatedAt, &e.UpdatedAt)

	if err != nil {
		return fmt.Errorf("upsert enrollment: %w", err)
	}

	return nil
}

func (r *EnrollmentRepository) GetByEmployee(ctx context.Context, employeeID uuid.UUID) (*domain.FaceEnrollment, error) {
	query := `
		SELECT id, employee_id, embedding, dimension, model_version, reference_image_key, created_at, updated_at
		FROM face_enrollments
		WHERE employee_id = $1
	`

	var e domain.FaceEnrollment
	var embedding *pgvector.Vector

	err := r.pool.QueryRow(ctx, query, employeeID).Scan(
		&e.ID,
		&e.EmployeeID,
		&embedding,
		&e.Dimension,
		&e.ModelVersion,
		&e.ReferenceImageKey,
		&e.CreatedAt,
		&e.UpdatedAt,
	)

	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrEnrollmentNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get enrollment: %w", err)
	}

	e.Embedding = fromVector(embedding)
	return &e, nil
}

// ListGallery returns enrollments of active employees. With a location, only
// employees assigned there or to no location at all are included.
func (r *EnrollmentRepository) ListGallery(ctx context.Context, locationID *uuid.UUID) ([]domain.GalleryEntry, error) {
	query := `
		SELECT e.id, e.name, e.location_id, e.is_active, e.created_at, e.updated_at,
			f.id, f.embedding, f.dimension, f.model_version, f.reference_image_key, f.created_at, f.updated_at
		FROM face_enrollments f
		INNER JOIN employees e ON e.id = f.employee_id
		WHERE e.is_active = true
			AND ($1::uuid IS NULL OR e.location_id = $1 OR e.location_id IS NULL)
		ORDER BY f.created_at, f.id
	`

	rows, err := r.pool.Query(ctx, query, locationID)
	if err != nil {
		return nil, fmt.Errorf("list gallery: %w", err)
	}
	defer rows.Close()

	var gallery []domain.GalleryEntry
	for rows.Next() {
		var g domain.GalleryEntry
		var embedding *pgvector.Vector

		if err := rows.Scan(
			&g.Employee.ID,
			&g.Employee.Name,
			&g.Employee.LocationID,
			&g.Employee.IsActive,
			&g.Employee.CreatedAt,
			&g.Employee.UpdatedAt,
			&g.Enrollment.ID,
			&embedding,
			&g.Enrollment.Dimension,
			&g.Enrollment.ModelVersion,
			&g.Enrollment.ReferenceImageKey,
			&g.Enrollment.CreatedAt,
			&g.Enrollment.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan gallery entry: %w", err)
		}

		g.Enrollment.EmployeeID = g.Employee.ID
		g.Enrollment.Embedding = fromVector(embedding)
		gallery = append(gallery, g)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list gallery: %w", err)
	}

	return gallery, nil
}

func (r *EnrollmentRepository) Delete(ctx context.Context, employeeID uuid.UUID) error {
	query := `DELETE FROM face_enrollments WHERE employee_id = $1`

	result, err := r.pool.Exec(ctx, query, employeeID)
	if err != nil {
		return fmt.Errorf("delete enrollment: %w", err)
	}

	if result.RowsAffected() == 0 {
		return domain.ErrEnrollmentNotFound
	}

	return nil
}
