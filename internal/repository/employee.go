package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/saturnino-fabrica-de-software/ponto/internal/domain"
)

type EmployeeRepository struct {
	pool PgxPool
}

func NewEmployeeRepository(pool PgxPool) *EmployeeRepository {
	return &EmployeeRepository{pool: pool}
}

func (r *EmployeeRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Employee, error) {
	query := `
		SELECT id, name, badge_token, location_id, is_active, created_at, updated_at
		FROM employees
		WHERE id = $1
	`

	emp, err := scanEmployee(r.pool.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrEmployeeNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get employee by id: %w", err)
	}

	return emp, nil
}

// GetByToken is an exact lookup of a scanned badge code.
func (r *EmployeeRepository) GetByToken(ctx context.Context, token string) (*domain.Employee, error) {
	query := `
		SELECT id, name, badge_token, location_id, is_active, created_at, updated_at
		FROM employees
		WHERE badge_token = $1
	`

	emp, err := scanEmployee(r.pool.QueryRow(ctx, query, token))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrEmployeeNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get employee by token: %w", err)
	}

	return emp, nil
}

func (r *EmployeeRepository) Create(ctx context.Context, emp *domain.Employee) error {
	query := `
		INSERT INTO employees (id, name, badge_token, location_id, is_active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, NOW(), NOW())
		RETURNING created_at, updated_at
	`

	if emp.ID == uuid.Nil {
		emp.ID = uuid.New()
	}

	var token *string
	if emp.BadgeToken != "" {
		token = &emp.BadgeToken
	}

	err := r.pool.QueryRow(ctx, query,
		emp.ID,
		emp.Name,
		token,
		emp.LocationID,
		emp.IsActive,
	).Scan(&emp.CreatedAt, &emp.UpdatedAt)

	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrValidationFailed.WithError(fmt.Errorf("badge token already assigned"))
		}
		return fmt.Errorf("create employee: %w", err)
	}

	return nil
}

func scanEmployee(row pgx.Row) (*domain.Employee, error) {
	var emp domain.Employee
	var token *string

	err := row.Scan(
		&emp.ID,
		&emp.Name,
		&token,
		&emp.LocationID,
		&emp.IsActive,
		&emp.CreatedAt,
		&emp.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if token != nil {
		emp.BadgeToken = *token
	}
	return &emp, nil
}
