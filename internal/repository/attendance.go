package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/saturnino-fabrica-de-software/ponto/internal/domain"
)

type AttendanceRepository struct {
	pool PgxPool
}

func NewAttendanceRepository(pool PgxPool) *AttendanceRepository {
	return &AttendanceRepository{pool: pool}
}

const attendanceColumns = `id, employee_id, location_id, terminal_id, started_at, ended_at, break_seconds, note, method, check_in_distance_m`

// FindOpen returns every open interval of the employee, most recent first.
// Normally there is at most one.
func (r *AttendanceRepository) FindOpen(ctx context.Context, employeeID uuid.UUID) ([]domain.AttendanceInterval, error) {
	query := `
		SELECT ` + attendanceColumns + `
		FROM attendance_intervals
		WHERE employee_id = $1 AND ended_at IS NULL
		ORDER BY started_at DESC
	`

	rows, err := r.pool.Query(ctx, query, employeeID)
	if err != nil {
		return nil, fmt.Errorf("find open intervals: %w", err)
	}
	defer rows.Close()

	var intervals []domain.AttendanceInterval
	for rows.Next() {
		a, err := scanInterval(rows)
		if err != nil {
			return nil, fmt.Errorf("scan interval: %w", err)
		}
		intervals = append(intervals, *a)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("find open intervals: %w", err)
	}

	return intervals, nil
}

// Open inserts a new open interval. A concurrent open for the same employee
// trips the partial unique index and yields domain.ErrAlreadyCheckedIn.
func (r *AttendanceRepository) Open(ctx context.Context, a *domain.AttendanceInterval) error {
	query := `
		INSERT INTO attendance_intervals (id, employee_id, location_id, terminal_id, started_at, break_seconds, note, method, check_in_distance_m)
		VALUES ($1, $2, $3, $4, $5, 0, $6, $7, $8)
	`

	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}

	_, err := r.pool.Exec(ctx, query,
		a.ID,
		a.EmployeeID,
		a.LocationID,
		a.TerminalID,
		a.StartedAt,
		a.Note,
		string(a.Method),
		a.CheckInDistanceM,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrAlreadyCheckedIn
		}
		return fmt.Errorf("open interval: %w", err)
	}

	return nil
}

// Close ends an open interval. It fails with domain.ErrIntervalNotOpen if
// the interval was closed in the meantime.
func (r *AttendanceRepository) Close(ctx context.Context, id uuid.UUID, endedAt time.Time, breakDuration time.Duration) (*domain.AttendanceInterval, error) {
	query := `
		UPDATE attendance_intervals
		SET ended_at = $2, break_seconds = $3
		WHERE id = $1 AND ended_at IS NULL
		RETURNING ` + attendanceColumns

	a, err := scanInterval(r.pool.QueryRow(ctx, query, id, endedAt, int64(breakDuration/time.Second)))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrIntervalNotOpen
	}
	if err != nil {
		return nil, fmt.Errorf("close interval: %w", err)
	}

	return a, nil
}

func scanInterval(row pgx.Row) (*domain.AttendanceInterval, error) {
	var a domain.AttendanceInterval
	var breakSeconds int64
	var method string

	err := row.Scan(
		&a.ID,
		&a.EmployeeID,
		&a.LocationID,
		&a.TerminalID,
		&a.StartedAt,
		&a.EndedAt,
		&breakSeconds,
		&a.Note,
		&method,
		&a.CheckInDistanceM,
	)
	if err != nil {
		return nil, err
	}

	a.BreakDuration = time.Duration(breakSeconds) * time.Second
	a.Method = domain.IdentificationMethod(method)
	return &a, nil
}
