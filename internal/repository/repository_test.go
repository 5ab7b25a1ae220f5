package repository

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/pgvector/pgvector-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/saturnino-fabrica-de-software/ponto/internal/domain"
)

// EmployeeRepository Tests

func TestEmployeeRepository_GetByToken(t *testing.T) {
	employeeID := uuid.New()
	locationID := uuid.New()
	now := time.Now()
	token := "BADGE-0042"

	tests := []struct {
		name      string
		token     string
		mockSetup func(mock pgxmock.PgxPoolIface)
		wantErr   error
	}{
		{
			name:  "exact match",
			token: token,
			mockSetup: func(mock pgxmock.PgxPoolIface) {
				rows := pgxmock.NewRows([]string{
					"id", "name", "badge_token", "location_id", "is_active", "created_at", "updated_at",
				}).AddRow(employeeID, "Ana", &token, &locationID, true, now, now)

				mock.ExpectQuery(`SELECT id, name, badge_token, location_id, is_active, created_at, updated_at FROM employees WHERE badge_token = \$1`).
					WithArgs(token).
					WillReturnRows(rows)
			},
		},
		{
			name:  "unknown token",
			token: "BADGE-9999",
			mockSetup: func(mock pgxmock.PgxPoolIface) {
				mock.ExpectQuery(`SELECT id, name, badge_token, location_id, is_active, created_at, updated_at FROM employees WHERE badge_token = \$1`).
					WithArgs("BADGE-9999").
					WillReturnError(pgx.ErrNoRows)
			},
			wantErr: domain.ErrEmployeeNotFound,
		},
		{
			name:  "database error",
			token: token,
			mockSetup: func(mock pgxmock.PgxPoolIface) {
				mock.ExpectQuery(`SELECT id, name, badge_token, location_id, is_active, created_at, updated_at FROM employees WHERE badge_token = \$1`).
					WithArgs(token).
					WillReturnError(errors.New("connection reset"))
			},
			wantErr: errors.New("get employee by token"),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock, err := pgxmock.NewPool()
			require.NoError(t, err)
			defer mock.Close()

			tt.mockSetup(mock)

			repo := NewEmployeeRepository(mock)
			got, err := repo.GetByToken(context.Background(), tt.token)

			if tt.wantErr != nil {
				require.Error(t, err)
				if errors.Is(tt.wantErr, domain.ErrEmployeeNotFound) {
					assert.ErrorIs(t, err, domain.ErrEmployeeNotFound)
				} else {
					assert.Contains(t, err.Error(), tt.wantErr.Error())
				}
			} else {
				require.NoError(t, err)
				assert.Equal(t, employeeID, got.ID)
				assert.Equal(t, "Ana", got.Name)
				assert.Equal(t, token, got.BadgeToken)
				require.NotNil(t, got.LocationID)
				assert.Equal(t, locationID, *got.LocationID)
				assert.True(t, got.IsActive)
			}

			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestEmployeeRepository_GetByID(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	employeeID := uuid.New()
	now := time.Now()

	rows := pgxmock.NewRows([]string{
		"id", "name", "badge_token", "location_id", "is_active", "created_at", "updated_at",
	}).AddRow(employeeID, "Bruno", nil, nil, false, now, now)

	mock.ExpectQuery(`SELECT id, name, badge_token, location_id, is_active, created_at, updated_at FROM employees WHERE id = \$1`).
		WithArgs(employeeID).
		WillReturnRows(rows)

	got, err := NewEmployeeRepository(mock).GetByID(context.Background(), employeeID)
	require.NoError(t, err)
	assert.Equal(t, "Bruno", got.Name)
	assert.Empty(t, got.BadgeToken)
	assert.Nil(t, got.LocationID)
	assert.False(t, got.IsActive)

	assert.NoError(t, mock.ExpectationsWereMet())
}

// EnrollmentRepository Tests

func TestEnrollmentRepository_Upsert(t *testing.T) {
	employeeID := uuid.New()
	now := time.Now()

	tests := []struct {
		name      string
		mockSetup func(mock pgxmock.PgxPoolIface, e *domain.FaceEnrollment)
		wantErr   bool
	}{
		{
			name: "insert or replace",
			mockSetup: func(mock pgxmock.PgxPoolIface, e *domain.FaceEnrollment) {
				mock.ExpectQuery(`INSERT INTO face_enrollments .* ON CONFLICT \(employee_id\) DO UPDATE SET`).
					WithArgs(pgxmock.AnyArg(), employeeID, pgvector.NewVector([]float32{0.6, 0.8}), 2, "facenet512-v1", "enrollments/x.jpg").
					WillReturnRows(pgxmock.NewRows([]string{"id", "created_at", "updated_at"}).AddRow(e.ID, now, now))
			},
		},
		{
			name: "database error",
			mockSetup: func(mock pgxmock.PgxPoolIface, e *domain.FaceEnrollment) {
				mock.ExpectQuery(`INSERT INTO face_enrollments`).
					WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
					WillReturnError(errors.New("disk full"))
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock, err := pgxmock.NewPool()
			require.NoError(t, err)
			defer mock.Close()

			e := &domain.FaceEnrollment{
				ID:                uuid.New(),
				EmployeeID:        employeeID,
				Embedding:         []float64{0.6, 0.8},
				ModelVersion:      "facenet512-v1",
				ReferenceImageKey: "enrollments/x.jpg",
			}
			tt.mockSetup(mock, e)

			err = NewEnrollmentRepository(mock).Upsert(context.Background(), e)
			if tt.wantErr {
				require.Error(t, err)
				assert.Contains(t, err.Error(), "upsert enrollment")
			} else {
				require.NoError(t, err)
				assert.Equal(t, 2, e.Dimension, "dimension is derived from the vector")
				assert.Equal(t, now, e.UpdatedAt)
			}

			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestEnrollmentRepository_GetByEmployee(t *testing.T) {
	employeeID := uuid.New()
	enrollmentID := uuid.New()
	now := time.Now()

	t.Run("found", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		embedding := pgvector.NewVector([]float32{0.5, 0.25})
		rows := pgxmock.NewRows([]string{
			"id", "employee_id", "embedding", "dimension", "model_version", "reference_image_key", "created_at", "updated_at",
		}).AddRow(enrollmentID, employeeID, &embedding, 2, "v1", "", now, now)

		mock.ExpectQuery(`SELECT id, employee_id, embedding, dimension, model_version, reference_image_key, created_at, updated_at FROM face_enrollments WHERE employee_id = \$1`).
			WithArgs(employeeID).
			WillReturnRows(rows)

		got, err := NewEnrollmentRepository(mock).GetByEmployee(context.Background(), employeeID)
		require.NoError(t, err)
		assert.Equal(t, []float64{0.5, 0.25}, got.Embedding)
		assert.Equal(t, "v1", got.ModelVersion)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("not enrolled", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		mock.ExpectQuery(`SELECT .* FROM face_enrollments WHERE employee_id = \$1`).
			WithArgs(employeeID).
			WillReturnError(pgx.ErrNoRows)

		_, err = NewEnrollmentRepository(mock).GetByEmployee(context.Background(), employeeID)
		assert.ErrorIs(t, err, domain.ErrEnrollmentNotFound)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestEnrollmentRepository_ListGallery(t *testing.T) {
	locationID := uuid.New()
	now := time.Now()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	v1 := pgvector.NewVector([]float32{1, 0})
	v2 := pgvector.NewVector([]float32{0, 1, 0})
	ana, bruno := uuid.New(), uuid.New()

	rows := pgxmock.NewRows([]string{
		"id", "name", "location_id", "is_active", "created_at", "updated_at",
		"id", "embedding", "dimension", "model_version", "reference_image_key", "created_at", "updated_at",
	}).
		AddRow(ana, "Ana", &locationID, true, now, now, uuid.New(), &v1, 2, "v1", "", now, now).
		AddRow(bruno, "Bruno", nil, true, now, now, uuid.New(), &v2, 3, "", "", now, now)

	mock.ExpectQuery(`SELECT e\.id, e\.name, .* FROM face_enrollments f INNER JOIN employees e ON e\.id = f\.employee_id WHERE e\.is_active = true AND \(\$1::uuid IS NULL OR e\.location_id = \$1 OR e\.location_id IS NULL\) ORDER BY f\.created_at, f\.id`).
		WithArgs(&locationID).
		WillReturnRows(rows)

	gallery, err := NewEnrollmentRepository(mock).ListGallery(context.Background(), &locationID)
	require.NoError(t, err)
	require.Len(t, gallery, 2)

	assert.Equal(t, ana, gallery[0].Enrollment.EmployeeID)
	assert.Equal(t, []float64{1, 0}, gallery[0].Enrollment.Embedding)
	assert.Equal(t, bruno, gallery[1].Employee.ID)
	assert.Nil(t, gallery[1].Employee.LocationID)
	assert.Len(t, gallery[1].Enrollment.Embedding, 3)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEnrollmentRepository_Delete(t *testing.T) {
	employeeID := uuid.New()

	tests := []struct {
		name     string
		affected int64
		wantErr  error
	}{
		{name: "deleted", affected: 1},
		{name: "not enrolled", affected: 0, wantErr: domain.ErrEnrollmentNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock, err := pgxmock.NewPool()
			require.NoError(t, err)
			defer mock.Close()

			mock.ExpectExec(`DELETE FROM face_enrollments WHERE employee_id = \$1`).
				WithArgs(employeeID).
				WillReturnResult(pgxmock.NewResult("DELETE", tt.affected))

			err = NewEnrollmentRepository(mock).Delete(context.Background(), employeeID)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			} else {
				assert.NoError(t, err)
			}
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

// AttendanceRepository Tests

func intervalRow(id, employeeID uuid.UUID, started time.Time, ended *time.Time) []interface{} {
	return []interface{}{id, employeeID, nil, nil, started, ended, int64(0), "", "face", nil}
}

var intervalColumns = []string{
	"id", "employee_id", "location_id", "terminal_id", "started_at", "ended_at", "break_seconds", "note", "method", "check_in_distance_m",
}

func TestAttendanceRepository_FindOpen(t *testing.T) {
	employeeID := uuid.New()
	now := time.Now()
	newer, older := uuid.New(), uuid.New()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	rows := pgxmock.NewRows(intervalColumns).
		AddRow(intervalRow(newer, employeeID, now, nil)...).
		AddRow(intervalRow(older, employeeID, now.Add(-time.Hour), nil)...)

	mock.ExpectQuery(`SELECT .* FROM attendance_intervals WHERE employee_id = \$1 AND ended_at IS NULL ORDER BY started_at DESC`).
		WithArgs(employeeID).
		WillReturnRows(rows)

	got, err := NewAttendanceRepository(mock).FindOpen(context.Background(), employeeID)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, newer, got[0].ID)
	assert.True(t, got[0].IsOpen())
	assert.Equal(t, domain.MethodFace, got[0].Method)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAttendanceRepository_Open(t *testing.T) {
	employeeID := uuid.New()
	started := time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)

	tests := []struct {
		name    string
		execErr error
		wantErr error
	}{
		{name: "inserted"},
		{
			name:    "concurrent open hits the partial unique index",
			execErr: &pgconn.PgError{Code: "23505", Message: "duplicate key value violates unique constraint \"uq_attendance_open\""},
			wantErr: domain.ErrAlreadyCheckedIn,
		},
		{
			name:    "database down",
			execErr: errors.New("connection refused"),
			wantErr: errors.New("open interval"),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock, err := pgxmock.NewPool()
			require.NoError(t, err)
			defer mock.Close()

			exp := mock.ExpectExec(`INSERT INTO attendance_intervals`).
				WithArgs(pgxmock.AnyArg(), employeeID, (*uuid.UUID)(nil), (*uuid.UUID)(nil), started, "", "token", (*float64)(nil))
			if tt.execErr != nil {
				exp.WillReturnError(tt.execErr)
			} else {
				exp.WillReturnResult(pgxmock.NewResult("INSERT", 1))
			}

			a := &domain.AttendanceInterval{EmployeeID: employeeID, StartedAt: started, Method: domain.MethodToken}
			err = NewAttendanceRepository(mock).Open(context.Background(), a)

			switch {
			case tt.wantErr == nil:
				require.NoError(t, err)
				assert.NotEqual(t, uuid.Nil, a.ID)
			case errors.Is(tt.wantErr, domain.ErrAlreadyCheckedIn):
				assert.ErrorIs(t, err, domain.ErrAlreadyCheckedIn)
			default:
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr.Error())
			}

			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestAttendanceRepository_Close(t *testing.T) {
	id := uuid.New()
	employeeID := uuid.New()
	started := time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)
	ended := started.Add(9 * time.Hour)

	t.Run("closes open interval", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		rows := pgxmock.NewRows(intervalColumns).
			AddRow(id, employeeID, nil, nil, started, &ended, int64(1800), "", "face", nil)

		mock.ExpectQuery(`UPDATE attendance_intervals SET ended_at = \$2, break_seconds = \$3 WHERE id = \$1 AND ended_at IS NULL RETURNING`).
			WithArgs(id, ended, int64(1800)).
			WillReturnRows(rows)

		got, err := NewAttendanceRepository(mock).Close(context.Background(), id, ended, 30*time.Minute)
		require.NoError(t, err)
		require.NotNil(t, got.EndedAt)
		assert.Equal(t, ended, *got.EndedAt)
		assert.Equal(t, 30*time.Minute, got.BreakDuration)
		assert.Equal(t, 8*time.Hour+30*time.Minute, got.Worked(ended.Add(time.Hour)))

		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("already closed", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		mock.ExpectQuery(`UPDATE attendance_intervals`).
			WithArgs(id, ended, int64(1800)).
			WillReturnError(pgx.ErrNoRows)

		_, err = NewAttendanceRepository(mock).Close(context.Background(), id, ended, 30*time.Minute)
		assert.ErrorIs(t, err, domain.ErrIntervalNotOpen)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

// TerminalRepository / LocationRepository Tests

func TestTerminalRepository_GetByAPIKeyHash(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	terminalID, locationID := uuid.New(), uuid.New()
	now := time.Now()

	mock.ExpectQuery(`SELECT id, name, location_id, api_key_hash, is_active, last_seen_at, created_at FROM terminals WHERE api_key_hash = \$1 AND is_active = true`).
		WithArgs("abc").
		WillReturnRows(pgxmock.NewRows([]string{"id", "name", "location_id", "api_key_hash", "is_active", "last_seen_at", "created_at"}).
			AddRow(terminalID, "Lobby", locationID, "abc", true, nil, now))
	mock.ExpectQuery(`SELECT .* FROM terminals`).
		WithArgs("missing").
		WillReturnError(pgx.ErrNoRows)

	repo := NewTerminalRepository(mock)

	got, err := repo.GetByAPIKeyHash(context.Background(), "abc")
	require.NoError(t, err)
	assert.Equal(t, locationID, got.LocationID)

	_, err = repo.GetByAPIKeyHash(context.Background(), "missing")
	assert.ErrorIs(t, err, domain.ErrTerminalNotFound)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTerminalRepository_TouchLastSeen(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	ids := []uuid.UUID{uuid.New(), uuid.New()}
	mock.ExpectExec(`UPDATE terminals SET last_seen_at = NOW\(\) WHERE id = ANY\(\$1\)`).
		WithArgs(ids).
		WillReturnResult(pgxmock.NewResult("UPDATE", 2))

	repo := NewTerminalRepository(mock)
	require.NoError(t, repo.TouchLastSeen(context.Background(), ids))
	require.NoError(t, repo.TouchLastSeen(context.Background(), nil), "empty batch is a no-op")

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLocationRepository_GetByID(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	id := uuid.New()
	lat, lon, radius := 52.52, 13.405, 50.0

	mock.ExpectQuery(`SELECT id, name, latitude, longitude, radius_meters FROM locations WHERE id = \$1`).
		WithArgs(id).
		WillReturnRows(pgxmock.NewRows([]string{"id", "name", "latitude", "longitude", "radius_meters"}).
			AddRow(id, "Berlin HQ", &lat, &lon, &radius))

	got, err := NewLocationRepository(mock).GetByID(context.Background(), id)
	require.NoError(t, err)
	assert.True(t, got.Geofence().Enabled())
	assert.Equal(t, 50.0, *got.RadiusMeters)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestIsUniqueViolation(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"pg error 23505", &pgconn.PgError{Code: "23505"}, true},
		{"wrapped pg error", fmt.Errorf("open: %w", &pgconn.PgError{Code: "23505"}), true},
		{"pg error other code", &pgconn.PgError{Code: "23503", Message: "foreign key"}, false},
		{"message contains duplicate key", fmt.Errorf("duplicate key value"), true},
		{"nil error", nil, false},
		{"different error", fmt.Errorf("connection timeout"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, isUniqueViolation(tt.err))
		})
	}
}
