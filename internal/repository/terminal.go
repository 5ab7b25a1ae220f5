package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/saturnino-fabrica-de-software/ponto/internal/domain"
)

type TerminalRepository struct {
	pool PgxPool
}

func NewTerminalRepository(pool PgxPool) *TerminalRepository {
	return &TerminalRepository{pool: pool}
}

// GetByAPIKeyHash returns the active terminal owning the key.
func (r *TerminalRepository) GetByAPIKeyHash(ctx context.Context, hash string) (*domain.Terminal, error) {
	query := `
		SELECT id, name, location_id, api_key_hash, is_active, last_seen_at, created_at
		FROM terminals
		WHERE api_key_hash = $1 AND is_active = true
	`

	var t domain.Terminal
	err := r.pool.QueryRow(ctx, query, hash).Scan(
		&t.ID,
		&t.Name,
		&t.LocationID,
		&t.APIKeyHash,
		&t.IsActive,
		&t.LastSeenAt,
		&t.CreatedAt,
	)

	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrTerminalNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get terminal by api key: %w", err)
	}

	return &t, nil
}

func (r *TerminalRepository) Create(ctx context.Context, t *domain.Terminal) error {
	query := `
		INSERT INTO terminals (id, name, location_id, api_key_hash, is_active, created_at)
		VALUES ($1, $2, $3, $4, $5, NOW())
		RETURNING created_at
	`

	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}

	err := r.pool.QueryRow(ctx, query, t.ID, t.Name, t.LocationID, t.APIKeyHash, t.IsActive).Scan(&t.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrValidationFailed.WithError(fmt.Errorf("api key already in use"))
		}
		return fmt.Errorf("create terminal: %w", err)
	}

	return nil
}

// TouchLastSeen stamps last_seen_at for a batch of terminals.
func (r *TerminalRepository) TouchLastSeen(ctx context.Context, ids []uuid.UUID) error {
	if len(ids) == 0 {
		return nil
	}

	query := `UPDATE terminals SET last_seen_at = NOW() WHERE id = ANY($1)`

	if _, err := r.pool.Exec(ctx, query, ids); err != nil {
		return fmt.Errorf("touch terminal last seen: %w", err)
	}

	return nil
}
