package repository

import (
	"context"
	"database/sql"
	"errors"

	"zt-totp/backend/internal/db"
	"zt-totp/backend/internal/relyingparty/domain"
)

type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository returns a relying-party repository that uses the given db.
func NewPostgresRepository(d *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: d}
}

// Create persists the relying party. Returns db.ErrConflict when rp_id is taken.
func (r *PostgresRepository) Create(ctx context.Context, rp *domain.RelyingParty) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO relying_parties (id, rp_id, display_name, created_at)
		 VALUES ($1, $2, $3, $4)`,
		rp.ID, rp.RPID, rp.DisplayName, rp.CreatedAt)
	return db.MapError(err)
}

// GetByID returns the relying party for its internal id, or nil if not found.
func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*domain.RelyingParty, error) {
	return r.get(ctx, `SELECT id, rp_id, display_name, created_at FROM relying_parties WHERE id = $1`, id)
}

// GetByExternalID returns the relying party for the opaque external rp_id, or nil.
func (r *PostgresRepository) GetByExternalID(ctx context.Context, rpID string) (*domain.RelyingParty, error) {
	return r.get(ctx, `SELECT id, rp_id, display_name, created_at FROM relying_parties WHERE rp_id = $1`, rpID)
}

func (r *PostgresRepository) get(ctx context.Context, query string, arg any) (*domain.RelyingParty, error) {
	rp := &domain.RelyingParty{}
	err := r.db.QueryRowContext(ctx, query, arg).Scan(&rp.ID, &rp.RPID, &rp.DisplayName, &rp.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) || db.IsInvalidID(err) {
			return nil, nil
		}
		return nil, err
	}
	return rp, nil
}
