package repository

import (
	"context"
	"database/sql"
	"errors"

	"zt-totp/backend/internal/challenge/domain"
	"zt-totp/backend/internal/db"
)

type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository returns a challenge repository that uses the given db.
func NewPostgresRepository(d *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: d}
}

// Insert persists the challenge. The challenge must have ID and Nonce set.
func (r *PostgresRepository) Insert(ctx context.Context, c *domain.Challenge) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO device_challenges (id, device_id, rp_id, nonce, created_at, expires_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		c.ID, c.DeviceID, c.RPID, c.Nonce, c.CreatedAt, c.ExpiresAt)
	return err
}

// GetValid returns the most recent non-expired challenge matching all three
// keys, or nil. Ties broken by most-recent creation time.
func (r *PostgresRepository) GetValid(ctx context.Context, deviceID, rpID, nonce string) (*domain.Challenge, error) {
	c := &domain.Challenge{}
	err := r.db.QueryRowContext(ctx,
		`SELECT id, device_id, rp_id, nonce, created_at, expires_at
		 FROM device_challenges
		 WHERE device_id = $1 AND rp_id = $2 AND nonce = $3 AND expires_at > NOW()
		 ORDER BY created_at DESC LIMIT 1`,
		deviceID, rpID, nonce).
		Scan(&c.ID, &c.DeviceID, &c.RPID, &c.Nonce, &c.CreatedAt, &c.ExpiresAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) || db.IsInvalidID(err) {
			return nil, nil
		}
		return nil, err
	}
	return c, nil
}

// Consume deletes the challenge row. A second consumption finds nothing.
func (r *PostgresRepository) Consume(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM device_challenges WHERE id = $1`, id)
	return err
}

// PruneExpired deletes all expired challenges. Storage hygiene only; expiry
// is already enforced at read time.
func (r *PostgresRepository) PruneExpired(ctx context.Context) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM device_challenges WHERE expires_at < NOW()`)
	return err
}
