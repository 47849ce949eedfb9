package repository

import (
	"context"
	"database/sql"
	"errors"

	"zt-totp/backend/internal/db"
	"zt-totp/backend/internal/totp/domain"
)

type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository returns a TOTP secret/recovery-code repository that uses the given db.
func NewPostgresRepository(d *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: d}
}

// InsertSecret persists the encrypted secret. Returns db.ErrConflict when a
// secret already exists for (user_id, rp_id); the caller must not overwrite.
func (r *PostgresRepository) InsertSecret(ctx context.Context, s *domain.Secret) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO totp_secrets (id, user_id, rp_id, secret_encrypted, created_at)
		 VALUES ($1, $2, $3, $4, $5)`,
		s.ID, s.UserID, s.RPID, s.SecretEncrypted, s.CreatedAt)
	return db.MapError(err)
}

// GetSecret returns the secret for (userID, rpID), or nil if not found.
func (r *PostgresRepository) GetSecret(ctx context.Context, userID, rpID string) (*domain.Secret, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT id, user_id, rp_id, secret_encrypted, created_at
		 FROM totp_secrets WHERE user_id = $1 AND rp_id = $2`,
		userID, rpID)
	return scanSecret(row)
}

// GetLatestSecretForUser returns the user's most recently registered secret, or nil.
func (r *PostgresRepository) GetLatestSecretForUser(ctx context.Context, userID string) (*domain.Secret, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT id, user_id, rp_id, secret_encrypted, created_at
		 FROM totp_secrets WHERE user_id = $1
		 ORDER BY created_at DESC LIMIT 1`,
		userID)
	return scanSecret(row)
}

// InsertRecoveryCode persists one hashed recovery code.
func (r *PostgresRepository) InsertRecoveryCode(ctx context.Context, c *domain.RecoveryCode) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO recovery_codes (id, user_id, code_hash, created_at)
		 VALUES ($1, $2, $3, $4)`,
		c.ID, c.UserID, c.CodeHash, c.CreatedAt)
	return err
}

// GetUnusedRecoveryCode returns an unused code matching (userID, codeHash), or nil.
func (r *PostgresRepository) GetUnusedRecoveryCode(ctx context.Context, userID, codeHash string) (*domain.RecoveryCode, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT id, user_id, code_hash, created_at, used_at
		 FROM recovery_codes
		 WHERE user_id = $1 AND code_hash = $2 AND used_at IS NULL
		 LIMIT 1`,
		userID, codeHash)
	c := &domain.RecoveryCode{}
	var usedAt sql.NullTime
	err := row.Scan(&c.ID, &c.UserID, &c.CodeHash, &c.CreatedAt, &usedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) || db.IsInvalidID(err) {
			return nil, nil
		}
		return nil, err
	}
	if usedAt.Valid {
		t := usedAt.Time
		c.UsedAt = &t
	}
	return c, nil
}

// ConsumeRecoveryCode marks the code used if and only if it is still unused.
// Returns false when another caller consumed it first.
func (r *PostgresRepository) ConsumeRecoveryCode(ctx context.Context, id string) (bool, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE recovery_codes SET used_at = NOW()
		 WHERE id = $1 AND used_at IS NULL`,
		id)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func scanSecret(row *sql.Row) (*domain.Secret, error) {
	s := &domain.Secret{}
	err := row.Scan(&s.ID, &s.UserID, &s.RPID, &s.SecretEncrypted, &s.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) || db.IsInvalidID(err) {
			return nil, nil
		}
		return nil, err
	}
	return s, nil
}
