package repository

import (
	"context"
	"database/sql"
	"errors"

	"zt-totp/backend/internal/db"
	"zt-totp/backend/internal/login/domain"
)

type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository returns a login-challenge repository that uses the
// given db.
func NewPostgresRepository(d *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: d}
}

const loginColumns = `id, user_id, device_id, rp_id, nonce, otp_hash, status,
	COALESCE(denied_reason, ''), created_at, expires_at, approved_at`

func scanLogin(row *sql.Row) (*domain.LoginChallenge, error) {
	c := &domain.LoginChallenge{}
	err := row.Scan(&c.ID, &c.UserID, &c.DeviceID, &c.RPID, &c.Nonce, &c.OTPHash,
		&c.Status, &c.DeniedReason, &c.CreatedAt, &c.ExpiresAt, &c.ApprovedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) || db.IsInvalidID(err) {
			return nil, nil
		}
		return nil, err
	}
	return c, nil
}

// Insert persists a new pending login challenge.
func (r *PostgresRepository) Insert(ctx context.Context, c *domain.LoginChallenge) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO login_challenges (id, user_id, device_id, rp_id, nonce, otp_hash, status, created_at, expires_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		c.ID, c.UserID, c.DeviceID, c.RPID, c.Nonce, c.OTPHash, c.Status, c.CreatedAt, c.ExpiresAt)
	return err
}

// GetByID returns the challenge or nil when unknown.
func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*domain.LoginChallenge, error) {
	return scanLogin(r.db.QueryRowContext(ctx,
		`SELECT `+loginColumns+` FROM login_challenges WHERE id = $1`, id))
}

// GetPendingForUser returns the user's most recent pending, non-expired
// challenge, or nil.
func (r *PostgresRepository) GetPendingForUser(ctx context.Context, userID string) (*domain.LoginChallenge, error) {
	return scanLogin(r.db.QueryRowContext(ctx,
		`SELECT `+loginColumns+` FROM login_challenges
		 WHERE user_id = $1 AND status = 'pending' AND expires_at > NOW()
		 ORDER BY created_at DESC LIMIT 1`, userID))
}

// MarkApproved transitions a pending challenge to approved. Returns false
// without error when the row was no longer pending.
func (r *PostgresRepository) MarkApproved(ctx context.Context, id string) (bool, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE login_challenges SET status = 'approved', approved_at = NOW()
		 WHERE id = $1 AND status = 'pending'`, id)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// MarkDenied transitions a pending challenge to denied with the given reason.
// Returns false without error when the row was no longer pending.
func (r *PostgresRepository) MarkDenied(ctx context.Context, id, reason string) (bool, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE login_challenges SET status = 'denied', denied_reason = $2
		 WHERE id = $1 AND status = 'pending'`, id, reason)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// PruneExpired marks every overdue pending challenge denied with reason
// "expired". Rows are kept for audit, not deleted.
func (r *PostgresRepository) PruneExpired(ctx context.Context) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE login_challenges SET status = 'denied', denied_reason = 'expired'
		 WHERE status = 'pending' AND expires_at < NOW()`)
	return err
}

// ClearPendingForUser denies all of the user's pending challenges with reason
// "user_cleared" and returns how many were affected.
func (r *PostgresRepository) ClearPendingForUser(ctx context.Context, userID string) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE login_challenges SET status = 'denied', denied_reason = 'user_cleared'
		 WHERE user_id = $1 AND status = 'pending'`, userID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
