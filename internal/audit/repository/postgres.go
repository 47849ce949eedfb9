package repository

import (
	"context"
	"database/sql"
	"errors"

	"zt-totp/backend/internal/audit/domain"
	"zt-totp/backend/internal/db"
)

type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository returns an audit log repository that uses the given db.
func NewPostgresRepository(d *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: d}
}

// Create persists the audit log. The entry must have ID set.
func (r *PostgresRepository) Create(ctx context.Context, a *domain.AuditLog) error {
	uid := sql.NullString{String: a.UserID, Valid: a.UserID != ""}
	did := sql.NullString{String: a.DeviceID, Valid: a.DeviceID != ""}
	meta := sql.NullString{String: a.Metadata, Valid: a.Metadata != ""}
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO audit_logs (id, user_id, device_id, rp_id, action, outcome, ip, metadata, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		a.ID, uid, did, a.RPID, a.Action, a.Outcome, a.IP, meta, a.CreatedAt)
	return err
}

// GetByID returns the audit log for id, or nil if not found.
func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*domain.AuditLog, error) {
	a := &domain.AuditLog{}
	err := r.db.QueryRowContext(ctx,
		`SELECT id, COALESCE(user_id::text, ''), COALESCE(device_id::text, ''), rp_id, action, outcome, ip, COALESCE(metadata, ''), created_at
		 FROM audit_logs WHERE id = $1`, id).
		Scan(&a.ID, &a.UserID, &a.DeviceID, &a.RPID, &a.Action, &a.Outcome, &a.IP, &a.Metadata, &a.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) || db.IsInvalidID(err) {
			return nil, nil
		}
		return nil, err
	}
	return a, nil
}

// ListByUser returns a user's audit logs newest first, paginated.
func (r *PostgresRepository) ListByUser(ctx context.Context, userID string, limit, offset int32) ([]*domain.AuditLog, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, COALESCE(user_id::text, ''), COALESCE(device_id::text, ''), rp_id, action, outcome, ip, COALESCE(metadata, ''), created_at
		 FROM audit_logs WHERE user_id = $1
		 ORDER BY created_at DESC LIMIT $2 OFFSET $3`, userID, limit, offset)
	if err != nil {
		if db.IsInvalidID(err) {
			return nil, nil
		}
		return nil, err
	}
	defer rows.Close()
	var out []*domain.AuditLog
	for rows.Next() {
		a := &domain.AuditLog{}
		if err := rows.Scan(&a.ID, &a.UserID, &a.DeviceID, &a.RPID, &a.Action, &a.Outcome, &a.IP, &a.Metadata, &a.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		if db.IsInvalidID(err) {
			return nil, nil
		}
		return nil, err
	}
	return out, nil
}
