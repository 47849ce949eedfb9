package repository

import (
	"context"
	"database/sql"
	"errors"

	"zt-totp/backend/internal/db"
	"zt-totp/backend/internal/device/domain"
)

type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository returns a device repository that uses the given db.
func NewPostgresRepository(d *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: d}
}

// Create persists the device. The device must have ID set.
func (r *PostgresRepository) Create(ctx context.Context, d *domain.Device) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO devices (id, user_id, device_label, platform, created_at)
		 VALUES ($1, $2, $3, $4, $5)`,
		d.ID, d.UserID, d.Label, d.Platform, d.CreatedAt)
	return err
}

// GetByID returns the device for id, or nil if not found.
func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*domain.Device, error) {
	return r.get(ctx,
		`SELECT id, user_id, device_label, platform, created_at
		 FROM devices WHERE id = $1`, id)
}

// GetLatestForUser returns the user's most recently created device, or nil.
func (r *PostgresRepository) GetLatestForUser(ctx context.Context, userID string) (*domain.Device, error) {
	return r.get(ctx,
		`SELECT id, user_id, device_label, platform, created_at
		 FROM devices WHERE user_id = $1
		 ORDER BY created_at DESC LIMIT 1`, userID)
}

func (r *PostgresRepository) get(ctx context.Context, query string, arg any) (*domain.Device, error) {
	d := &domain.Device{}
	err := r.db.QueryRowContext(ctx, query, arg).Scan(&d.ID, &d.UserID, &d.Label, &d.Platform, &d.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) || db.IsInvalidID(err) {
			return nil, nil
		}
		return nil, err
	}
	return d, nil
}
