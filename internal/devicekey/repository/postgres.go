package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"

	"zt-totp/backend/internal/db"
	"zt-totp/backend/internal/devicekey/domain"
)

type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository returns a device-key repository that uses the given db.
func NewPostgresRepository(d *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: d}
}

// Create persists the device key. Returns db.ErrConflict when a key already
// exists for (device_id, rp_id); use UpsertByDeviceAndRP for rotation.
func (r *PostgresRepository) Create(ctx context.Context, k *domain.DeviceKey) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO device_keys (id, device_id, rp_id, key_type, public_key, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		k.ID, k.DeviceID, k.RPID, k.KeyType, k.PublicKey, k.CreatedAt)
	return db.MapError(err)
}

// GetByID returns the device key for id, or nil if not found.
func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*domain.DeviceKey, error) {
	return r.get(ctx,
		`SELECT id, device_id, rp_id, key_type, public_key, created_at
		 FROM device_keys WHERE id = $1`, id)
}

// GetByDeviceAndRP returns the active key for (deviceID, rpID), or nil.
func (r *PostgresRepository) GetByDeviceAndRP(ctx context.Context, deviceID, rpID string) (*domain.DeviceKey, error) {
	k := &domain.DeviceKey{}
	err := r.db.QueryRowContext(ctx,
		`SELECT id, device_id, rp_id, key_type, public_key, created_at
		 FROM device_keys WHERE device_id = $1 AND rp_id = $2`,
		deviceID, rpID).
		Scan(&k.ID, &k.DeviceID, &k.RPID, &k.KeyType, &k.PublicKey, &k.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) || db.IsInvalidID(err) {
			return nil, nil
		}
		return nil, err
	}
	return k, nil
}

// UpsertByDeviceAndRP rotates the key bound to (deviceID, rpID): creates the
// row if absent, otherwise overwrites key type and public key in place. The
// old key stops verifying immediately.
func (r *PostgresRepository) UpsertByDeviceAndRP(ctx context.Context, deviceID, rpID, keyType, publicKey string) (*domain.DeviceKey, error) {
	k := &domain.DeviceKey{}
	err := r.db.QueryRowContext(ctx,
		`INSERT INTO device_keys (id, device_id, rp_id, key_type, public_key, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 ON CONFLICT (device_id, rp_id)
		 DO UPDATE SET key_type = EXCLUDED.key_type, public_key = EXCLUDED.public_key
		 RETURNING id, device_id, rp_id, key_type, public_key, created_at`,
		uuid.New().String(), deviceID, rpID, keyType, publicKey, time.Now().UTC()).
		Scan(&k.ID, &k.DeviceID, &k.RPID, &k.KeyType, &k.PublicKey, &k.CreatedAt)
	if err != nil {
		return nil, db.MapError(err)
	}
	return k, nil
}

func (r *PostgresRepository) get(ctx context.Context, query string, arg any) (*domain.DeviceKey, error) {
	k := &domain.DeviceKey{}
	err := r.db.QueryRowContext(ctx, query, arg).
		Scan(&k.ID, &k.DeviceID, &k.RPID, &k.KeyType, &k.PublicKey, &k.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) || db.IsInvalidID(err) {
			return nil, nil
		}
		return nil, err
	}
	return k, nil
}
