package repository

import (
	"context"

	"zt-totp/backend/internal/devicekey/domain"
)

// Repository defines persistence for device keys.
type Repository interface {
	Create(ctx context.Context, k *domain.DeviceKey) error
	GetByID(ctx context.Context, id string) (*domain.DeviceKey, error)
	GetByDeviceAndRP(ctx context.Context, deviceID, rpID string) (*domain.DeviceKey, error)
	UpsertByDeviceAndRP(ctx context.Context, deviceID, rpID, keyType, publicKey string) (*domain.DeviceKey, error)
}
