package repository

import (
	"context"

	"zt-totp/backend/internal/device/domain"
)

// Repository defines persistence for devices.
type Repository interface {
	Create(ctx context.Context, d *domain.Device) error
	GetByID(ctx context.Context, id string) (*domain.Device, error)
	GetLatestForUser(ctx context.Context, userID string) (*domain.Device, error)
}
