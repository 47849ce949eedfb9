package repository

import (
	"context"

	"zt-totp/backend/internal/challenge/domain"
)

// Repository defines persistence for device challenges. Consumption is a
// delete, so a nonce can never satisfy GetValid twice.
type Repository interface {
	Insert(ctx context.Context, c *domain.Challenge) error
	GetValid(ctx context.Context, deviceID, rpID, nonce string) (*domain.Challenge, error)
	Consume(ctx context.Context, id string) error
	PruneExpired(ctx context.Context) error
}
