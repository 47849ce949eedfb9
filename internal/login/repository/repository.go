package repository

import (
	"context"

	"zt-totp/backend/internal/login/domain"
)

// Repository defines persistence for login challenges. Mark operations only
// touch rows still in the pending state, so terminal states are immutable at
// the storage layer; they report whether the transition actually applied so
// callers can detect losing a resolution race.
type Repository interface {
	Insert(ctx context.Context, c *domain.LoginChallenge) error
	GetByID(ctx context.Context, id string) (*domain.LoginChallenge, error)
	GetPendingForUser(ctx context.Context, userID string) (*domain.LoginChallenge, error)
	MarkApproved(ctx context.Context, id string) (bool, error)
	MarkDenied(ctx context.Context, id, reason string) (bool, error)
	PruneExpired(ctx context.Context) error
	ClearPendingForUser(ctx context.Context, userID string) (int64, error)
}
