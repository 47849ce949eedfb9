package repository

import (
	"context"

	"zt-totp/backend/internal/relyingparty/domain"
)

// Repository defines persistence for relying parties.
type Repository interface {
	Create(ctx context.Context, rp *domain.RelyingParty) error
	GetByID(ctx context.Context, id string) (*domain.RelyingParty, error)
	GetByExternalID(ctx context.Context, rpID string) (*domain.RelyingParty, error)
}
