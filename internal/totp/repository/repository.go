package repository

import (
	"context"

	"zt-totp/backend/internal/totp/domain"
)

// Repository defines persistence for TOTP secrets and recovery codes.
type Repository interface {
	InsertSecret(ctx context.Context, s *domain.Secret) error
	GetSecret(ctx context.Context, userID, rpID string) (*domain.Secret, error)
	GetLatestSecretForUser(ctx context.Context, userID string) (*domain.Secret, error)
	InsertRecoveryCode(ctx context.Context, c *domain.RecoveryCode) error
	GetUnusedRecoveryCode(ctx context.Context, userID, codeHash string) (*domain.RecoveryCode, error)
	ConsumeRecoveryCode(ctx context.Context, id string) (bool, error)
}
