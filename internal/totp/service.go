package totp

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"zt-totp/backend/internal/security"
	"zt-totp/backend/internal/totp/domain"
	userdomain "zt-totp/backend/internal/user/domain"
)

// Sentinel errors for the registration service; handlers map them to HTTP codes.
var (
	ErrUserNotFound  = errors.New("user not found")
	ErrNotRegistered = errors.New("totp not registered")
)

// Registration is the one-time output of a TOTP registration: the plaintext
// recovery codes and the provisioning URI are never retrievable again.
type Registration struct {
	OtpauthURI    string
	RecoveryCodes []string
}

// SecretRepo is the minimal TOTP repository needed by the service.
type SecretRepo interface {
	InsertSecret(ctx context.Context, s *domain.Secret) error
	GetSecret(ctx context.Context, userID, rpID string) (*domain.Secret, error)
	InsertRecoveryCode(ctx context.Context, c *domain.RecoveryCode) error
	GetUnusedRecoveryCode(ctx context.Context, userID, codeHash string) (*domain.RecoveryCode, error)
	ConsumeRecoveryCode(ctx context.Context, id string) (bool, error)
}

// UserRepo is the minimal user repository needed by the service.
type UserRepo interface {
	GetByID(ctx context.Context, id string) (*userdomain.User, error)
}

// Service registers TOTP secrets and verifies codes and recovery codes.
type Service struct {
	repo           SecretRepo
	users          UserRepo
	vault          *security.Vault
	recoveryPepper string
}

// NewService returns a TOTP service with the given dependencies.
func NewService(repo SecretRepo, users UserRepo, vault *security.Vault, recoveryPepper string) *Service {
	return &Service{repo: repo, users: users, vault: vault, recoveryPepper: recoveryPepper}
}

// Register creates a TOTP secret for (userID, rpID), encrypts it at rest, and
// issues RecoveryCodeCount recovery codes. Returns ErrUserNotFound for an
// unknown user and db.ErrConflict when a secret already exists for the pair.
func (s *Service) Register(ctx context.Context, userID, rpID, accountName, issuer string) (*Registration, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrUserNotFound
	}

	key, err := GenerateKey(issuer, accountName)
	if err != nil {
		return nil, err
	}
	encrypted, err := s.vault.Encrypt(key.Secret())
	if err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	if err := s.repo.InsertSecret(ctx, &domain.Secret{
		ID:              uuid.New().String(),
		UserID:          userID,
		RPID:            rpID,
		SecretEncrypted: encrypted,
		CreatedAt:       now,
	}); err != nil {
		return nil, err
	}

	codes, err := GenerateRecoveryCodes(RecoveryCodeCount)
	if err != nil {
		return nil, err
	}
	for _, code := range codes {
		if err := s.repo.InsertRecoveryCode(ctx, &domain.RecoveryCode{
			ID:        uuid.New().String(),
			UserID:    userID,
			CodeHash:  security.HashRecoveryCode(code, s.recoveryPepper),
			CreatedAt: now,
		}); err != nil {
			return nil, err
		}
	}

	return &Registration{OtpauthURI: key.URL(), RecoveryCodes: codes}, nil
}

// VerifyCode checks code against the decrypted secret for (userID, rpID).
// Returns ErrNotRegistered when no secret exists; decryption failures
// propagate as fatal errors, never as a domain denial.
func (s *Service) VerifyCode(ctx context.Context, userID, rpID, code string) (bool, error) {
	row, err := s.repo.GetSecret(ctx, userID, rpID)
	if err != nil {
		return false, err
	}
	if row == nil {
		return false, ErrNotRegistered
	}
	secret, err := s.vault.Decrypt(row.SecretEncrypted)
	if err != nil {
		return false, err
	}
	return Verify(secret, code), nil
}

// VerifyRecovery validates and atomically consumes one unused recovery code.
// The second presentation of the same code reports false.
func (s *Service) VerifyRecovery(ctx context.Context, userID, code string) (bool, error) {
	hash := security.HashRecoveryCode(code, s.recoveryPepper)
	row, err := s.repo.GetUnusedRecoveryCode(ctx, userID, hash)
	if err != nil {
		return false, err
	}
	if row == nil {
		return false, nil
	}
	return s.repo.ConsumeRecoveryCode(ctx, row.ID)
}
