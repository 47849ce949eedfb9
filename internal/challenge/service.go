// Package challenge issues and consumes single-use device-bound nonces.
package challenge

import (
	"context"
	"log"
	"time"

	"github.com/google/uuid"

	"zt-totp/backend/internal/challenge/domain"
	"zt-totp/backend/internal/challenge/repository"
	"zt-totp/backend/internal/security"
)

// DefaultTTL is the challenge nonce lifetime.
const DefaultTTL = 300 * time.Second

// Issued is the caller-visible result of issuing a challenge.
type Issued struct {
	Nonce     string
	ExpiresAt time.Time
	ExpiresIn int
}

// Service issues single-use nonces scoped to (device, relying party).
type Service struct {
	repo repository.Repository
	ttl  time.Duration
}

// NewService returns a challenge service. ttl <= 0 falls back to DefaultTTL.
func NewService(repo repository.Repository, ttl time.Duration) *Service {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Service{repo: repo, ttl: ttl}
}

// Issue generates and persists a fresh nonce for (deviceID, rpID). Expired
// challenges are pruned first, best-effort; a prune failure only logs.
func (s *Service) Issue(ctx context.Context, deviceID, rpID string) (*Issued, error) {
	if err := s.repo.PruneExpired(ctx); err != nil {
		log.Printf("challenge: prune expired: %v", err)
	}
	nonce, err := security.GenerateNonce()
	if err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	c := &domain.Challenge{
		ID:        uuid.New().String(),
		DeviceID:  deviceID,
		RPID:      rpID,
		Nonce:     nonce,
		CreatedAt: now,
		ExpiresAt: now.Add(s.ttl),
	}
	if err := s.repo.Insert(ctx, c); err != nil {
		return nil, err
	}
	return &Issued{Nonce: nonce, ExpiresAt: c.ExpiresAt, ExpiresIn: int(s.ttl.Seconds())}, nil
}
