// Package devicekey manages per-(device, relying party) signing keys.
package devicekey

import (
	"context"
	"errors"

	"zt-totp/backend/internal/devicekey/domain"
	"zt-totp/backend/internal/devicekey/repository"
	rpdomain "zt-totp/backend/internal/relyingparty/domain"
)

// ErrRPNotFound is returned by Rotate when the relying party does not exist.
var ErrRPNotFound = errors.New("relying party not found")

// ErrInvalidKey is returned by Rotate when the rotation input is malformed.
var ErrInvalidKey = errors.New("invalid device key")

// RelyingPartyRepo resolves external relying-party identifiers.
type RelyingPartyRepo interface {
	GetByExternalID(ctx context.Context, rpID string) (*rpdomain.RelyingParty, error)
}

// Service rotates device keys. Rotation replaces the active key in place:
// the old key stops validating immediately and no history is kept.
type Service struct {
	keys repository.Repository
	rps  RelyingPartyRepo
}

// NewService returns a device-key service.
func NewService(keys repository.Repository, rps RelyingPartyRepo) *Service {
	return &Service{keys: keys, rps: rps}
}

// Rotate installs a new public key for (deviceID, rpID), creating the binding
// if the device was not yet enrolled with this relying party. rpID is the
// external relying-party identifier.
func (s *Service) Rotate(ctx context.Context, deviceID, rpID, keyType, publicKey string) (*domain.DeviceKey, error) {
	if deviceID == "" || keyType == "" || publicKey == "" {
		return nil, ErrInvalidKey
	}
	rp, err := s.rps.GetByExternalID(ctx, rpID)
	if err != nil {
		return nil, err
	}
	if rp == nil {
		return nil, ErrRPNotFound
	}
	return s.keys.UpsertByDeviceAndRP(ctx, deviceID, rp.ID, keyType, publicKey)
}
