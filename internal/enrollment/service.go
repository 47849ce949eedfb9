// Package enrollment implements the composite enrollment flow: one call that
// resolves or creates the user and relying party, registers a device, and
// binds its first key.
package enrollment

import (
	"context"
	"time"

	"github.com/google/uuid"

	devicedomain "zt-totp/backend/internal/device/domain"
	devicerepo "zt-totp/backend/internal/device/repository"
	devicekeydomain "zt-totp/backend/internal/devicekey/domain"
	devicekeyrepo "zt-totp/backend/internal/devicekey/repository"
	rpdomain "zt-totp/backend/internal/relyingparty/domain"
	rprepo "zt-totp/backend/internal/relyingparty/repository"
	userdomain "zt-totp/backend/internal/user/domain"
	userrepo "zt-totp/backend/internal/user/repository"
)

// Input is one enrollment request.
type Input struct {
	Email         string
	DeviceLabel   string
	Platform      string
	RPID          string
	RPDisplayName string
	KeyType       string
	PublicKey     string
}

// Output is the full set of entities touched by an enrollment.
type Output struct {
	User         *userdomain.User
	Device       *devicedomain.Device
	RelyingParty *rpdomain.RelyingParty
	DeviceKey    *devicekeydomain.DeviceKey
}

// Service runs enrollments. User and relying party are find-or-create; the
// device and its key binding are always created fresh.
type Service struct {
	users   userrepo.Repository
	devices devicerepo.Repository
	rps     rprepo.Repository
	keys    devicekeyrepo.Repository
}

// NewService returns an enrollment service.
func NewService(users userrepo.Repository, devices devicerepo.Repository, rps rprepo.Repository, keys devicekeyrepo.Repository) *Service {
	return &Service{users: users, devices: devices, rps: rps, keys: keys}
}

// Enroll executes the composite flow. Validation errors and db.ErrConflict
// propagate to the caller; nothing is rolled back on partial failure, matching
// the find-or-create semantics of reruns.
func (s *Service) Enroll(ctx context.Context, in Input) (*Output, error) {
	now := time.Now().UTC()

	user, err := s.users.GetByEmail(ctx, in.Email)
	if err != nil {
		return nil, err
	}
	if user == nil {
		user = &userdomain.User{ID: uuid.New().String(), Email: in.Email, CreatedAt: now}
		if err := user.Validate(); err != nil {
			return nil, err
		}
		if err := s.users.Create(ctx, user); err != nil {
			return nil, err
		}
	}

	device := &devicedomain.Device{
		ID:        uuid.New().String(),
		UserID:    user.ID,
		Label:     in.DeviceLabel,
		Platform:  in.Platform,
		CreatedAt: now,
	}
	if err := s.devices.Create(ctx, device); err != nil {
		return nil, err
	}

	rp, err := s.rps.GetByExternalID(ctx, in.RPID)
	if err != nil {
		return nil, err
	}
	if rp == nil {
		rp = &rpdomain.RelyingParty{
			ID:          uuid.New().String(),
			RPID:        in.RPID,
			DisplayName: in.RPDisplayName,
			CreatedAt:   now,
		}
		if err := rp.Validate(); err != nil {
			return nil, err
		}
		if err := s.rps.Create(ctx, rp); err != nil {
			return nil, err
		}
	}

	key := &devicekeydomain.DeviceKey{
		ID:        uuid.New().String(),
		DeviceID:  device.ID,
		RPID:      rp.ID,
		KeyType:   in.KeyType,
		PublicKey: in.PublicKey,
		CreatedAt: now,
	}
	if err := s.keys.Create(ctx, key); err != nil {
		return nil, err
	}

	return &Output{User: user, Device: device, RelyingParty: rp, DeviceKey: key}, nil
}
