package verification

import (
	"context"

	challengedomain "zt-totp/backend/internal/challenge/domain"
	devicekeydomain "zt-totp/backend/internal/devicekey/domain"
	rpdomain "zt-totp/backend/internal/relyingparty/domain"
	"zt-totp/backend/internal/security"
	"zt-totp/backend/internal/totp"
	totpdomain "zt-totp/backend/internal/totp/domain"
)

// RelyingPartyRepo is the minimal relying-party repository needed by the service.
type RelyingPartyRepo interface {
	GetByExternalID(ctx context.Context, rpID string) (*rpdomain.RelyingParty, error)
}

// DeviceKeyRepo is the minimal device-key repository needed by the service.
type DeviceKeyRepo interface {
	GetByDeviceAndRP(ctx context.Context, deviceID, rpID string) (*devicekeydomain.DeviceKey, error)
}

// SecretRepo is the minimal TOTP repository needed by the service.
type SecretRepo interface {
	GetSecret(ctx context.Context, userID, rpID string) (*totpdomain.Secret, error)
}

// ChallengeRepo is the minimal challenge repository needed by the service.
type ChallengeRepo interface {
	GetValid(ctx context.Context, deviceID, rpID, nonce string) (*challengedomain.Challenge, error)
	Consume(ctx context.Context, id string) error
}

// Input carries one direct verification attempt.
type Input struct {
	UserID    string
	DeviceID  string
	RPID      string
	OTP       string
	Nonce     string
	Signature string
}

// Service runs the direct verification flow: every gate must pass, each
// failure reports a distinct reason, and state is mutated only on success.
type Service struct {
	rps        RelyingPartyRepo
	keys       DeviceKeyRepo
	secrets    SecretRepo
	challenges ChallengeRepo
	vault      *security.Vault
}

// NewService returns a verification service with the given dependencies.
func NewService(rps RelyingPartyRepo, keys DeviceKeyRepo, secrets SecretRepo, challenges ChallengeRepo, vault *security.Vault) *Service {
	return &Service{rps: rps, keys: keys, secrets: secrets, challenges: challenges, vault: vault}
}

// Verify checks a device proof and OTP against a previously issued challenge.
// Gate order determines the reported reason; all gates must independently
// pass. The challenge is consumed only after full success.
func (s *Service) Verify(ctx context.Context, in Input) (Result, error) {
	// One key fetch serves both the enrollment gate and the proof gate.
	rp, err := s.rps.GetByExternalID(ctx, in.RPID)
	if err != nil {
		return Result{}, err
	}
	var key *devicekeydomain.DeviceKey
	if rp != nil {
		key, err = s.keys.GetByDeviceAndRP(ctx, in.DeviceID, rp.ID)
		if err != nil {
			return Result{}, err
		}
	}
	if key == nil {
		return Denied(ReasonDeviceNotEnrolled), nil
	}

	secretRow, err := s.secrets.GetSecret(ctx, in.UserID, in.RPID)
	if err != nil {
		return Result{}, err
	}
	if secretRow == nil {
		return Denied(ReasonTotpNotRegistered), nil
	}

	secret, err := s.vault.Decrypt(secretRow.SecretEncrypted)
	if err != nil {
		return Result{}, err
	}
	if !totp.Verify(secret, in.OTP) {
		return Denied(ReasonInvalidOTP), nil
	}

	ch, err := s.challenges.GetValid(ctx, in.DeviceID, in.RPID, in.Nonce)
	if err != nil {
		return Result{}, err
	}
	if ch == nil {
		return Denied(ReasonInvalidOrExpiredNonce), nil
	}

	message := security.BuildProofMessage(in.Nonce, in.DeviceID, in.RPID, in.OTP)
	if !security.VerifyProof(key.KeyType, key.PublicKey, message, in.Signature) {
		return Denied(ReasonInvalidDeviceProof), nil
	}

	if err := s.challenges.Consume(ctx, ch.ID); err != nil {
		return Result{}, err
	}
	return OK(), nil
}
