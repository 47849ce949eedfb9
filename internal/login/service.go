// Package login implements the cross-device login handshake: a login started
// on one surface (by email + OTP) is approved or denied by the user's
// enrolled device.
package login

import (
	"context"
	"log"
	"time"

	"github.com/google/uuid"

	devicedomain "zt-totp/backend/internal/device/domain"
	devicekeydomain "zt-totp/backend/internal/devicekey/domain"
	"zt-totp/backend/internal/login/domain"
	"zt-totp/backend/internal/login/repository"
	rpdomain "zt-totp/backend/internal/relyingparty/domain"
	"zt-totp/backend/internal/security"
	"zt-totp/backend/internal/totp"
	totpdomain "zt-totp/backend/internal/totp/domain"
	userdomain "zt-totp/backend/internal/user/domain"
	"zt-totp/backend/internal/verification"
)

// DefaultTTL is the login challenge lifetime. Short on purpose: the user is
// actively waiting at the login surface while the device approves.
const DefaultTTL = 120 * time.Second

// UserRepo is the minimal user repository needed by the service.
type UserRepo interface {
	GetByID(ctx context.Context, id string) (*userdomain.User, error)
	GetByEmail(ctx context.Context, email string) (*userdomain.User, error)
}

// DeviceRepo is the minimal device repository needed by the service.
type DeviceRepo interface {
	GetLatestForUser(ctx context.Context, userID string) (*devicedomain.Device, error)
}

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
	GetLatestSecretForUser(ctx context.Context, userID string) (*totpdomain.Secret, error)
}

// RecoveryVerifier consumes one unused recovery code for a user.
type RecoveryVerifier interface {
	VerifyRecovery(ctx context.Context, userID, code string) (bool, error)
}

// StartResult is the outcome of starting a login.
type StartResult struct {
	Status    string
	Reason    string
	LoginID   string
	ExpiresIn int
}

// StatusResult is the outcome of a status, approve, or deny call. Status is a
// challenge lifecycle state; UserID and RPID let the transport layer mint an
// assertion for approved logins.
type StatusResult struct {
	Status string
	Reason string
	UserID string
	RPID   string
}

// PendingResult describes the challenge an approving device must sign.
type PendingResult struct {
	Status    string
	Reason    string
	LoginID   string
	DeviceID  string
	RPID      string
	Nonce     string
	ExpiresIn int
}

// ApproveInput carries a device's approval attempt.
type ApproveInput struct {
	LoginID   string
	DeviceID  string
	RPID      string
	OTP       string
	Nonce     string
	Signature string
}

// Service drives the login-challenge state machine. Challenges move from
// pending to exactly one terminal state; terminal states never mutate again.
type Service struct {
	repo      repository.Repository
	users     UserRepo
	devices   DeviceRepo
	rps       RelyingPartyRepo
	keys      DeviceKeyRepo
	secrets   SecretRepo
	recovery  RecoveryVerifier
	vault     *security.Vault
	otpPepper string
	ttl       time.Duration
}

// NewService returns a login service. ttl <= 0 falls back to DefaultTTL.
func NewService(
	repo repository.Repository,
	users UserRepo,
	devices DeviceRepo,
	rps RelyingPartyRepo,
	keys DeviceKeyRepo,
	secrets SecretRepo,
	recovery RecoveryVerifier,
	vault *security.Vault,
	otpPepper string,
	ttl time.Duration,
) *Service {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Service{
		repo: repo, users: users, devices: devices, rps: rps, keys: keys,
		secrets: secrets, recovery: recovery, vault: vault,
		otpPepper: otpPepper, ttl: ttl,
	}
}

func deniedStart(reason string) StartResult {
	return StartResult{Status: verification.StatusDenied, Reason: reason}
}

// Start begins a login for the user identified by email. The user's
// most-recently-created device is canonical, and the relying party is the one
// of the user's most-recently-registered secret. Any resolution or OTP
// failure denies without creating a challenge.
func (s *Service) Start(ctx context.Context, email, otp string) (StartResult, error) {
	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		return StartResult{}, err
	}
	if user == nil {
		return deniedStart(verification.ReasonUserNotFound), nil
	}

	device, err := s.devices.GetLatestForUser(ctx, user.ID)
	if err != nil {
		return StartResult{}, err
	}
	if device == nil {
		return deniedStart(verification.ReasonDeviceNotFound), nil
	}

	secretRow, err := s.secrets.GetLatestSecretForUser(ctx, user.ID)
	if err != nil {
		return StartResult{}, err
	}
	if secretRow == nil {
		return deniedStart(verification.ReasonTotpNotRegistered), nil
	}

	rp, err := s.rps.GetByExternalID(ctx, secretRow.RPID)
	if err != nil {
		return StartResult{}, err
	}
	if rp == nil {
		return deniedStart(verification.ReasonRPNotFound), nil
	}

	key, err := s.keys.GetByDeviceAndRP(ctx, device.ID, rp.ID)
	if err != nil {
		return StartResult{}, err
	}
	if key == nil {
		return deniedStart(verification.ReasonDeviceNotEnrolled), nil
	}

	secret, err := s.vault.Decrypt(secretRow.SecretEncrypted)
	if err != nil {
		return StartResult{}, err
	}
	if !totp.Verify(secret, otp) {
		return deniedStart(verification.ReasonInvalidOTP), nil
	}

	nonce, err := security.GenerateNonce()
	if err != nil {
		return StartResult{}, err
	}
	now := time.Now().UTC()
	c := &domain.LoginChallenge{
		ID:        uuid.New().String(),
		UserID:    user.ID,
		DeviceID:  device.ID,
		RPID:      secretRow.RPID,
		Nonce:     nonce,
		OTPHash:   security.HashOTP(otp, s.otpPepper),
		Status:    domain.StatusPending,
		CreatedAt: now,
		ExpiresAt: now.Add(s.ttl),
	}
	if err := s.repo.Insert(ctx, c); err != nil {
		return StartResult{}, err
	}
	return StartResult{
		Status:    verification.StatusPending,
		LoginID:   c.ID,
		ExpiresIn: int(s.ttl.Seconds()),
	}, nil
}

// Status reports the current state of a login challenge. Unknown ids report
// denied/not_found; an overdue pending challenge reports denied/expired
// without waiting for pruning.
func (s *Service) Status(ctx context.Context, loginID string) (StatusResult, error) {
	c, err := s.repo.GetByID(ctx, loginID)
	if err != nil {
		return StatusResult{}, err
	}
	if c == nil {
		return StatusResult{Status: domain.StatusDenied, Reason: verification.ReasonNotFound}, nil
	}
	if c.Status == domain.StatusPending && c.Expired(time.Now().UTC()) {
		return StatusResult{Status: domain.StatusDenied, Reason: verification.ReasonExpired, UserID: c.UserID, RPID: c.RPID}, nil
	}
	return StatusResult{Status: c.Status, Reason: c.DeniedReason, UserID: c.UserID, RPID: c.RPID}, nil
}

// PendingForUser returns the challenge the user's device should sign, found
// by email. Used by the approving device to discover outstanding logins.
func (s *Service) PendingForUser(ctx context.Context, email string) (PendingResult, error) {
	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		return PendingResult{}, err
	}
	if user == nil {
		return PendingResult{Status: domain.StatusDenied, Reason: verification.ReasonUserNotFound}, nil
	}
	c, err := s.repo.GetPendingForUser(ctx, user.ID)
	if err != nil {
		return PendingResult{}, err
	}
	if c == nil {
		return PendingResult{Status: domain.StatusDenied, Reason: verification.ReasonNotFound}, nil
	}
	// The challenge can lapse between the repository's expiry filter and this
	// computation; never report a negative remainder.
	remaining := int(time.Until(c.ExpiresAt).Seconds())
	if remaining < 0 {
		remaining = 0
	}
	return PendingResult{
		Status:    domain.StatusPending,
		LoginID:   c.ID,
		DeviceID:  c.DeviceID,
		RPID:      c.RPID,
		Nonce:     c.Nonce,
		ExpiresIn: remaining,
	}, nil
}

// terminalResult reports a resolved challenge's stored outcome. Denied rows
// with no recorded reason (pre-reason data) report not_pending.
func terminalResult(c *domain.LoginChallenge) StatusResult {
	reason := c.DeniedReason
	if reason == "" && c.Status == domain.StatusDenied {
		reason = verification.ReasonNotPending
	}
	return StatusResult{Status: c.Status, Reason: reason, UserID: c.UserID, RPID: c.RPID}
}

// resolved re-reads a challenge after a mark transition did not apply and
// reports the state that actually stuck.
func (s *Service) resolved(ctx context.Context, id string) (StatusResult, error) {
	c, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return StatusResult{}, err
	}
	if c == nil {
		return StatusResult{Status: domain.StatusDenied, Reason: verification.ReasonNotFound}, nil
	}
	return terminalResult(c), nil
}

// deny marks the challenge denied and returns the matching result. The mark
// only touches pending rows; when a concurrent resolution got there first,
// the stored outcome is reported instead of the attempted one.
func (s *Service) deny(ctx context.Context, id, reason string) (StatusResult, error) {
	applied, err := s.repo.MarkDenied(ctx, id, reason)
	if err != nil {
		return StatusResult{}, err
	}
	if !applied {
		return s.resolved(ctx, id)
	}
	return StatusResult{Status: domain.StatusDenied, Reason: reason}, nil
}

// Approve resolves a pending login from the device side. Every gate that
// fails marks the challenge denied (a terminal side effect); a challenge
// already resolved returns its existing resolution without re-verification.
func (s *Service) Approve(ctx context.Context, in ApproveInput) (StatusResult, error) {
	c, err := s.repo.GetByID(ctx, in.LoginID)
	if err != nil {
		return StatusResult{}, err
	}
	if c == nil {
		return StatusResult{Status: domain.StatusDenied, Reason: verification.ReasonNotFound}, nil
	}
	if c.Terminal() {
		return terminalResult(c), nil
	}
	if c.Expired(time.Now().UTC()) {
		return s.deny(ctx, c.ID, verification.ReasonExpired)
	}
	if in.DeviceID != c.DeviceID || in.RPID != c.RPID {
		return s.deny(ctx, c.ID, verification.ReasonMismatch)
	}

	rp, err := s.rps.GetByExternalID(ctx, c.RPID)
	if err != nil {
		return StatusResult{}, err
	}
	if rp == nil {
		return s.deny(ctx, c.ID, verification.ReasonRPNotFound)
	}
	key, err := s.keys.GetByDeviceAndRP(ctx, c.DeviceID, rp.ID)
	if err != nil {
		return StatusResult{}, err
	}
	if key == nil {
		return s.deny(ctx, c.ID, verification.ReasonDeviceNotEnrolled)
	}
	secretRow, err := s.secrets.GetSecret(ctx, c.UserID, c.RPID)
	if err != nil {
		return StatusResult{}, err
	}
	if secretRow == nil {
		return s.deny(ctx, c.ID, verification.ReasonTotpNotRegistered)
	}

	secret, err := s.vault.Decrypt(secretRow.SecretEncrypted)
	if err != nil {
		return StatusResult{}, err
	}
	if !totp.Verify(secret, in.OTP) {
		return s.deny(ctx, c.ID, verification.ReasonInvalidOTP)
	}
	// The approval OTP must be the very one shown at start time, not merely a
	// currently-valid code.
	if !security.HashEqual(security.HashOTP(in.OTP, s.otpPepper), c.OTPHash) {
		return s.deny(ctx, c.ID, verification.ReasonOTPMismatch)
	}

	message := security.BuildProofMessage(in.Nonce, c.DeviceID, c.RPID, in.OTP)
	if !security.VerifyProof(key.KeyType, key.PublicKey, message, in.Signature) {
		return s.deny(ctx, c.ID, verification.ReasonInvalidDeviceProof)
	}

	applied, err := s.repo.MarkApproved(ctx, c.ID)
	if err != nil {
		return StatusResult{}, err
	}
	if !applied {
		// A deny or expiry prune resolved the challenge between our read and
		// this transition; the persisted outcome wins.
		return s.resolved(ctx, c.ID)
	}
	return StatusResult{Status: domain.StatusApproved, UserID: c.UserID, RPID: c.RPID}, nil
}

// Deny resolves a pending login with the caller-supplied reason. An already
// resolved challenge returns its existing resolution unchanged.
func (s *Service) Deny(ctx context.Context, loginID, reason string) (StatusResult, error) {
	c, err := s.repo.GetByID(ctx, loginID)
	if err != nil {
		return StatusResult{}, err
	}
	if c == nil {
		return StatusResult{Status: domain.StatusDenied, Reason: verification.ReasonNotFound}, nil
	}
	if c.Terminal() {
		return terminalResult(c), nil
	}
	if reason == "" {
		reason = "user_denied"
	}
	return s.deny(ctx, c.ID, reason)
}

// Recovery validates a fallback login by email + recovery code, bypassing the
// challenge state machine entirely. The code is consumed on success.
func (s *Service) Recovery(ctx context.Context, email, code string) (verification.Result, error) {
	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		return verification.Result{}, err
	}
	if user == nil {
		return verification.Denied(verification.ReasonUserNotFound), nil
	}
	ok, err := s.recovery.VerifyRecovery(ctx, user.ID, code)
	if err != nil {
		return verification.Result{}, err
	}
	if !ok {
		return verification.Denied(verification.ReasonInvalidRecoveryCode), nil
	}
	return verification.OK(), nil
}

// ClearResult reports how many pending challenges a clear removed.
type ClearResult struct {
	Status  string
	Reason  string
	Cleared int64
}

// ClearPending denies all of a user's outstanding pending challenges with
// reason user_cleared, identified by email.
func (s *Service) ClearPending(ctx context.Context, email string) (ClearResult, error) {
	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		return ClearResult{}, err
	}
	if user == nil {
		return ClearResult{Status: verification.StatusDenied, Reason: verification.ReasonUserNotFound}, nil
	}
	n, err := s.repo.ClearPendingForUser(ctx, user.ID)
	if err != nil {
		return ClearResult{}, err
	}
	return ClearResult{Status: verification.StatusOK, Cleared: n}, nil
}

// PruneExpired marks overdue pending challenges denied/expired. Best-effort
// storage hygiene; read paths already enforce expiry.
func (s *Service) PruneExpired(ctx context.Context) {
	if err := s.repo.PruneExpired(ctx); err != nil {
		log.Printf("login: prune expired: %v", err)
	}
}
