// Package verification implements the direct device+TOTP verification flow
// and defines the status/reason vocabulary shared by every protocol outcome.
package verification

// Statuses reported to callers. Login challenges additionally report their
// own lifecycle states (pending/approved/denied).
const (
	StatusOK      = "ok"
	StatusPending = "pending"
	StatusDenied  = "denied"
)

// Denial reasons. These exact strings are part of the protocol contract and
// are consumed by clients and tests.
const (
	ReasonDeviceNotEnrolled     = "device_not_enrolled"
	ReasonTotpNotRegistered     = "totp_not_registered"
	ReasonInvalidOTP            = "invalid_otp"
	ReasonInvalidOrExpiredNonce = "invalid_or_expired_nonce"
	ReasonInvalidDeviceProof    = "invalid_device_proof"
	ReasonOTPMismatch           = "otp_mismatch"
	ReasonMismatch              = "mismatch"
	ReasonRPNotFound            = "rp_not_found"
	ReasonNotPending            = "not_pending"
	ReasonNotFound              = "not_found"
	ReasonUserNotFound          = "user_not_found"
	ReasonDeviceNotFound        = "device_not_found"
	ReasonInvalidRecoveryCode   = "invalid_recovery_code"
	ReasonExpired               = "expired"
	ReasonUserCleared           = "user_cleared"
)

// Result is a structured protocol outcome. Denials are expected, frequent
// outcomes, never errors.
type Result struct {
	Status string `json:"status"`
	Reason string `json:"reason,omitempty"`
}

// Denied returns a denial result with the given reason.
func Denied(reason string) Result {
	return Result{Status: StatusDenied, Reason: reason}
}

// OK is the success result.
func OK() Result {
	return Result{Status: StatusOK}
}
