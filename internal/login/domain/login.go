package domain

import "time"

// Login challenge lifecycle states. A challenge moves from pending to exactly
// one terminal state and never back.
const (
	StatusPending  = "pending"
	StatusApproved = "approved"
	StatusDenied   = "denied"
)

// LoginChallenge is one cross-device login attempt: created on the logging-in
// surface, resolved by the enrolled device.
type LoginChallenge struct {
	ID           string
	UserID       string
	DeviceID     string
	RPID         string // external relying-party id
	Nonce        string
	OTPHash      string // peppered hash of the OTP presented at start
	Status       string
	DeniedReason string
	CreatedAt    time.Time
	ExpiresAt    time.Time
	ApprovedAt   *time.Time
}

// Expired reports whether the challenge deadline has passed at now.
func (c *LoginChallenge) Expired(now time.Time) bool {
	return now.After(c.ExpiresAt)
}

// Terminal reports whether the challenge has reached a final state.
func (c *LoginChallenge) Terminal() bool {
	return c.Status != StatusPending
}
