package domain

import "time"

// Secret is an encrypted TOTP shared secret scoped to (user, relying party).
// At most one row per (user_id, rp_id); rp_id is the relying party's external
// identifier.
type Secret struct {
	ID              string
	UserID          string
	RPID            string
	SecretEncrypted string
	CreatedAt       time.Time
}

// RecoveryCode is a hashed one-time fallback credential scoped to a user.
// UsedAt nil means unused.
type RecoveryCode struct {
	ID        string
	UserID    string
	CodeHash  string
	CreatedAt time.Time
	UsedAt    *time.Time
}
