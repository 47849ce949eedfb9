package domain

import "time"

// Challenge is a single-use nonce scoped to (device, relying party). Deleted
// on successful consumption; pruned when expired. rp_id is the relying
// party's external identifier.
type Challenge struct {
	ID        string
	DeviceID  string
	RPID      string
	Nonce     string
	CreatedAt time.Time
	ExpiresAt time.Time
}
