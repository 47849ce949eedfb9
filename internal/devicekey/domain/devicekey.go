package domain

import "time"

// DeviceKey binds a (device, relying party) pair to exactly one active public
// key and its signature-algorithm tag. Rotation overwrites in place; there is
// no prior-key revocation record.
type DeviceKey struct {
	ID        string
	DeviceID  string
	RPID      string // relying party internal id
	KeyType   string
	PublicKey string // base64
	CreatedAt time.Time
}
