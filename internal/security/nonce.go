package security

import (
	"crypto/rand"
	"encoding/base64"
)

// nonceBytes is the entropy of a challenge nonce (256 bits).
const nonceBytes = 32

// GenerateNonce returns a URL-safe random nonce with 256 bits of entropy.
// The alphabet excludes the device-proof delimiter, so a nonce can never
// make the canonical message ambiguous.
func GenerateNonce() (string, error) {
	b := make([]byte, nonceBytes)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
