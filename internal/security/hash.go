package security

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
)

// HashRecoveryCode returns a SHA-256 hash of code||pepper, hex-encoded.
// Deterministic so unused codes can be looked up by hash.
func HashRecoveryCode(code, pepper string) string {
	h := sha256.Sum256([]byte(code + pepper))
	return hex.EncodeToString(h[:])
}

// HashOTP returns a SHA-256 hash of otp||pepper, hex-encoded. Stored on a
// login challenge at start time to bind the approval to the same OTP the
// browser session presented.
func HashOTP(otp, pepper string) string {
	h := sha256.Sum256([]byte(otp + pepper))
	return hex.EncodeToString(h[:])
}

// HashEqual performs constant-time comparison of two hex digests.
func HashEqual(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}
