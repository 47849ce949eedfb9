// Package totp implements time-based one-time codes: generation and
// verification with bounded clock drift, registration with provisioning URIs,
// and one-time recovery codes.
package totp

import (
	"crypto/rand"
	"encoding/hex"
	"time"

	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
)

const (
	// Skew is the accepted drift in 30-second time steps on either side of
	// now (±2 steps = ±60s).
	Skew = 2
	// Period is the TOTP time step in seconds.
	Period = 30
	// SecretSize is the random secret length in bytes (160 bits, base32-encoded).
	SecretSize = 20
	// RecoveryCodeCount is the number of recovery codes issued per registration.
	RecoveryCodeCount = 8
)

func validateOpts() totp.ValidateOpts {
	return totp.ValidateOpts{
		Period:    Period,
		Skew:      Skew,
		Digits:    otp.DigitsSix,
		Algorithm: otp.AlgorithmSHA1,
	}
}

// Verify reports whether code is valid for secret within the drift window.
// It does not reveal which time-step offset matched; any decode failure is
// an ordinary false.
func Verify(secret, code string) bool {
	ok, err := totp.ValidateCustom(code, secret, time.Now().UTC(), validateOpts())
	return err == nil && ok
}

// Current returns the code for secret at the current time. Debug surfaces
// only; shares the generation path with Verify.
func Current(secret string) (string, error) {
	return totp.GenerateCodeCustom(secret, time.Now().UTC(), validateOpts())
}

// GenerateKey creates a fresh random secret and its otpauth provisioning URI
// for the given issuer and account name.
func GenerateKey(issuer, accountName string) (*otp.Key, error) {
	return totp.Generate(totp.GenerateOpts{
		Issuer:      issuer,
		AccountName: accountName,
		Period:      Period,
		SecretSize:  SecretSize,
		Digits:      otp.DigitsSix,
		Algorithm:   otp.AlgorithmSHA1,
	})
}

// GenerateRecoveryCodes returns count random 8-hex-char one-time codes.
func GenerateRecoveryCodes(count int) ([]string, error) {
	codes := make([]string, 0, count)
	for i := 0; i < count; i++ {
		b := make([]byte, 4)
		if _, err := rand.Read(b); err != nil {
			return nil, err
		}
		codes = append(codes, hex.EncodeToString(b))
	}
	return codes, nil
}

// ValidCode reports whether s looks like an OTP (6-8 digits). Validated at
// the handler boundary so OTPs can never carry the proof delimiter.
func ValidCode(s string) bool {
	if len(s) < 6 || len(s) > 8 {
		return false
	}
	for _, c := range s {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}
