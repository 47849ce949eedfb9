package totp

import (
	"testing"
	"time"

	"github.com/pquerna/otp"
	gototp "github.com/pquerna/otp/totp"
)

func testSecret(t *testing.T) string {
	t.Helper()
	key, err := GenerateKey("zt-totp-test", "user@example.com")
	if err != nil {
		t.Fatalf("GenerateKey: %v", err)
	}
	return key.Secret()
}

func codeAt(t *testing.T, secret string, at time.Time) string {
	t.Helper()
	code, err := gototp.GenerateCodeCustom(secret, at, gototp.ValidateOpts{
		Period:    Period,
		Skew:      Skew,
		Digits:    otp.DigitsSix,
		Algorithm: otp.AlgorithmSHA1,
	})
	if err != nil {
		t.Fatalf("GenerateCodeCustom: %v", err)
	}
	return code
}

func TestVerify_CurrentCode(t *testing.T) {
	secret := testSecret(t)
	if !Verify(secret, codeAt(t, secret, time.Now().UTC())) {
		t.Fatal("current code rejected")
	}
}

func TestVerify_DriftWindowBoundary(t *testing.T) {
	secret := testSecret(t)
	now := time.Now().UTC()
	// Stay clear of a step edge so a ±60s shift lands exactly 2 steps out
	// and a ±90s shift exactly 3 for the whole test run.
	if rem := time.Duration(Period-now.Unix()%Period) * time.Second; rem < 3*time.Second {
		time.Sleep(rem)
		now = time.Now().UTC()
	}

	for _, offset := range []time.Duration{-60 * time.Second, 60 * time.Second} {
		if !Verify(secret, codeAt(t, secret, now.Add(offset))) {
			t.Errorf("code at offset %v rejected, want accepted within window", offset)
		}
	}
	for _, offset := range []time.Duration{-90 * time.Second, 90 * time.Second} {
		if Verify(secret, codeAt(t, secret, now.Add(offset))) {
			t.Errorf("code at offset %v accepted, want rejected outside window", offset)
		}
	}
}

func TestVerify_WrongAndMalformedCodes(t *testing.T) {
	secret := testSecret(t)
	for _, code := range []string{"", "000000", "abcdef", "12345"} {
		if Verify(secret, code) {
			t.Errorf("Verify accepted %q", code)
		}
	}
}

func TestCurrent_MatchesVerify(t *testing.T) {
	secret := testSecret(t)
	code, err := Current(secret)
	if err != nil {
		t.Fatalf("Current: %v", err)
	}
	if !Verify(secret, code) {
		t.Fatal("Current produced a code Verify rejects")
	}
}

func TestGenerateKey_SecretEntropy(t *testing.T) {
	key, err := GenerateKey("zt-totp-test", "user@example.com")
	if err != nil {
		t.Fatalf("GenerateKey: %v", err)
	}
	// 20 random bytes base32-encode to 32 chars.
	if len(key.Secret()) != 32 {
		t.Fatalf("secret length = %d, want 32 base32 chars", len(key.Secret()))
	}
	if key.URL() == "" {
		t.Fatal("empty provisioning URI")
	}
}

func TestGenerateRecoveryCodes(t *testing.T) {
	codes, err := GenerateRecoveryCodes(RecoveryCodeCount)
	if err != nil {
		t.Fatalf("GenerateRecoveryCodes: %v", err)
	}
	if len(codes) != RecoveryCodeCount {
		t.Fatalf("got %d codes, want %d", len(codes), RecoveryCodeCount)
	}
	seen := make(map[string]bool)
	for _, c := range codes {
		if len(c) != 8 {
			t.Errorf("code %q length = %d, want 8", c, len(c))
		}
		if seen[c] {
			t.Errorf("duplicate code %q", c)
		}
		seen[c] = true
	}
}

func TestValidCode(t *testing.T) {
	for _, c := range []string{"123456", "12345678"} {
		if !ValidCode(c) {
			t.Errorf("ValidCode(%q) = false", c)
		}
	}
	for _, c := range []string{"", "12345", "123456789", "12345a", "123|456"} {
		if ValidCode(c) {
			t.Errorf("ValidCode(%q) = true", c)
		}
	}
}
