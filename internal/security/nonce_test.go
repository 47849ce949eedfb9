package security

import (
	"encoding/base64"
	"testing"
)

func TestGenerateNonce(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 50; i++ {
		n, err := GenerateNonce()
		if err != nil {
			t.Fatalf("GenerateNonce: %v", err)
		}
		raw, err := base64.RawURLEncoding.DecodeString(n)
		if err != nil {
			t.Fatalf("nonce is not URL-safe base64: %v", err)
		}
		if len(raw) != 32 {
			t.Fatalf("nonce entropy = %d bytes, want 32", len(raw))
		}
		if seen[n] {
			t.Fatal("duplicate nonce generated")
		}
		seen[n] = true
	}
}
