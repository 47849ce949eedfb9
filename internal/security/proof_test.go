package security

import (
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/sha256"
	"crypto/x509"
	"encoding/base64"
	"testing"
)

func TestBuildProofMessage(t *testing.T) {
	got := BuildProofMessage("n0nce", "dev-1", "rp-1", "123456")
	want := "n0nce|dev-1|rp-1|123456"
	if string(got) != want {
		t.Fatalf("BuildProofMessage = %q, want %q", got, want)
	}
}

func ed25519Pair(t *testing.T) (pubB64 string, priv ed25519.PrivateKey) {
	t.Helper()
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("generate ed25519 key: %v", err)
	}
	return base64.StdEncoding.EncodeToString(pub), priv
}

func TestVerifyProof_Ed25519RawKey(t *testing.T) {
	pubB64, priv := ed25519Pair(t)
	msg := BuildProofMessage("nonce", "device", "rp", "123456")
	sig := base64.StdEncoding.EncodeToString(ed25519.Sign(priv, msg))

	if !VerifyProof(KeyTypeEd25519, pubB64, msg, sig) {
		t.Fatal("valid ed25519 proof rejected")
	}
}

func TestVerifyProof_Ed25519DERKey(t *testing.T) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("generate ed25519 key: %v", err)
	}
	der, err := x509.MarshalPKIXPublicKey(pub)
	if err != nil {
		t.Fatalf("marshal public key: %v", err)
	}
	pubB64 := base64.StdEncoding.EncodeToString(der)
	msg := BuildProofMessage("nonce", "device", "rp", "123456")
	sig := base64.StdEncoding.EncodeToString(ed25519.Sign(priv, msg))

	if !VerifyProof(KeyTypeEd25519, pubB64, msg, sig) {
		t.Fatal("valid ed25519 proof with DER key rejected")
	}
}

func TestVerifyProof_Ed25519URLSafeBase64(t *testing.T) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("generate ed25519 key: %v", err)
	}
	msg := BuildProofMessage("nonce", "device", "rp", "123456")
	pubB64 := base64.RawURLEncoding.EncodeToString(pub)
	sig := base64.RawURLEncoding.EncodeToString(ed25519.Sign(priv, msg))

	if !VerifyProof(KeyTypeEd25519, pubB64, msg, sig) {
		t.Fatal("valid ed25519 proof with URL-safe encoding rejected")
	}
}

func TestVerifyProof_P256(t *testing.T) {
	priv, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		t.Fatalf("generate p256 key: %v", err)
	}
	der, err := x509.MarshalPKIXPublicKey(&priv.PublicKey)
	if err != nil {
		t.Fatalf("marshal public key: %v", err)
	}
	pubB64 := base64.StdEncoding.EncodeToString(der)
	msg := BuildProofMessage("nonce", "device", "rp", "123456")
	digest := sha256.Sum256(msg)
	sigDER, err := ecdsa.SignASN1(rand.Reader, priv, digest[:])
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	sig := base64.StdEncoding.EncodeToString(sigDER)

	if !VerifyProof(KeyTypeP256, pubB64, msg, sig) {
		t.Fatal("valid p256 proof rejected")
	}
	if VerifyProof(KeyTypeP256, pubB64, BuildProofMessage("other", "device", "rp", "123456"), sig) {
		t.Fatal("p256 proof accepted for a different message")
	}
}

func TestVerifyProof_WrongKeyFails(t *testing.T) {
	pubB64, _ := ed25519Pair(t)
	_, otherPriv := ed25519Pair(t)
	msg := BuildProofMessage("nonce", "device", "rp", "123456")
	sig := base64.StdEncoding.EncodeToString(ed25519.Sign(otherPriv, msg))

	if VerifyProof(KeyTypeEd25519, pubB64, msg, sig) {
		t.Fatal("proof signed by an unregistered key accepted")
	}
}

func TestVerifyProof_AnyFieldMutationFails(t *testing.T) {
	pubB64, priv := ed25519Pair(t)
	msg := BuildProofMessage("nonce", "device", "rp", "123456")
	sig := base64.StdEncoding.EncodeToString(ed25519.Sign(priv, msg))

	mutated := [][]byte{
		BuildProofMessage("Nonce", "device", "rp", "123456"),
		BuildProofMessage("nonce", "Device", "rp", "123456"),
		BuildProofMessage("nonce", "device", "Rp", "123456"),
		BuildProofMessage("nonce", "device", "rp", "123457"),
	}
	for i, m := range mutated {
		if VerifyProof(KeyTypeEd25519, pubB64, m, sig) {
			t.Errorf("mutation %d: proof accepted over a mutated message", i)
		}
	}
}

func TestVerifyProof_UnknownKeyTypeFails(t *testing.T) {
	pubB64, priv := ed25519Pair(t)
	msg := BuildProofMessage("nonce", "device", "rp", "123456")
	sig := base64.StdEncoding.EncodeToString(ed25519.Sign(priv, msg))

	for _, kt := range []string{"", "rsa", "ED25519", "p384"} {
		if VerifyProof(kt, pubB64, msg, sig) {
			t.Errorf("key type %q: proof accepted", kt)
		}
	}
}

func TestVerifyProof_MalformedInputsFailNotPanic(t *testing.T) {
	msg := BuildProofMessage("nonce", "device", "rp", "123456")
	cases := []struct{ keyType, pub, sig string }{
		{KeyTypeEd25519, "!!!not-base64!!!", "c2ln"},
		{KeyTypeEd25519, "c2hvcnQ=", "c2ln"}, // key not 32 bytes, not DER
		{KeyTypeEd25519, "", ""},
		{KeyTypeP256, "c2hvcnQ=", "c2ln"},
		{KeyTypeP256, "!!!not-base64!!!", "!!!also-bad!!!"},
	}
	for i, c := range cases {
		if VerifyProof(c.keyType, c.pub, msg, c.sig) {
			t.Errorf("case %d: malformed input verified", i)
		}
	}
}

func TestVerifyProof_P256KeyRejectedForEd25519Tag(t *testing.T) {
	priv, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		t.Fatalf("generate p256 key: %v", err)
	}
	der, err := x509.MarshalPKIXPublicKey(&priv.PublicKey)
	if err != nil {
		t.Fatalf("marshal public key: %v", err)
	}
	pubB64 := base64.StdEncoding.EncodeToString(der)
	msg := BuildProofMessage("nonce", "device", "rp", "123456")
	digest := sha256.Sum256(msg)
	sigDER, err := ecdsa.SignASN1(rand.Reader, priv, digest[:])
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if VerifyProof(KeyTypeEd25519, pubB64, msg, base64.StdEncoding.EncodeToString(sigDER)) {
		t.Fatal("p256 key accepted under the ed25519 tag")
	}
}
