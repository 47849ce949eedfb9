package security

import (
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/elliptic"
	"crypto/sha256"
	"crypto/x509"
	"encoding/base64"
	"fmt"
)

// Key type tags stored on device_keys rows.
const (
	KeyTypeEd25519 = "ed25519"
	KeyTypeP256    = "p256"
)

// ProofDelimiter joins the canonical message fields. rp_id values are
// validated at creation time to exclude it; nonces are URL-safe base64 and
// device IDs are UUIDs, so no field can contain it.
const ProofDelimiter = "|"

// BuildProofMessage returns the canonical message a device signs:
// nonce|deviceID|rpID|otp.
func BuildProofMessage(nonce, deviceID, rpID, otp string) []byte {
	return []byte(fmt.Sprintf("%s%s%s%s%s%s%s",
		nonce, ProofDelimiter, deviceID, ProofDelimiter, rpID, ProofDelimiter, otp))
}

// SignatureVerifier checks a signature over a message against a base64-encoded
// public key. Implementations must collapse every decode or verify failure to
// false so callers cannot distinguish "malformed" from "wrong signature".
type SignatureVerifier interface {
	VerifySignature(publicKeyB64 string, message []byte, signatureB64 string) bool
}

// VerifierFor returns the verifier for a device key's type tag. Unknown tags
// get a verifier that always fails, not an error.
func VerifierFor(keyType string) SignatureVerifier {
	switch keyType {
	case KeyTypeEd25519:
		return Ed25519Verifier{}
	case KeyTypeP256:
		return P256Verifier{}
	default:
		return rejectAll{}
	}
}

// VerifyProof verifies signature over the canonical message for the given key
// type and public key. Never errors; all failures are false.
func VerifyProof(keyType, publicKeyB64 string, message []byte, signatureB64 string) bool {
	return VerifierFor(keyType).VerifySignature(publicKeyB64, message, signatureB64)
}

// Ed25519Verifier verifies Ed25519 signatures. The public key may be 32 raw
// bytes or a DER-wrapped Ed25519 key.
type Ed25519Verifier struct{}

func (Ed25519Verifier) VerifySignature(publicKeyB64 string, message []byte, signatureB64 string) bool {
	keyBytes, sig, ok := decodeKeyAndSignature(publicKeyB64, signatureB64)
	if !ok {
		return false
	}
	var pub ed25519.PublicKey
	if len(keyBytes) == ed25519.PublicKeySize {
		pub = ed25519.PublicKey(keyBytes)
	} else {
		parsed, err := x509.ParsePKIXPublicKey(keyBytes)
		if err != nil {
			return false
		}
		var isEd bool
		pub, isEd = parsed.(ed25519.PublicKey)
		if !isEd {
			return false
		}
	}
	if len(sig) != ed25519.SignatureSize {
		return false
	}
	return ed25519.Verify(pub, message, sig)
}

// P256Verifier verifies ECDSA signatures over SHA-256 with DER-encoded
// signatures and DER-encoded P-256 public keys.
type P256Verifier struct{}

func (P256Verifier) VerifySignature(publicKeyB64 string, message []byte, signatureB64 string) bool {
	keyBytes, sig, ok := decodeKeyAndSignature(publicKeyB64, signatureB64)
	if !ok {
		return false
	}
	parsed, err := x509.ParsePKIXPublicKey(keyBytes)
	if err != nil {
		return false
	}
	pub, isEC := parsed.(*ecdsa.PublicKey)
	if !isEC || pub.Curve != elliptic.P256() {
		return false
	}
	digest := sha256.Sum256(message)
	return ecdsa.VerifyASN1(pub, digest[:], sig)
}

type rejectAll struct{}

func (rejectAll) VerifySignature(string, []byte, string) bool { return false }

func decodeKeyAndSignature(publicKeyB64, signatureB64 string) (key, sig []byte, ok bool) {
	key, err := decodeBase64(publicKeyB64)
	if err != nil {
		return nil, nil, false
	}
	sig, err = decodeBase64(signatureB64)
	if err != nil {
		return nil, nil, false
	}
	return key, sig, true
}

// decodeBase64 accepts standard or URL-safe encoding; mobile clients differ.
func decodeBase64(s string) ([]byte, error) {
	if b, err := base64.StdEncoding.DecodeString(s); err == nil {
		return b, nil
	}
	return base64.RawURLEncoding.DecodeString(s)
}
