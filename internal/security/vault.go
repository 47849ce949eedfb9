// Package security holds the crypto building blocks of the verification
// protocol: the secret vault, peppered hashes, nonce generation, device-proof
// signature verification, and login-assertion signing.
package security

import (
	"crypto/rand"
	"encoding/base64"
	"errors"

	"golang.org/x/crypto/chacha20poly1305"
)

// ErrDecryption is returned when a stored secret cannot be decrypted (master
// key mismatch or tampered ciphertext). Callers must treat it as a fatal
// verification failure, never as "no secret registered".
var ErrDecryption = errors.New("secret decryption failed")

// Vault encrypts and decrypts TOTP shared secrets at rest with a server-held
// 32-byte master key (XChaCha20-Poly1305, random nonce per encryption).
type Vault struct {
	key []byte
}

// NewVault returns a Vault for the given 32-byte master key.
func NewVault(masterKey []byte) (*Vault, error) {
	if len(masterKey) != chacha20poly1305.KeySize {
		return nil, errors.New("master key must be 32 bytes")
	}
	k := make([]byte, len(masterKey))
	copy(k, masterKey)
	return &Vault{key: k}, nil
}

// Encrypt seals plaintext and returns a base64 envelope of nonce||ciphertext.
func (v *Vault) Encrypt(plaintext string) (string, error) {
	aead, err := chacha20poly1305.NewX(v.key)
	if err != nil {
		return "", err
	}
	nonce := make([]byte, aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return "", err
	}
	sealed := aead.Seal(nonce, nonce, []byte(plaintext), nil)
	return base64.StdEncoding.EncodeToString(sealed), nil
}

// Decrypt opens an envelope produced by Encrypt. Fails closed with
// ErrDecryption on any malformed envelope, key mismatch, or tampering.
func (v *Vault) Decrypt(envelope string) (string, error) {
	sealed, err := base64.StdEncoding.DecodeString(envelope)
	if err != nil {
		return "", ErrDecryption
	}
	aead, err := chacha20poly1305.NewX(v.key)
	if err != nil {
		return "", err
	}
	if len(sealed) < aead.NonceSize() {
		return "", ErrDecryption
	}
	nonce, ciphertext := sealed[:aead.NonceSize()], sealed[aead.NonceSize():]
	plaintext, err := aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return "", ErrDecryption
	}
	return string(plaintext), nil
}

// GenerateMasterKey returns a new random 32-byte master key, base64-encoded,
// suitable for the MASTER_KEY config value.
func GenerateMasterKey() (string, error) {
	key := make([]byte, chacha20poly1305.KeySize)
	if _, err := rand.Read(key); err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(key), nil
}
