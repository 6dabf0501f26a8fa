package naming

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"strings"
)

// Sign signs the canonical encoding of records and returns the hex signature.
func Sign(records []Record, key ed25519.PrivateKey) (string, error) {
	if len(key) != ed25519.PrivateKeySize {
		return "", fmt.Errorf("%w: private key must be %d bytes", ErrInvalidKey, ed25519.PrivateKeySize)
	}
	return hex.EncodeToString(ed25519.Sign(key, CanonicalRecords(records))), nil
}

// Verify reports whether signatureHex is key's signature over the canonical
// encoding of records. It accepts arbitrary input and returns false on any
// decoding, length or cryptographic failure.
func Verify(records []Record, signatureHex string, key ed25519.PublicKey) bool {
	if len(key) != ed25519.PublicKeySize {
		return false
	}
	sig, err := hex.DecodeString(signatureHex)
	if err != nil || len(sig) != ed25519.SignatureSize {
		return false
	}
	return ed25519.Verify(key, CanonicalRecords(records), sig)
}

// ParsePublicKey decodes a hex verifying key.
func ParsePublicKey(s string) (ed25519.PublicKey, error) {
	raw, err := hex.DecodeString(strings.TrimSpace(s))
	if err != nil {
		return nil, fmt.Errorf("%w: public key is not hex", ErrInvalidKey)
	}
	if len(raw) != ed25519.PublicKeySize {
		return nil, fmt.Errorf("%w: public key must be %d bytes, got %d", ErrInvalidKey, ed25519.PublicKeySize, len(raw))
	}
	return ed25519.PublicKey(raw), nil
}

// ParsePrivateKey decodes a hex signing key. Both the 32-byte seed and the
// 64-byte expanded form are accepted.
func ParsePrivateKey(s string) (ed25519.PrivateKey, error) {
	raw, err := hex.DecodeString(strings.TrimSpace(s))
	if err != nil {
		return nil, fmt.Errorf("%w: private key is not hex", ErrInvalidKey)
	}
	switch len(raw) {
	case ed25519.SeedSize:
		return ed25519.NewKeyFromSeed(raw), nil
	case ed25519.PrivateKeySize:
		key := ed25519.NewKeyFromSeed(raw[:ed25519.SeedSize])
		if !key.Equal(ed25519.PrivateKey(raw)) {
			return nil, fmt.Errorf("%w: expanded private key does not match its seed", ErrInvalidKey)
		}
		return key, nil
	default:
		return nil, fmt.Errorf("%w: private key must be %d bytes, got %d", ErrInvalidKey, ed25519.SeedSize, len(raw))
	}
}

// EncodePrivateKey returns the hex seed of key, the form key files hold.
func EncodePrivateKey(key ed25519.PrivateKey) string {
	return hex.EncodeToString(key.Seed())
}

// EncodePublicKey returns the hex form used in owner documents.
func EncodePublicKey(key ed25519.PublicKey) string {
	return hex.EncodeToString(key)
}

// GenerateKey creates a fresh owner keypair.
func GenerateKey() (ed25519.PrivateKey, error) {
	_, key, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("generate owner key: %w", err)
	}
	return key, nil
}
