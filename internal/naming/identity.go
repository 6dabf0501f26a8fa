package naming

import (
	"bytes"
	"crypto/ed25519"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"strings"

	"golang.org/x/crypto/hkdf"

	"antns/internal/network"
)

const registerSalt = "antns/register/v1"

// Identity is the register a domain lives in.
type Identity struct {
	Domain      string
	RegisterKey ed25519.PrivateKey
	Address     network.RegisterAddress
}

// Deriver maps domains to register identities. It holds the shared secret
// and is safe for concurrent use.
type Deriver struct {
	secret []byte
}

// ParseSharedSecret decodes a hex shared secret and builds a Deriver from it.
func ParseSharedSecret(s string) (*Deriver, error) {
	raw, err := hex.DecodeString(strings.TrimSpace(s))
	if err != nil {
		return nil, fmt.Errorf("%w: shared secret is not hex: %w", ErrInvalidConfiguration, err)
	}
	return NewDeriver(raw)
}

// NewDeriver validates secret and returns a Deriver. A malformed secret is a
// startup failure, so Derive itself never fails.
func NewDeriver(secret []byte) (*Deriver, error) {
	if len(secret) != 32 {
		return nil, fmt.Errorf("%w: shared secret must be 32 bytes, got %d", ErrInvalidConfiguration, len(secret))
	}
	if bytes.Equal(secret, make([]byte, 32)) {
		return nil, fmt.Errorf("%w: shared secret is all zeroes", ErrInvalidConfiguration)
	}
	return &Deriver{secret: bytes.Clone(secret)}, nil
}

// Derive returns the register identity for domain. The result depends only
// on the shared secret and the exact domain string.
func (d *Deriver) Derive(domain string) Identity {
	seed := make([]byte, ed25519.SeedSize)
	r := hkdf.New(sha256.New, d.secret, []byte(registerSalt), []byte(domain))
	if _, err := io.ReadFull(r, seed); err != nil {
		// hkdf only fails after 255*32 bytes of output
		panic(fmt.Sprintf("hkdf: %v", err))
	}
	key := ed25519.NewKeyFromSeed(seed)
	return Identity{
		Domain:      domain,
		RegisterKey: key,
		Address:     network.RegisterAddressOf(key.Public().(ed25519.PublicKey)),
	}
}

// NormalizeDomain lower-cases a domain and drops a trailing root dot.
func NormalizeDomain(domain string) string {
	return strings.TrimSuffix(strings.ToLower(strings.TrimSpace(domain)), ".")
}
