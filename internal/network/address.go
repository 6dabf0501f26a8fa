package network

import (
	"crypto/ed25519"
	"encoding/hex"
	"fmt"

	"lukechampine.com/blake3"
)

// ChunkAddress is the content address of an immutable chunk: the 32-byte
// BLAKE3 digest of its bytes.
type ChunkAddress [32]byte

// AddressOf computes the content address of data.
func AddressOf(data []byte) ChunkAddress {
	return ChunkAddress(blake3.Sum256(data))
}

func (a ChunkAddress) String() string {
	return hex.EncodeToString(a[:])
}

// IsZero reports whether a is the zero address.
func (a ChunkAddress) IsZero() bool {
	return a == ChunkAddress{}
}

// ParseChunkAddress decodes a 64-character hex chunk address.
func ParseChunkAddress(s string) (ChunkAddress, error) {
	var a ChunkAddress
	b, err := hex.DecodeString(s)
	if err != nil {
		return a, fmt.Errorf("parse chunk address: %w", err)
	}
	if len(b) != len(a) {
		return a, fmt.Errorf("parse chunk address: want %d bytes, got %d", len(a), len(b))
	}
	copy(a[:], b)
	return a, nil
}

// RegisterAddress identifies a register: the hex-encoded ed25519 public key
// of the register's write key.
type RegisterAddress string

// RegisterAddressOf returns the address owned by pub.
func RegisterAddressOf(pub ed25519.PublicKey) RegisterAddress {
	return RegisterAddress(hex.EncodeToString(pub))
}

func (a RegisterAddress) String() string {
	return string(a)
}
