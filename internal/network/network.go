// Package network is the façade over the content-addressed storage network:
// immutable chunks addressed by their digest, and append-only registers whose
// entries are chunk addresses.
//
// Every backend classifies failures with the sentinel errors in
// pkg/platform/sentinel so callers never match on message text:
//
//	sentinel.ErrNotFound    chunk or register does not exist
//	sentinel.ErrConflict    register already created
//	sentinel.ErrForbidden   append attempted without the register key
//	sentinel.ErrUnavailable backend unreachable
//	sentinel.ErrTimeout     deadline exceeded while talking to the backend
package network

import (
	"context"
	"crypto/ed25519"
	"errors"
	"fmt"
	"net"

	"antns/pkg/platform/sentinel"
)

// ErrMalformedEntry marks a register value that is not a chunk address. The
// iterator has already moved past it, so callers may keep reading.
var ErrMalformedEntry = errors.New("malformed register entry")

// HistoryIterator pulls register entries oldest first. It is finite and
// single-pass; ask the Client for a new one to restart.
type HistoryIterator interface {
	// Next returns the next entry. ok is false once the history is exhausted.
	// A value that cannot be decoded is reported with ok true and an error
	// wrapping ErrMalformedEntry.
	Next(ctx context.Context) (addr ChunkAddress, ok bool, err error)
}

// Client is the full set of network primitives the naming protocol uses.
type Client interface {
	PutChunk(ctx context.Context, data []byte) (ChunkAddress, error)
	GetChunk(ctx context.Context, addr ChunkAddress) ([]byte, error)

	// CreateRegister creates the register owned by key with first as its
	// first entry. Fails with sentinel.ErrConflict if it already exists.
	CreateRegister(ctx context.Context, key ed25519.PrivateKey, first ChunkAddress) (RegisterAddress, error)
	// AppendRegister appends value to the register owned by key.
	AppendRegister(ctx context.Context, key ed25519.PrivateKey, value ChunkAddress) error
	// RegisterHistory returns an iterator over the register's entries. An
	// unknown register yields an empty history.
	RegisterHistory(addr RegisterAddress) HistoryIterator
	// RegisterHead returns the most recently appended entry.
	RegisterHead(ctx context.Context, addr RegisterAddress) (ChunkAddress, error)
}

// classify maps transport-level failures onto sentinel errors, keeping the
// original error in the chain.
func classify(op string, err error) error {
	if err == nil {
		return nil
	}
	switch {
	case errors.Is(err, sentinel.ErrNotFound),
		errors.Is(err, sentinel.ErrConflict),
		errors.Is(err, sentinel.ErrForbidden),
		errors.Is(err, sentinel.ErrInvalidState),
		errors.Is(err, sentinel.ErrUnavailable),
		errors.Is(err, sentinel.ErrTimeout),
		errors.Is(err, context.Canceled):
		return fmt.Errorf("%s: %w", op, err)
	case errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("%s: %w: %w", op, sentinel.ErrTimeout, err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return fmt.Errorf("%s: %w: %w", op, sentinel.ErrTimeout, err)
	}
	return fmt.Errorf("%s: %w: %w", op, sentinel.ErrUnavailable, err)
}
