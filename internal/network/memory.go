package network

import (
	"context"
	"crypto/ed25519"
	"sync"

	"antns/pkg/platform/sentinel"
)

// InMemory is a process-local network used by tests and the "memory" backend.
// It keeps the same guarantees as the real backends: chunks are immutable and
// appends are atomic per register.
type InMemory struct {
	mu        sync.RWMutex
	chunks    map[ChunkAddress][]byte
	registers map[RegisterAddress][]ChunkAddress
}

// NewInMemory creates an empty in-memory network.
func NewInMemory() *InMemory {
	return &InMemory{
		chunks:    make(map[ChunkAddress][]byte),
		registers: make(map[RegisterAddress][]ChunkAddress),
	}
}

func (n *InMemory) PutChunk(_ context.Context, data []byte) (ChunkAddress, error) {
	addr := AddressOf(data)
	n.mu.Lock()
	defer n.mu.Unlock()
	if _, ok := n.chunks[addr]; !ok {
		n.chunks[addr] = append([]byte(nil), data...)
	}
	return addr, nil
}

func (n *InMemory) GetChunk(_ context.Context, addr ChunkAddress) ([]byte, error) {
	n.mu.RLock()
	defer n.mu.RUnlock()
	data, ok := n.chunks[addr]
	if !ok {
		return nil, classify("get chunk "+addr.String(), sentinel.ErrNotFound)
	}
	return append([]byte(nil), data...), nil
}

// PutRaw stores data under an arbitrary address, bypassing content
// addressing. Tests use it to plant chunks whose bytes do not match their
// address.
func (n *InMemory) PutRaw(addr ChunkAddress, data []byte) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.chunks[addr] = append([]byte(nil), data...)
}

// DropChunk removes a chunk, simulating data that can no longer be fetched.
func (n *InMemory) DropChunk(addr ChunkAddress) {
	n.mu.Lock()
	defer n.mu.Unlock()
	delete(n.chunks, addr)
}

func (n *InMemory) CreateRegister(_ context.Context, key ed25519.PrivateKey, first ChunkAddress) (RegisterAddress, error) {
	if len(key) != ed25519.PrivateKeySize {
		return "", classify("create register", sentinel.ErrForbidden)
	}
	addr := RegisterAddressOf(key.Public().(ed25519.PublicKey))
	n.mu.Lock()
	defer n.mu.Unlock()
	if _, ok := n.registers[addr]; ok {
		return "", classify("create register "+addr.String(), sentinel.ErrConflict)
	}
	n.registers[addr] = []ChunkAddress{first}
	return addr, nil
}

func (n *InMemory) AppendRegister(_ context.Context, key ed25519.PrivateKey, value ChunkAddress) error {
	if len(key) != ed25519.PrivateKeySize {
		return classify("append register", sentinel.ErrForbidden)
	}
	addr := RegisterAddressOf(key.Public().(ed25519.PublicKey))
	n.mu.Lock()
	defer n.mu.Unlock()
	entries, ok := n.registers[addr]
	if !ok {
		return classify("append register "+addr.String(), sentinel.ErrNotFound)
	}
	n.registers[addr] = append(entries, value)
	return nil
}

func (n *InMemory) RegisterHistory(addr RegisterAddress) HistoryIterator {
	return &memoryIterator{net: n, addr: addr}
}

func (n *InMemory) RegisterHead(_ context.Context, addr RegisterAddress) (ChunkAddress, error) {
	n.mu.RLock()
	defer n.mu.RUnlock()
	entries := n.registers[addr]
	if len(entries) == 0 {
		return ChunkAddress{}, classify("register head "+addr.String(), sentinel.ErrNotFound)
	}
	return entries[len(entries)-1], nil
}

// memoryIterator reads by position so entries appended during a scan are
// picked up, matching the lazy behaviour of the remote backends.
type memoryIterator struct {
	net  *InMemory
	addr RegisterAddress
	pos  int
}

func (it *memoryIterator) Next(ctx context.Context) (ChunkAddress, bool, error) {
	if err := ctx.Err(); err != nil {
		return ChunkAddress{}, false, classify("register history", err)
	}
	it.net.mu.RLock()
	defer it.net.mu.RUnlock()
	entries := it.net.registers[it.addr]
	if it.pos >= len(entries) {
		return ChunkAddress{}, false, nil
	}
	addr := entries[it.pos]
	it.pos++
	return addr, true, nil
}
