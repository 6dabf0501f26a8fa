package network

import (
	"context"
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"
)

// DefaultChunkCacheSize is used when Cached is built with a non-positive size.
const DefaultChunkCacheSize = 4096

// Cached keeps recently read chunks in an LRU. Chunks are immutable and
// content-addressed, so a cached value can never go stale. Register reads are
// never cached.
type Cached struct {
	Client
	chunks *lru.Cache[ChunkAddress, []byte]
}

// NewCached wraps next with an LRU of at most size chunks.
func NewCached(next Client, size int) (*Cached, error) {
	if size <= 0 {
		size = DefaultChunkCacheSize
	}
	chunks, err := lru.New[ChunkAddress, []byte](size)
	if err != nil {
		return nil, fmt.Errorf("create chunk cache: %w", err)
	}
	return &Cached{Client: next, chunks: chunks}, nil
}

func (c *Cached) PutChunk(ctx context.Context, data []byte) (ChunkAddress, error) {
	addr, err := c.Client.PutChunk(ctx, data)
	if err != nil {
		return addr, err
	}
	c.chunks.Add(addr, append([]byte(nil), data...))
	return addr, nil
}

func (c *Cached) GetChunk(ctx context.Context, addr ChunkAddress) ([]byte, error) {
	if data, ok := c.chunks.Get(addr); ok {
		return append([]byte(nil), data...), nil
	}
	data, err := c.Client.GetChunk(ctx, addr)
	if err != nil {
		return nil, err
	}
	c.chunks.Add(addr, append([]byte(nil), data...))
	return data, nil
}

// Len reports the number of cached chunks.
func (c *Cached) Len() int {
	return c.chunks.Len()
}
