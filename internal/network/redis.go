package network

import (
	"context"
	"crypto/ed25519"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"antns/pkg/platform/sentinel"
)

const (
	chunkKeyPrefix    = "antns:chunk:"
	registerKeyPrefix = "antns:register:"
)

// Redis stores chunks as plain string values and registers as lists of
// hex-encoded chunk addresses. RPUSH gives atomic appends per register.
type Redis struct {
	client *redis.Client
}

// NewRedis wraps a connected client. The client lifecycle is managed by the
// caller.
func NewRedis(client *redis.Client) *Redis {
	return &Redis{client: client}
}

func chunkKey(addr ChunkAddress) string {
	return chunkKeyPrefix + addr.String()
}

func registerKey(addr RegisterAddress) string {
	return registerKeyPrefix + addr.String()
}

func (n *Redis) PutChunk(ctx context.Context, data []byte) (ChunkAddress, error) {
	addr := AddressOf(data)
	// Content addressing makes an existing value identical, so SETNX is enough.
	if err := n.client.SetNX(ctx, chunkKey(addr), data, 0).Err(); err != nil {
		return ChunkAddress{}, classify("put chunk", err)
	}
	return addr, nil
}

func (n *Redis) GetChunk(ctx context.Context, addr ChunkAddress) ([]byte, error) {
	data, err := n.client.Get(ctx, chunkKey(addr)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, classify("get chunk "+addr.String(), sentinel.ErrNotFound)
	}
	if err != nil {
		return nil, classify("get chunk "+addr.String(), err)
	}
	return data, nil
}

func (n *Redis) CreateRegister(ctx context.Context, key ed25519.PrivateKey, first ChunkAddress) (RegisterAddress, error) {
	if len(key) != ed25519.PrivateKeySize {
		return "", classify("create register", sentinel.ErrForbidden)
	}
	addr := RegisterAddressOf(key.Public().(ed25519.PublicKey))
	rkey := registerKey(addr)

	err := n.client.Watch(ctx, func(tx *redis.Tx) error {
		exists, err := tx.Exists(ctx, rkey).Result()
		if err != nil {
			return err
		}
		if exists > 0 {
			return sentinel.ErrConflict
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.RPush(ctx, rkey, first.String())
			return nil
		})
		return err
	}, rkey)
	if errors.Is(err, redis.TxFailedErr) {
		// Someone else created it between WATCH and EXEC.
		err = sentinel.ErrConflict
	}
	if err != nil {
		return "", classify("create register "+addr.String(), err)
	}
	return addr, nil
}

func (n *Redis) AppendRegister(ctx context.Context, key ed25519.PrivateKey, value ChunkAddress) error {
	if len(key) != ed25519.PrivateKeySize {
		return classify("append register", sentinel.ErrForbidden)
	}
	addr := RegisterAddressOf(key.Public().(ed25519.PublicKey))
	length, err := n.client.RPushX(ctx, registerKey(addr), value.String()).Result()
	if err != nil {
		return classify("append register "+addr.String(), err)
	}
	if length == 0 {
		return classify("append register "+addr.String(), sentinel.ErrNotFound)
	}
	return nil
}

func (n *Redis) RegisterHistory(addr RegisterAddress) HistoryIterator {
	return &redisIterator{client: n.client, key: registerKey(addr)}
}

func (n *Redis) RegisterHead(ctx context.Context, addr RegisterAddress) (ChunkAddress, error) {
	raw, err := n.client.LIndex(ctx, registerKey(addr), -1).Result()
	if errors.Is(err, redis.Nil) {
		return ChunkAddress{}, classify("register head "+addr.String(), sentinel.ErrNotFound)
	}
	if err != nil {
		return ChunkAddress{}, classify("register head "+addr.String(), err)
	}
	return parseEntry(raw)
}

// redisIterator fetches one list element per call with LINDEX so a replay
// never loads a flooded register into memory at once.
type redisIterator struct {
	client *redis.Client
	key    string
	pos    int64
}

func (it *redisIterator) Next(ctx context.Context) (ChunkAddress, bool, error) {
	raw, err := it.client.LIndex(ctx, it.key, it.pos).Result()
	if errors.Is(err, redis.Nil) {
		return ChunkAddress{}, false, nil
	}
	if err != nil {
		return ChunkAddress{}, false, classify("register history", err)
	}
	it.pos++
	addr, err := ParseChunkAddress(raw)
	if err != nil {
		return ChunkAddress{}, true, fmt.Errorf("register entry %d: %w: %w", it.pos-1, ErrMalformedEntry, err)
	}
	return addr, true, nil
}

func parseEntry(raw string) (ChunkAddress, error) {
	addr, err := ParseChunkAddress(raw)
	if err != nil {
		return ChunkAddress{}, fmt.Errorf("register entry %q: %w", raw, sentinel.ErrInvalidState)
	}
	return addr, nil
}
