package lookupcache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "antns:lookup:"

// RedisStore shares entries between proxy instances. Keys carry the cache
// TTL as their Redis expiry so abandoned domains do not accumulate; the
// Cache still checks the entry timestamp itself.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisStore(client *redis.Client, ttl time.Duration) *RedisStore {
	return &RedisStore{client: client, ttl: ttl}
}

func (s *RedisStore) Get(ctx context.Context, domain string) (Entry, bool, error) {
	raw, err := s.client.Get(ctx, redisKeyPrefix+domain).Bytes()
	if errors.Is(err, redis.Nil) {
		return Entry{}, false, nil
	}
	if err != nil {
		return Entry{}, false, fmt.Errorf("get cached lookup: %w", err)
	}
	var e Entry
	if err := json.Unmarshal(raw, &e); err != nil {
		return Entry{}, false, fmt.Errorf("decode cached lookup: %w", err)
	}
	return e, true, nil
}

func (s *RedisStore) Put(ctx context.Context, domain string, entry Entry) error {
	raw, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("encode cached lookup: %w", err)
	}
	if err := s.client.Set(ctx, redisKeyPrefix+domain, raw, s.ttl).Err(); err != nil {
		return fmt.Errorf("set cached lookup: %w", err)
	}
	return nil
}
