package vault

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"antns/pkg/platform/sentinel"
)

const redisKeyPrefix = "antns:vault:"

// RedisStore keeps backups in Redis without expiry.
type RedisStore struct {
	client *redis.Client
}

func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func (s *RedisStore) Put(ctx context.Context, key string, data []byte) error {
	if err := s.client.Set(ctx, redisKeyPrefix+key, data, 0).Err(); err != nil {
		return fmt.Errorf("set vault blob: %w: %w", sentinel.ErrUnavailable, err)
	}
	return nil
}

func (s *RedisStore) Get(ctx context.Context, key string) ([]byte, error) {
	data, err := s.client.Get(ctx, redisKeyPrefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get vault blob: %w: %w", sentinel.ErrUnavailable, err)
	}
	return data, nil
}
