package session

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore implements Store on a Redis client.
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore constructs a RedisStore.
func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

// Set writes a string value. A zero ttl stores the key without expiry.
func (s *RedisStore) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	return s.client.Set(ctx, key, value, ttl).Err()
}

// Get reads a string value; the second return reports presence.
func (s *RedisStore) Get(ctx context.Context, key string) (string, bool, error) {
	value, err := s.client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return value, true, nil
}

// Del removes a key and reports whether one was removed.
func (s *RedisStore) Del(ctx context.Context, key string) (bool, error) {
	removed, err := s.client.Del(ctx, key).Result()
	return removed > 0, err
}

// ListPush prepends a value to the list at key.
func (s *RedisStore) ListPush(ctx context.Context, key, value string) error {
	return s.client.LPush(ctx, key, value).Err()
}

// Expire sets the key TTL.
func (s *RedisStore) Expire(ctx context.Context, key string, ttl time.Duration) error {
	return s.client.Expire(ctx, key, ttl).Err()
}

var _ Store = (*RedisStore)(nil)
