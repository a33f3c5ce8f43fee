package kv

import (
	"context"
	"errors"

	"github.com/redis/go-redis/v9"
)

// RedisStore keeps each blob under a plain string key. Blobs live until an
// explicit Delete; wizard state has no natural expiry.
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore wraps an already-configured client, shared with other Redis
// users in the process.
func NewRedisStore(c *redis.Client) *RedisStore {
	return &RedisStore{client: c}
}

func (r *RedisStore) Get(ctx context.Context, key string) ([]byte, error) {
	b, err := r.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return b, nil
}

func (r *RedisStore) Set(ctx context.Context, key string, value []byte) error {
	return r.client.Set(ctx, key, value, 0).Err()
}

func (r *RedisStore) Delete(ctx context.Context, key string) error {
	return r.client.Del(ctx, key).Err()
}
