package cache

import (
	"context"
	"errors"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/rotisserie/eris"
)

// RedisStore is a shared cache backend for multi-instance deployments.
// Expiry is delegated to Redis TTLs, so SweepExpired is a no-op.
type RedisStore struct {
	client    *redis.Client
	keyPrefix string
}

// NewRedis creates a Redis-backed cache.
func NewRedis(client *redis.Client, keyPrefix string) *RedisStore {
	return &RedisStore{client: client, keyPrefix: keyPrefix}
}

func (r *RedisStore) redisKey(key string, kind Kind) string {
	return r.keyPrefix + string(kind) + ":" + key
}

func (r *RedisStore) Get(ctx context.Context, key string, kind Kind) (Outcome, error) {
	val, err := r.client.Get(ctx, r.redisKey(key, kind)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return Miss, nil
		}
		return Miss, eris.Wrap(err, "cache: redis get")
	}
	return HitOutcome(val), nil
}

func (r *RedisStore) Set(ctx context.Context, key string, kind Kind, payload []byte, ttl time.Duration) error {
	err := r.client.Set(ctx, r.redisKey(key, kind), payload, ttl).Err()
	return eris.Wrap(err, "cache: redis set")
}

// SweepExpired is a no-op: Redis evicts expired keys itself.
func (r *RedisStore) SweepExpired(_ context.Context) (int, error) {
	return 0, nil
}

func (r *RedisStore) Close() error {
	return r.client.Close()
}
