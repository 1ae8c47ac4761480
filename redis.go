package reroute

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisCache is a CacheStore backed by Redis, for deployments where cached
// responses must be shared across processes. Keys are namespaced by prefix.
type RedisCache struct {
	client redis.UniversalClient
	prefix string
}

// NewRedisCache wraps an existing Redis client. The caller owns the client;
// Close here releases it.
func NewRedisCache(client redis.UniversalClient, prefix string) *RedisCache {
	return &RedisCache{client: client, prefix: prefix}
}

// Get implements CacheStore. A missing key is a miss, not an error.
func (c *RedisCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	val, err := c.client.Get(ctx, c.prefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("redis get: %w", err)
	}
	return val, true, nil
}

// Set implements CacheStore. Expiry is delegated to Redis TTLs.
func (c *RedisCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := c.client.Set(ctx, c.prefix+key, value, ttl).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

// Delete implements CacheStore.
func (c *RedisCache) Delete(ctx context.Context, key string) error {
	if err := c.client.Del(ctx, c.prefix+key).Err(); err != nil {
		return fmt.Errorf("redis del: %w", err)
	}
	return nil
}

// Close implements CacheStore.
func (c *RedisCache) Close() error {
	return c.client.Close()
}

// RedisRateLimitStore is a RateLimitStore backed by Redis, so a fleet of
// processes shares one fixed-window budget per caller.
type RedisRateLimitStore struct {
	client redis.UniversalClient
	prefix string
}

// NewRedisRateLimitStore wraps an existing Redis client.
func NewRedisRateLimitStore(client redis.UniversalClient, prefix string) *RedisRateLimitStore {
	return &RedisRateLimitStore{client: client, prefix: prefix}
}

// Incr implements RateLimitStore. Each window gets its own key; INCR and
// EXPIRE run in one transaction so a counter can never outlive its window
// unexpired. Stale window keys age out via the TTL.
func (s *RedisRateLimitStore) Incr(ctx context.Context, key string, window time.Duration, now time.Time) (int, error) {
	idx := now.UnixNano() / window.Nanoseconds()
	k := fmt.Sprintf("%s%s:%d", s.prefix, key, idx)

	pipe := s.client.TxPipeline()
	incr := pipe.Incr(ctx, k)
	pipe.Expire(ctx, k, window+time.Second)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, fmt.Errorf("redis incr: %w", err)
	}
	return int(incr.Val()), nil
}

// Close releases the underlying client.
func (s *RedisRateLimitStore) Close() error {
	return s.client.Close()
}
