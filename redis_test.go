package reroute_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bjaus/reroute"
)

func newTestRedis(t *testing.T) (*miniredis.Miniredis, redis.UniversalClient) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		_ = client.Close()
	})
	return mr, client
}

func TestRedisCache(t *testing.T) {
	t.Parallel()

	mr, client := newTestRedis(t)
	cache := reroute.NewRedisCache(client, "test:")
	ctx := context.Background()

	t.Run("miss then hit", func(t *testing.T) {
		_, hit, err := cache.Get(ctx, "k")
		require.NoError(t, err)
		assert.False(t, hit)

		require.NoError(t, cache.Set(ctx, "k", []byte("v"), time.Minute))

		val, hit, err := cache.Get(ctx, "k")
		require.NoError(t, err)
		require.True(t, hit)
		assert.Equal(t, []byte("v"), val)
	})

	t.Run("keys carry the prefix", func(t *testing.T) {
		require.NoError(t, cache.Set(ctx, "prefixed", []byte("v"), time.Minute))
		assert.True(t, mr.Exists("test:prefixed"))
	})

	t.Run("entries expire", func(t *testing.T) {
		require.NoError(t, cache.Set(ctx, "ttl", []byte("v"), time.Minute))
		mr.FastForward(2 * time.Minute)

		_, hit, err := cache.Get(ctx, "ttl")
		require.NoError(t, err)
		assert.False(t, hit)
	})

	t.Run("delete", func(t *testing.T) {
		require.NoError(t, cache.Set(ctx, "gone", []byte("v"), time.Minute))
		require.NoError(t, cache.Delete(ctx, "gone"))

		_, hit, err := cache.Get(ctx, "gone")
		require.NoError(t, err)
		assert.False(t, hit)
	})
}

func TestRedisRateLimitStore(t *testing.T) {
	t.Parallel()

	mr, client := newTestRedis(t)
	store := reroute.NewRedisRateLimitStore(client, "rate:")
	ctx := context.Background()

	t.Run("counts within a window", func(t *testing.T) {
		now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
		for i := 1; i <= 3; i++ {
			count, err := store.Incr(ctx, "alice", time.Minute, now)
			require.NoError(t, err)
			assert.Equal(t, i, count)
		}
	})

	t.Run("window boundary starts a fresh count", func(t *testing.T) {
		now := time.Date(2026, 1, 1, 13, 0, 30, 0, time.UTC)
		_, err := store.Incr(ctx, "bob", time.Minute, now)
		require.NoError(t, err)

		count, err := store.Incr(ctx, "bob", time.Minute, now.Add(time.Minute))
		require.NoError(t, err)
		assert.Equal(t, 1, count)
	})

	t.Run("window keys age out", func(t *testing.T) {
		now := time.Date(2026, 1, 1, 14, 0, 0, 0, time.UTC)
		_, err := store.Incr(ctx, "carol", time.Minute, now)
		require.NoError(t, err)

		mr.FastForward(2 * time.Minute)
		keys := mr.Keys()
		for _, k := range keys {
			assert.NotContains(t, k, "carol")
		}
	})
}
