package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maplenou/maplenou-api/pkg/logger"
)

func setupTestCache(t *testing.T) (*Cache, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	return NewFromClient(client, logger.Nop()), mr
}

func TestCache_GetSetDel(t *testing.T) {
	c, mr := setupTestCache(t)
	ctx := context.Background()

	val, err := c.Get(ctx, "missing")
	require.NoError(t, err)
	assert.Empty(t, val)

	require.NoError(t, c.Set(ctx, "product", "croissant", time.Minute))
	assert.True(t, mr.Exists(KeyPrefix+"product"))

	val, err = c.Get(ctx, "product")
	require.NoError(t, err)
	assert.Equal(t, "croissant", val)

	require.NoError(t, c.Del(ctx, "product"))
	assert.False(t, mr.Exists(KeyPrefix+"product"))
}

func TestCache_IncrWindow(t *testing.T) {
	c, mr := setupTestCache(t)
	ctx := context.Background()

	for want := int64(1); want <= 3; want++ {
		count, left, err := c.IncrWindow(ctx, "rl:user:1", time.Minute)
		require.NoError(t, err)
		assert.Equal(t, want, count)
		assert.LessOrEqual(t, left, time.Minute)
	}

	mr.FastForward(61 * time.Second)

	count, _, err := c.IncrWindow(ctx, "rl:user:1", time.Minute)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count, "window expired")
}

func TestCache_AcquireLock(t *testing.T) {
	c, mr := setupTestCache(t)
	ctx := context.Background()

	ok, err := c.AcquireLock(ctx, "daily-reset:2025-03-10", time.Hour)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = c.AcquireLock(ctx, "daily-reset:2025-03-10", time.Hour)
	require.NoError(t, err)
	assert.False(t, ok)

	mr.FastForward(2 * time.Hour)

	ok, err = c.AcquireLock(ctx, "daily-reset:2025-03-10", time.Hour)
	require.NoError(t, err)
	assert.True(t, ok)

	require.NoError(t, c.ReleaseLock(ctx, "daily-reset:2025-03-10"))
	assert.NoError(t, c.Health(ctx))
}
