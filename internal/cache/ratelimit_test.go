package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCache(t *testing.T) (*Cache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewFromClient(client), mr
}

func TestCheckIPRateLimit_FixedWindow(t *testing.T) {
	c, _ := newTestCache(t)
	ctx := context.Background()

	for i := 1; i <= 3; i++ {
		res, err := c.CheckIPRateLimit(ctx, "203.0.113.7", 3, time.Minute)
		require.NoError(t, err)
		assert.True(t, res.Allowed, "request %d should be allowed", i)
		assert.Equal(t, int64(3-i), res.Remaining)
	}

	res, err := c.CheckIPRateLimit(ctx, "203.0.113.7", 3, time.Minute)
	require.NoError(t, err)
	assert.False(t, res.Allowed)
	assert.Equal(t, int64(0), res.Remaining)
	assert.Greater(t, res.RetryAfter, time.Duration(0))
	assert.LessOrEqual(t, res.RetryAfter, time.Minute)
}

func TestCheckIPRateLimit_WindowResets(t *testing.T) {
	c, mr := newTestCache(t)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		_, err := c.CheckIPRateLimit(ctx, "198.51.100.1", 2, time.Minute)
		require.NoError(t, err)
	}
	res, err := c.CheckIPRateLimit(ctx, "198.51.100.1", 2, time.Minute)
	require.NoError(t, err)
	require.False(t, res.Allowed)

	mr.FastForward(time.Minute + time.Second)

	res, err = c.CheckIPRateLimit(ctx, "198.51.100.1", 2, time.Minute)
	require.NoError(t, err)
	assert.True(t, res.Allowed)
	assert.Equal(t, int64(1), res.Remaining)
}

func TestCheckIPRateLimit_PerIP(t *testing.T) {
	c, _ := newTestCache(t)
	ctx := context.Background()

	_, err := c.CheckIPRateLimit(ctx, "10.0.0.1", 1, time.Minute)
	require.NoError(t, err)
	blocked, err := c.CheckIPRateLimit(ctx, "10.0.0.1", 1, time.Minute)
	require.NoError(t, err)
	assert.False(t, blocked.Allowed)

	other, err := c.CheckIPRateLimit(ctx, "10.0.0.2", 1, time.Minute)
	require.NoError(t, err)
	assert.True(t, other.Allowed)
}

func TestCheckIPRateLimit_RedisDown(t *testing.T) {
	c, mr := newTestCache(t)
	mr.Close()

	_, err := c.CheckIPRateLimit(context.Background(), "10.0.0.1", 1, time.Minute)
	assert.Error(t, err)
}

func TestHashIP(t *testing.T) {
	t.Parallel()

	assert.Equal(t, hashIP("192.168.1.1"), hashIP("192.168.1.1"))
	assert.NotEqual(t, hashIP("192.168.1.1"), hashIP("192.168.1.2"))
	assert.Len(t, hashIP("::1"), 16)
}
