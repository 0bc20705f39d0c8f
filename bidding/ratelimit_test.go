package bidding

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupRedisLimiter(t *testing.T, limit int, window time.Duration) (*RedisRateLimiter, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisRateLimiter(client, "test:", limit, window), mr
}

func TestRedisRateLimiter_Allow(t *testing.T) {
	t.Run("allows up to the limit then denies with retry hint", func(t *testing.T) {
		limiter, _ := setupRedisLimiter(t, 3, time.Minute)

		for i := 0; i < 3; i++ {
			allowed, _, err := limiter.Allow(context.Background(), "auction-1", "bidder-1")
			require.NoError(t, err)
			assert.True(t, allowed, "call %d should be allowed", i+1)
		}

		allowed, retryAfter, err := limiter.Allow(context.Background(), "auction-1", "bidder-1")
		require.NoError(t, err)
		assert.False(t, allowed)
		assert.Greater(t, retryAfter, time.Duration(0))
		assert.LessOrEqual(t, retryAfter, time.Minute)
	})

	t.Run("window expiry resets the counter", func(t *testing.T) {
		limiter, mr := setupRedisLimiter(t, 1, time.Minute)

		allowed, _, err := limiter.Allow(context.Background(), "auction-1", "bidder-1")
		require.NoError(t, err)
		assert.True(t, allowed)
		allowed, _, err = limiter.Allow(context.Background(), "auction-1", "bidder-1")
		require.NoError(t, err)
		assert.False(t, allowed)

		// 視窗過期後重新計數
		mr.FastForward(time.Minute + time.Second)
		allowed, _, err = limiter.Allow(context.Background(), "auction-1", "bidder-1")
		require.NoError(t, err)
		assert.True(t, allowed)
	})

	t.Run("counters are scoped per auction and bidder", func(t *testing.T) {
		limiter, _ := setupRedisLimiter(t, 1, time.Minute)

		allowed, _, err := limiter.Allow(context.Background(), "auction-1", "bidder-1")
		require.NoError(t, err)
		assert.True(t, allowed)

		// 同一使用者對別的拍賣、同一拍賣的別的使用者都不受影響
		allowed, _, err = limiter.Allow(context.Background(), "auction-2", "bidder-1")
		require.NoError(t, err)
		assert.True(t, allowed)
		allowed, _, err = limiter.Allow(context.Background(), "auction-1", "bidder-2")
		require.NoError(t, err)
		assert.True(t, allowed)
	})
}

func TestMemoryRateLimiter_Allow(t *testing.T) {
	now := time.Now()
	limiter := NewMemoryRateLimiter(2, time.Minute)
	limiter.now = func() time.Time { return now }

	allowed, _, err := limiter.Allow(context.Background(), "auction-1", "bidder-1")
	require.NoError(t, err)
	assert.True(t, allowed)
	allowed, _, err = limiter.Allow(context.Background(), "auction-1", "bidder-1")
	require.NoError(t, err)
	assert.True(t, allowed)

	allowed, retryAfter, err := limiter.Allow(context.Background(), "auction-1", "bidder-1")
	require.NoError(t, err)
	assert.False(t, allowed)
	assert.Equal(t, time.Minute, retryAfter)

	// 視窗過期後重新計數
	now = now.Add(time.Minute + time.Second)
	allowed, _, err = limiter.Allow(context.Background(), "auction-1", "bidder-1")
	require.NoError(t, err)
	assert.True(t, allowed)
}
