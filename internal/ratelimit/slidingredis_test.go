package ratelimit

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func TestLimiterAllowSlidingWindow(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	limiter := Limiter{Client: client, Prefix: "test:"}

	ctx := context.Background()
	window := 2 * time.Second
	limit := 2

	for i := 0; i < limit; i++ {
		allowed, remaining, _, err := limiter.Allow(ctx, "key", window, limit)
		require.NoError(t, err)
		require.True(t, allowed, "request %d", i)
		require.Equal(t, limit-(i+1), remaining)
	}

	allowed, remaining, _, err := limiter.Allow(ctx, "key", window, limit)
	require.NoError(t, err)
	require.False(t, allowed)
	require.Zero(t, remaining)
}

func TestLimiterDisabledWithoutClient(t *testing.T) {
	allowed, remaining, _, err := Limiter{}.Allow(context.Background(), "key", time.Second, 3)
	require.NoError(t, err)
	require.True(t, allowed)
	require.Equal(t, 3, remaining)
}
