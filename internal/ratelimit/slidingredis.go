package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Limiter implements a sliding window rate limiter backed by Redis sorted sets.
type Limiter struct {
	Client *redis.Client
	Prefix string
}

// Allow registers an event for the given key and returns whether it is within the limit.
// A nil client or a non-positive limit disables limiting.
func (l Limiter) Allow(ctx context.Context, key string, window time.Duration, limit int) (allowed bool, remaining int, reset time.Time, err error) {
	now := time.Now()
	until := now.Add(window)
	if l.Client == nil || limit <= 0 || window <= 0 {
		return true, limit, until, nil
	}

	prefix := l.Prefix
	if prefix == "" {
		prefix = "rl:"
	}
	redisKey := prefix + key
	member := uuid.NewString()

	pipe := l.Client.TxPipeline()
	pipe.ZRemRangeByScore(ctx, redisKey, "-inf", fmt.Sprintf("%d", now.Add(-window).UnixNano()))
	pipe.ZAdd(ctx, redisKey, redis.Z{Score: float64(now.UnixNano()), Member: member})
	countCmd := pipe.ZCard(ctx, redisKey)
	pipe.Expire(ctx, redisKey, window)
	if _, err = pipe.Exec(ctx); err != nil {
		return false, 0, until, fmt.Errorf("ratelimit: %w", err)
	}

	current := int(countCmd.Val())
	return current <= limit, max(limit-current, 0), until, nil
}
