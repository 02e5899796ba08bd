package services

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// RateLimiter counts hits per key inside a fixed window.
type RateLimiter interface {
	Allow(ctx context.Context, key string) (allowed bool, retryAfter time.Duration, err error)
}

type redisRateLimiter struct {
	client *redis.Client
	max    int64
	window time.Duration
}

func NewRedisRateLimiter(client *redis.Client, max int64, window time.Duration) RateLimiter {
	return &redisRateLimiter{client: client, max: max, window: window}
}

func (l *redisRateLimiter) Allow(ctx context.Context, key string) (bool, time.Duration, error) {
	key = "ratelimit:" + key

	pipe := l.client.TxPipeline()
	incr := pipe.Incr(ctx, key)
	pipe.ExpireNX(ctx, key, l.window)
	ttl := pipe.TTL(ctx, key)
	if _, err := pipe.Exec(ctx); err != nil {
		return true, 0, err
	}

	if incr.Val() > l.max {
		return false, ttl.Val(), nil
	}
	return true, 0, nil
}
