package service

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

type RedisLoginLimiter struct {
	client redis.UniversalClient
	prefix string
	limit  int
	window time.Duration
}

func NewRedisLoginLimiter(client redis.UniversalClient, prefix string, limit int, window time.Duration) *RedisLoginLimiter {
	if prefix == "" {
		prefix = "login_limiter"
	}
	if limit <= 0 {
		limit = 1
	}
	if window <= 0 {
		window = time.Minute
	}
	return &RedisLoginLimiter{client: client, prefix: prefix, limit: limit, window: window}
}

// Allow counts the attempt in the current fixed window. The window key gets
// its TTL on first increment, so the pipeline stays a single round trip.
func (l *RedisLoginLimiter) Allow(ctx context.Context, key string) (bool, time.Duration, error) {
	dataKey := l.dataKey(key)
	pipe := l.client.TxPipeline()
	count := pipe.Incr(ctx, dataKey)
	pipe.ExpireNX(ctx, dataKey, l.window)
	ttl := pipe.TTL(ctx, dataKey)
	if _, err := pipe.Exec(ctx); err != nil {
		return false, 0, fmt.Errorf("login limiter: %w", err)
	}
	if count.Val() <= int64(l.limit) {
		return true, 0, nil
	}
	retryAfter := ttl.Val()
	if retryAfter < 0 {
		retryAfter = l.window
	}
	return false, retryAfter, nil
}

func (l *RedisLoginLimiter) dataKey(key string) string {
	return fmt.Sprintf("%s:%s", l.prefix, key)
}
