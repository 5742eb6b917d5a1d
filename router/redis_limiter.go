package router

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisLimiter is a distributed, fixed-window rate limiter backed by Redis,
// for deployments running more than one router process against a shared
// workload (golang.org/x/time/rate's in-process limiter only bounds a
// single process). Each window is one Redis key incremented with INCR and
// given an expiry with EXPIRE on first increment; once the window's count
// exceeds the configured limit, Wait blocks and retries on the next
// window rather than ever allowing an over-limit call through.
type RedisLimiter struct {
	client *redis.Client
	keyFn  func() string
	limit  int64
	window time.Duration
}

// NewRedisLimiter constructs a RedisLimiter sharing rate state across every
// client pointed at the same Redis instance under keyPrefix.
func NewRedisLimiter(client *redis.Client, keyPrefix string, limit int64, window time.Duration) *RedisLimiter {
	return &RedisLimiter{
		client: client,
		limit:  limit,
		window: window,
		keyFn: func() string {
			return fmt.Sprintf("%s:%d", keyPrefix, time.Now().UnixNano()/int64(window))
		},
	}
}

// Wait blocks until the current window has capacity, or ctx is done.
func (l *RedisLimiter) Wait(ctx context.Context) error {
	for {
		ok, err := l.tryAcquire(ctx)
		if err != nil {
			return fmt.Errorf("fail-closed: redis rate limiter: %w", err)
		}
		if ok {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(l.window / 10):
		}
	}
}

func (l *RedisLimiter) tryAcquire(ctx context.Context) (bool, error) {
	key := l.keyFn()
	count, err := l.client.Incr(ctx, key).Result()
	if err != nil {
		return false, err
	}
	if count == 1 {
		if err := l.client.Expire(ctx, key, l.window).Err(); err != nil {
			return false, err
		}
	}
	return count <= l.limit, nil
}

var _ Limiter = (*RedisLimiter)(nil)
