package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const keyPrefix = "rate_limit:"

// incrScript increments the counter and starts the window on the first hit.
// It returns the count and the remaining window in milliseconds.
var incrScript = redis.NewScript(`
local count = redis.call('INCR', KEYS[1])
if count == 1 then
	redis.call('PEXPIRE', KEYS[1], ARGV[1])
end
return {count, redis.call('PTTL', KEYS[1])}
`)

// RedisLimiter shares counters between instances through Redis.
type RedisLimiter struct {
	client redis.Scripter
	limit  int
	period time.Duration
}

var _ Limiter = (*RedisLimiter)(nil)

func NewRedisLimiter(client redis.Scripter, limit int, period time.Duration) *RedisLimiter {
	return &RedisLimiter{client: client, limit: limit, period: period}
}

// NewRedisClient connects to the server at url, e.g. redis://localhost:6379/0.
func NewRedisClient(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return client, nil
}

func (l *RedisLimiter) Allow(ctx context.Context, key string) (bool, time.Duration, error) {
	res, err := incrScript.Run(ctx, l.client, []string{keyPrefix + key}, l.period.Milliseconds()).Int64Slice()
	if err != nil {
		return false, 0, fmt.Errorf("run rate limit script: %w", err)
	}

	if len(res) != 2 {
		return false, 0, fmt.Errorf("rate limit script returned %d values", len(res))
	}

	count, ttl := res[0], time.Duration(res[1])*time.Millisecond
	if count > int64(l.limit) {
		if ttl < 0 {
			ttl = l.period
		}
		return false, ttl, nil
	}
	return true, 0, nil
}
