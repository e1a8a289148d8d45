package middleware

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Fixed window counter. The first hit of a window sets its expiry.
var windowScript = redis.NewScript(`
	local n = redis.call('INCR', KEYS[1])
	if n == 1 then
		redis.call('PEXPIRE', KEYS[1], ARGV[1])
	end
	return n
`)

// RedisLimiter limits attempts per key across every API instance sharing
// the Redis server.
type RedisLimiter struct {
	rdb     redis.Scripter
	prefix  string
	window  time.Duration
	maxReqs int
}

// NewRedisLimiter allows maxReqs per window for each key.
func NewRedisLimiter(rdb redis.Scripter, prefix string, window time.Duration, maxReqs int) *RedisLimiter {
	return &RedisLimiter{rdb: rdb, prefix: prefix, window: window, maxReqs: maxReqs}
}

func (l *RedisLimiter) Allow(ctx context.Context, key string) (bool, error) {
	n, err := windowScript.Run(ctx, l.rdb, []string{l.prefix + ":" + key}, l.window.Milliseconds()).Int64()
	if err != nil {
		return false, fmt.Errorf("redis limiter: %w", err)
	}
	return n <= int64(l.maxReqs), nil
}

// NewRedisClient connects to addr and pings it.
func NewRedisClient(ctx context.Context, addr, password string) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{Addr: addr, Password: password})
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return rdb, nil
}
