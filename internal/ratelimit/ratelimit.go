package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/time/rate"
)

// Limiter blocks until the caller may perform one more send.
type Limiter interface {
	Wait(ctx context.Context) error
}

// TokenBucket is a process-local limiter. The bucket starts full, so the first
// burst of sends goes out without waiting.
type TokenBucket struct {
	l *rate.Limiter
}

// NewTokenBucket allows perSecond sends per second with the given burst.
// perSecond <= 0 disables limiting.
func NewTokenBucket(perSecond float64, burst int) *TokenBucket {
	if burst < 1 {
		burst = 1
	}
	limit := rate.Limit(perSecond)
	if perSecond <= 0 {
		limit = rate.Inf
	}
	return &TokenBucket{l: rate.NewLimiter(limit, burst)}
}

func (b *TokenBucket) Wait(ctx context.Context) error {
	return b.l.Wait(ctx)
}

// Lua script for atomic per-second counter check and increment
const windowLuaScript = `
local key = KEYS[1]
local limit = tonumber(ARGV[1])
local ttl = tonumber(ARGV[2])

local current = tonumber(redis.call("GET", key) or "0")
if current + 1 > limit then
    return 0
end

local newVal = redis.call("INCR", key)
if newVal == 1 then
    redis.call("EXPIRE", key, ttl)
end
return 1
`

// RedisLimiter caps sends per second across every process sharing the Redis
// instance.
type RedisLimiter struct {
	client    *redis.Client
	prefix    string
	perSecond int
	script    *redis.Script
	now       func() time.Time
	poll      time.Duration
}

func NewRedisLimiter(client *redis.Client, prefix string, perSecond int) *RedisLimiter {
	if perSecond < 1 {
		perSecond = 1
	}
	return &RedisLimiter{
		client:    client,
		prefix:    prefix,
		perSecond: perSecond,
		script:    redis.NewScript(windowLuaScript),
		now:       time.Now,
		poll:      50 * time.Millisecond,
	}
}

// Allow takes one slot in the current one-second window if any are left.
func (r *RedisLimiter) Allow(ctx context.Context) (bool, error) {
	key := fmt.Sprintf("ratelimit:%s:%d", r.prefix, r.now().Unix())
	res, err := r.script.Run(ctx, r.client, []string{key}, r.perSecond, 2).Int()
	if err != nil {
		return false, fmt.Errorf("rate limit check: %w", err)
	}
	return res == 1, nil
}

func (r *RedisLimiter) Wait(ctx context.Context) error {
	for {
		ok, err := r.Allow(ctx)
		if err != nil {
			return err
		}
		if ok {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(r.poll):
		}
	}
}

var (
	_ Limiter = (*TokenBucket)(nil)
	_ Limiter = (*RedisLimiter)(nil)
)
