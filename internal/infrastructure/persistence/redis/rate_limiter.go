package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel/attribute"
)

// slidingWindow 在一个脚本内完成清理、计数与记录，多个 API 实例并发时不会超发
var slidingWindow = redis.NewScript(`
local key = KEYS[1]
local now = tonumber(ARGV[1])
local window = tonumber(ARGV[2])
local limit = tonumber(ARGV[3])
redis.call('ZREMRANGEBYSCORE', key, 0, now - window)
if redis.call('ZCARD', key) >= limit then
  return 0
end
redis.call('ZADD', key, now, ARGV[4])
redis.call('PEXPIRE', key, ARGV[5])
return 1
`)

// RateLimiter 共享的滑动窗口限流器，计数保存在有序集合中
type RateLimiter struct {
	client *Client
}

func NewRateLimiter(client *Client) *RateLimiter {
	return &RateLimiter{client: client}
}

// Allow 窗口内请求数未达 limit 时放行并记录本次请求
func (l *RateLimiter) Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	ctx, span := tracer.Start(ctx, "redis.RateLimiter.Allow")
	defer span.End()
	span.SetAttributes(attribute.String("ratelimit.key", key), attribute.Int("ratelimit.limit", limit))

	if limit <= 0 || window <= 0 {
		return true, nil
	}

	now := time.Now()
	ttl := 2 * window.Milliseconds()
	if ttl < 1 {
		ttl = 1
	}
	allowed, err := slidingWindow.Run(ctx, l.client.rdb, []string{l.client.key(key)},
		now.UnixMicro(), window.Microseconds(), limit, fmt.Sprintf("%d", now.UnixNano()), ttl,
	).Int()
	if err != nil {
		span.RecordError(err)
		return false, fmt.Errorf("rate limit script failed: %w", err)
	}

	span.SetAttributes(attribute.Bool("ratelimit.allowed", allowed == 1))
	return allowed == 1, nil
}
