package middleware

import (
	"context"
	"math"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	gocache "github.com/patrickmn/go-cache"
	"golang.org/x/time/rate"

	"dreamteller-api/internal/config"
	apperrors "dreamteller-api/pkg/errors"
	"dreamteller-api/pkg/logger"
)

// RateLimiter 分布式限流器
type RateLimiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}

// KeyFunc 生成限流键
type KeyFunc func(clientID string) string

// localLimiterTTL 单进程限流器的空闲回收时间
const localLimiterTTL = 10 * time.Minute

// RateLimit 按客户端 IP 限流。limiter 非空时使用共享窗口计数，
// 否则退化为进程内令牌桶。共享限流器故障时放行请求。
func RateLimit(cfg config.RateLimitConfig, limiter RateLimiter, key KeyFunc) gin.HandlerFunc {
	if !cfg.Enabled {
		return func(c *gin.Context) { c.Next() }
	}

	rps := cfg.RequestsPerSecond
	if rps <= 0 {
		rps = 10
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = int(math.Ceil(rps))
	}
	if key == nil {
		key = func(clientID string) string { return "ratelimit:http:" + clientID }
	}

	local := gocache.New(localLimiterTTL, localLimiterTTL)

	return func(c *gin.Context) {
		clientID := c.ClientIP()

		var allowed bool
		if limiter != nil {
			ok, err := limiter.Allow(c.Request.Context(), key(clientID), burst, time.Duration(float64(burst)/rps*float64(time.Second)))
			if err != nil {
				logger.Warn(c.Request.Context(), "rate limiter unavailable, allowing request", "error", err)
				c.Next()
				return
			}
			allowed = ok
		} else {
			allowed = localLimiter(local, clientID, rps, burst).Allow()
		}

		if !allowed {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"code":     apperrors.CodeTooManyRequests,
				"message":  "rate limit exceeded",
				"trace_id": c.GetString("trace_id"),
			})
			return
		}

		c.Next()
	}
}

func localLimiter(cache *gocache.Cache, clientID string, rps float64, burst int) *rate.Limiter {
	if v, ok := cache.Get(clientID); ok {
		cache.SetDefault(clientID, v)
		return v.(*rate.Limiter)
	}
	l := rate.NewLimiter(rate.Limit(rps), burst)
	if err := cache.Add(clientID, l, gocache.DefaultExpiration); err != nil {
		// 并发请求已抢先创建
		if v, ok := cache.Get(clientID); ok {
			return v.(*rate.Limiter)
		}
	}
	return l
}
