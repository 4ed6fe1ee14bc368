package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dreamteller-api/internal/config"
	"dreamteller-api/pkg/logger"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func serve(r *gin.Engine, req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestRequestID(t *testing.T) {
	r := gin.New()
	r.Use(RequestID())
	var fromCtx any
	r.GET("/", func(c *gin.Context) {
		fromCtx = c.Request.Context().Value(logger.RequestIDKey)
		c.Status(http.StatusNoContent)
	})

	w := serve(r, httptest.NewRequest(http.MethodGet, "/", nil))
	generated := w.Header().Get(RequestIDHeader)
	assert.Len(t, generated, 36)
	assert.Equal(t, generated, fromCtx)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(RequestIDHeader, "req-123")
	w = serve(r, req)
	assert.Equal(t, "req-123", w.Header().Get(RequestIDHeader))

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(RequestIDHeader, strings.Repeat("x", 200))
	w = serve(r, req)
	assert.Len(t, w.Header().Get(RequestIDHeader), 36)
}

func TestRecovery(t *testing.T) {
	r := gin.New()
	r.Use(Recovery())
	r.GET("/boom", func(*gin.Context) { panic("kaboom") })

	w := serve(r, httptest.NewRequest(http.MethodGet, "/boom", nil))
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, w.Body.String(), "internal server error")
}

func TestMetricsRecordsMatchedRoute(t *testing.T) {
	r := gin.New()
	r.Use(Metrics())
	r.GET("/v1/stories/:id", func(c *gin.Context) { c.String(http.StatusOK, "ok") })

	w := serve(r, httptest.NewRequest(http.MethodGet, "/v1/stories/abc", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	w = serve(r, httptest.NewRequest(http.MethodGet, "/nowhere", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
}

type stubLimiter struct {
	allow bool
	err   error
	keys  []string
	limit int
}

func (s *stubLimiter) Allow(_ context.Context, key string, limit int, _ time.Duration) (bool, error) {
	s.keys = append(s.keys, key)
	s.limit = limit
	return s.allow, s.err
}

func limitedEngine(cfg config.RateLimitConfig, limiter RateLimiter) *gin.Engine {
	r := gin.New()
	r.Use(RateLimit(cfg, limiter, nil))
	r.GET("/", func(c *gin.Context) { c.Status(http.StatusNoContent) })
	return r
}

func fromIP(ip string) *http.Request {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = ip + ":5555"
	return req
}

func TestRateLimit(t *testing.T) {
	t.Run("disabled", func(t *testing.T) {
		r := limitedEngine(config.RateLimitConfig{}, &stubLimiter{})
		for i := 0; i < 5; i++ {
			assert.Equal(t, http.StatusNoContent, serve(r, fromIP("10.0.0.1")).Code)
		}
	})

	t.Run("local token bucket per client", func(t *testing.T) {
		r := limitedEngine(config.RateLimitConfig{Enabled: true, RequestsPerSecond: 0.001, Burst: 2}, nil)
		assert.Equal(t, http.StatusNoContent, serve(r, fromIP("10.0.0.1")).Code)
		assert.Equal(t, http.StatusNoContent, serve(r, fromIP("10.0.0.1")).Code)
		assert.Equal(t, http.StatusTooManyRequests, serve(r, fromIP("10.0.0.1")).Code)
		assert.Equal(t, http.StatusNoContent, serve(r, fromIP("10.0.0.2")).Code)
	})

	t.Run("shared limiter", func(t *testing.T) {
		limiter := &stubLimiter{allow: true}
		r := limitedEngine(config.RateLimitConfig{Enabled: true, RequestsPerSecond: 5, Burst: 10}, limiter)
		assert.Equal(t, http.StatusNoContent, serve(r, fromIP("10.0.0.9")).Code)
		require.Len(t, limiter.keys, 1)
		assert.Equal(t, "ratelimit:http:10.0.0.9", limiter.keys[0])
		assert.Equal(t, 10, limiter.limit)

		limiter.allow = false
		w := serve(r, fromIP("10.0.0.9"))
		assert.Equal(t, http.StatusTooManyRequests, w.Code)
		assert.Contains(t, w.Body.String(), "rate limit exceeded")
	})

	t.Run("limiter failure lets requests through", func(t *testing.T) {
		limiter := &stubLimiter{err: errors.New("redis down")}
		r := limitedEngine(config.RateLimitConfig{Enabled: true, RequestsPerSecond: 1}, limiter)
		assert.Equal(t, http.StatusNoContent, serve(r, fromIP("10.0.0.1")).Code)
	})
}

func TestCORSAllowsConfiguredOrigin(t *testing.T) {
	r := gin.New()
	r.Use(CORS(config.CORSConfig{AllowedOrigins: []string{"https://app.example.com"}}))
	r.GET("/", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Origin", "https://app.example.com")
	w := serve(r, req)
	assert.Equal(t, "https://app.example.com", w.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "true", w.Header().Get("Access-Control-Allow-Credentials"))

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Origin", "https://evil.example.com")
	w = serve(r, req)
	assert.Equal(t, http.StatusForbidden, w.Code)
}
