package imagegen

import (
	"context"
	"time"

	"golang.org/x/time/rate"

	workflowport "dreamteller-api/internal/workflow/port"
	"dreamteller-api/pkg/metrics"
)

// LimitedGenerator 为图像后端加上进程内限流与调用指标
type LimitedGenerator struct {
	next    workflowport.ImageGenerator
	limiter *rate.Limiter
	backend string
}

// NewLimitedGenerator rps <= 0 表示不限流
func NewLimitedGenerator(next workflowport.ImageGenerator, backend string, rps float64, burst int) *LimitedGenerator {
	limit := rate.Inf
	if rps > 0 {
		limit = rate.Limit(rps)
	}
	if burst < 1 {
		burst = 1
	}
	return &LimitedGenerator{next: next, limiter: rate.NewLimiter(limit, burst), backend: backend}
}

func (g *LimitedGenerator) GenerateImage(ctx context.Context, req *workflowport.ImageRequest) (*workflowport.ImageResult, error) {
	if err := g.limiter.Wait(ctx); err != nil {
		metrics.ImageCallTotal.WithLabelValues(g.backend, "throttled").Inc()
		return nil, err
	}

	start := time.Now()
	res, err := g.next.GenerateImage(ctx, req)
	metrics.ImageCallDuration.WithLabelValues(g.backend).Observe(time.Since(start).Seconds())

	status := "success"
	if err != nil {
		status = "error"
	}
	metrics.ImageCallTotal.WithLabelValues(g.backend, status).Inc()
	return res, err
}
