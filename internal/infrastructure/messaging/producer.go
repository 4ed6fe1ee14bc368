package messaging

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"

	"dreamteller-api/pkg/logger"
)

var tracer = otel.Tracer("messaging")

// Producer 向一个任务流追加消息，流长度近似裁剪到 maxLen
type Producer struct {
	client *redis.Client
	stream Stream
	maxLen int64
}

func NewProducer(client *redis.Client, stream Stream, maxLen int64) *Producer {
	if maxLen <= 0 {
		maxLen = 100000
	}
	return &Producer{client: client, stream: stream, maxLen: maxLen}
}

// PublishStoryJob 投递故事生成任务。
// 请求 ID 与 W3C trace 上下文写入元数据，worker 据此接续同一条链路。
func (p *Producer) PublishStoryJob(ctx context.Context, job *StoryJobMessage) (string, error) {
	ctx, span := tracer.Start(ctx, "messaging.PublishStoryJob",
		trace.WithSpanKind(trace.SpanKindProducer),
		trace.WithAttributes(
			attribute.String("stream", string(p.stream)),
			attribute.String("job.id", job.JobID),
		))
	defer span.End()

	msg, err := NewMessage(job.JobID, MessageTypeStoryGen, job)
	if err != nil {
		span.RecordError(err)
		return "", fmt.Errorf("failed to build job message: %w", err)
	}
	msg.SetMetadata("idempotency_key", job.IdempotencyKey)
	if v, ok := ctx.Value(logger.RequestIDKey).(string); ok {
		msg.SetMetadata("request_id", v)
	}
	otel.GetTextMapPropagator().Inject(ctx, propagation.MapCarrier(msg.Metadata))

	data, err := json.Marshal(msg)
	if err != nil {
		span.RecordError(err)
		return "", fmt.Errorf("failed to encode job message: %w", err)
	}

	id, err := p.client.XAdd(ctx, &redis.XAddArgs{
		Stream: string(p.stream),
		MaxLen: p.maxLen,
		Approx: true,
		Values: map[string]any{"data": string(data)},
	}).Result()
	if err != nil {
		span.RecordError(err)
		return "", fmt.Errorf("failed to enqueue job %s: %w", job.JobID, err)
	}
	span.SetAttributes(attribute.String("stream.message_id", id))
	return id, nil
}
