package handler

import (
	"io"

	"github.com/gin-gonic/gin"

	"dreamteller-api/internal/application/story"
	"dreamteller-api/internal/domain/entity"
	"dreamteller-api/internal/interfaces/http/dto"
	apperrors "dreamteller-api/pkg/errors"
	"dreamteller-api/pkg/logger"
)

const streamBuffer = 64

type generationResult struct {
	story *entity.Story
	err   error
}

// streamError SSE error 事件载荷
type streamError struct {
	Message   string       `json:"message"`
	ErrorKind string       `json:"error_kind"`
	ErrorCode string       `json:"error_code,omitempty"`
	Stage     entity.Stage `json:"stage,omitempty"`
}

// Stream 生成故事并以 SSE 推送进度
// 事件依次为 stage/status/image_status，最后是 done（故事）或 error。
// 客户端断开时取消生成。
// @Summary 流式生成故事
// @Tags Stories
// @Accept json
// @Produce text/event-stream
// @Param body body dto.StoryPromptRequest true "生成参数"
// @Success 200 "SSE stream"
// @Router /v1/stories/generate/stream [post]
func (h *StoryHandler) Stream(c *gin.Context) {
	var req dto.StoryPromptRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		dto.BadRequest(c, err.Error())
		return
	}
	prompt := req.ToEntity()
	if _, err := prompt.Normalize(h.stories.Rules()); err != nil {
		dto.HandleError(c, apperrors.NewValidationError("%s", err.Error()))
		return
	}

	ctx := c.Request.Context()
	obs := story.NewChannelObserver(streamBuffer)
	results := make(chan generationResult, 1)
	go func() {
		s, err := h.stories.Generate(ctx, prompt, story.WithObserver(obs))
		results <- generationResult{story: s, err: err}
		obs.Close()
	}()

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")

	events := obs.Events()
	c.Stream(func(w io.Writer) bool {
		select {
		case ev, ok := <-events:
			if !ok {
				res := <-results
				if res.err != nil {
					c.SSEvent("error", toStreamError(res.err))
				} else {
					c.SSEvent("done", dto.ToStoryResponse(res.story))
				}
				return false
			}
			c.SSEvent(string(ev.Kind), ev)
			return true
		case <-ctx.Done():
			obs.Detach()
			logger.Info(ctx, "stream client disconnected, generation cancelled")
			return false
		}
	})
}

func toStreamError(err error) streamError {
	out := streamError{
		Message:   story.UserMessage(err),
		ErrorKind: story.ErrorKind(err),
	}
	if appErr, ok := apperrors.AsAppError(err); ok {
		out.ErrorCode = string(appErr.Code)
	}
	if stage, ok := story.FailedStage(err); ok {
		out.Stage = stage
	}
	return out
}
