package llm

import (
	"context"
	"errors"
	"regexp"
	"strconv"

	"github.com/cloudwego/eino/components/model"
	goopenai "github.com/sashabaranov/go-openai"

	"dreamteller-api/internal/config"
	einoobs "dreamteller-api/internal/observability/eino"
	workflowport "dreamteller-api/internal/workflow/port"
	apperrors "dreamteller-api/pkg/errors"
)

// TextProvider 用 ChatModel 实现 TextGenerator，按 workflow 选择 provider
type TextProvider struct {
	factory workflowport.ChatModelFactory
	config  *config.LLMConfig
}

func NewTextProvider(factory workflowport.ChatModelFactory, cfg *config.Config) *TextProvider {
	return &TextProvider{factory: factory, config: &cfg.LLM}
}

// Generate 执行一次完整（非流式）生成，SDK 错误被归类为 ProviderError
func (p *TextProvider) Generate(ctx context.Context, req *workflowport.TextRequest) (string, error) {
	if req == nil || len(req.Messages) == 0 {
		return "", apperrors.ErrInvalidParam.WithDetail("text request has no messages")
	}

	provider := p.config.ProviderFor(req.Workflow)
	ctx = einoobs.WithWorkflowProvider(ctx, req.Workflow, provider)

	chatModel, err := p.factory.ChatModel(ctx, provider)
	if err != nil {
		return "", apperrors.ClassifyProviderError(provider, 0, err)
	}

	var opts []model.Option
	if req.Temperature != nil {
		opts = append(opts, model.WithTemperature(*req.Temperature))
	}
	if req.MaxTokens != nil {
		opts = append(opts, model.WithMaxTokens(*req.MaxTokens))
	}

	msg, err := chatModel.Generate(ctx, req.Messages, opts...)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", ctxErr
		}
		return "", apperrors.ClassifyProviderError(provider, StatusFromError(err), err)
	}
	if msg == nil {
		return "", nil
	}
	return msg.Content, nil
}

var statusCodePattern = regexp.MustCompile(`status code: (\d{3})`)

// StatusFromError 尽力从 SDK 错误中提取 HTTP 状态码，取不到时返回 0
func StatusFromError(err error) int {
	var apiErr *goopenai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.HTTPStatusCode
	}
	var reqErr *goopenai.RequestError
	if errors.As(err, &reqErr) {
		return reqErr.HTTPStatusCode
	}
	if m := statusCodePattern.FindStringSubmatch(err.Error()); m != nil {
		code, _ := strconv.Atoi(m[1])
		return code
	}
	return 0
}
