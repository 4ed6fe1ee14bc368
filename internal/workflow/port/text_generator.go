package port

import (
	"context"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
)

// TextRequest 一次完整的文本生成请求
type TextRequest struct {
	// Workflow 生成阶段名，用于选择 provider 与打点
	Workflow    string
	Messages    []*schema.Message
	Temperature *float32
	MaxTokens   *int
}

// TextGenerator 文本生成能力：消息进，完整文本出。
// 错误应为 pkg/errors 中带分类的 ProviderError。
type TextGenerator interface {
	Generate(ctx context.Context, req *TextRequest) (string, error)
}

// ChatModelFactory 按 provider 名称提供 ChatModel，name 为空表示默认 provider
type ChatModelFactory interface {
	ChatModel(ctx context.Context, provider string) (model.BaseChatModel, error)
}
