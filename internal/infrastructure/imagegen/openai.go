package imagegen

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/http"
	"strings"

	goopenai "github.com/sashabaranov/go-openai"

	"dreamteller-api/internal/infrastructure/llm"
	workflowport "dreamteller-api/internal/workflow/port"
	apperrors "dreamteller-api/pkg/errors"
)

const openAIProvider = "openai"

// imageAPI go-openai 客户端中用到的部分
type imageAPI interface {
	CreateImage(ctx context.Context, request goopenai.ImageRequest) (goopenai.ImageResponse, error)
}

// OpenAIClient 通过 OpenAI Images 接口生成图片，结果以 data URL 返回
type OpenAIClient struct {
	api   imageAPI
	model string
}

func NewOpenAIClient(apiKey, baseURL, model string) *OpenAIClient {
	cfg := goopenai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	if model == "" {
		model = goopenai.CreateImageModelDallE3
	}
	return &OpenAIClient{api: goopenai.NewClientWithConfig(cfg), model: model}
}

func (c *OpenAIClient) GenerateImage(ctx context.Context, req *workflowport.ImageRequest) (*workflowport.ImageResult, error) {
	if req == nil || strings.TrimSpace(req.Prompt) == "" {
		return nil, apperrors.ErrInvalidParam.WithDetail("image prompt is required")
	}

	resp, err := c.api.CreateImage(ctx, goopenai.ImageRequest{
		Prompt:         req.Prompt,
		Model:          c.model,
		N:              1,
		Size:           openAISize(req.Size),
		ResponseFormat: goopenai.CreateImageResponseFormatB64JSON,
	})
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, apperrors.ClassifyProviderError(openAIProvider, llm.StatusFromError(err), err)
	}
	if len(resp.Data) == 0 {
		return nil, apperrors.NewProviderError(apperrors.ProviderTransient, openAIProvider, 0,
			fmt.Errorf("image response contained no data"))
	}

	item := resp.Data[0]
	if item.B64JSON == "" {
		if item.URL == "" {
			return nil, apperrors.NewProviderError(apperrors.ProviderTransient, openAIProvider, 0,
				fmt.Errorf("image response contained neither url nor payload"))
		}
		return &workflowport.ImageResult{URL: item.URL, Seed: req.Seed}, nil
	}

	data, err := base64.StdEncoding.DecodeString(item.B64JSON)
	if err != nil {
		return nil, apperrors.NewProviderError(apperrors.ProviderTransient, openAIProvider, 0,
			fmt.Errorf("failed to decode image payload: %w", err))
	}
	contentType := http.DetectContentType(data)
	return &workflowport.ImageResult{
		URL:         "data:" + contentType + ";base64," + item.B64JSON,
		Data:        data,
		ContentType: contentType,
		Seed:        req.Seed,
	}, nil
}

// openAISize 把预设尺寸映射到接口支持的最接近尺寸
func openAISize(s workflowport.ImageSize) string {
	switch s.Named {
	case workflowport.SizeSquare, workflowport.SizeSquareHD:
		return goopenai.CreateImageSize1024x1024
	case workflowport.SizePortrait4x3, workflowport.SizePortrait16x9:
		return goopenai.CreateImageSize1024x1792
	case workflowport.SizeLandscape4x3, workflowport.SizeLandscape16x9:
		return goopenai.CreateImageSize1792x1024
	}
	switch {
	case s.Width > s.Height:
		return goopenai.CreateImageSize1792x1024
	case s.Height > s.Width:
		return goopenai.CreateImageSize1024x1792
	default:
		return goopenai.CreateImageSize1024x1024
	}
}
