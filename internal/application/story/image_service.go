package story

import (
	"context"
	"strings"

	"dreamteller-api/internal/workflow/node"
	workflowport "dreamteller-api/internal/workflow/port"
	apperrors "dreamteller-api/pkg/errors"
	"dreamteller-api/pkg/logger"
)

// 独立图像接口的默认参数
const (
	defaultImageWidth    = 768
	defaultImageHeight   = 512
	defaultImageSteps    = 50
	defaultImageGuidance = 7.5
)

// ImageParams 单张图像生成参数，零值字段取默认值
type ImageParams struct {
	Prompt         string
	NegativePrompt string
	Width          int
	Height         int
	Steps          int
	GuidanceScale  float64
	Seed           *int64
}

// ImageService 在生成流程之外直接调用图像后端
type ImageService struct {
	images   workflowport.ImageGenerator
	baseSeed int64
}

func NewImageService(images workflowport.ImageGenerator, baseSeed int64) *ImageService {
	return &ImageService{images: images, baseSeed: baseSeed}
}

// Generate 生成一张图像
func (s *ImageService) Generate(ctx context.Context, p ImageParams) (*workflowport.ImageResult, error) {
	if s.images == nil {
		return nil, apperrors.ErrServiceUnavailable.WithDetail("no image backend configured")
	}
	p.Prompt = strings.TrimSpace(p.Prompt)
	if p.Prompt == "" {
		return nil, apperrors.NewValidationError("prompt must not be empty")
	}
	if p.Width < 0 || p.Height < 0 || p.Steps < 0 {
		return nil, apperrors.NewValidationError("width, height and steps must not be negative")
	}

	req := &workflowport.ImageRequest{
		Prompt:         p.Prompt,
		NegativePrompt: p.NegativePrompt,
		Size:           workflowport.ImageSize{Width: orDefault(p.Width, defaultImageWidth), Height: orDefault(p.Height, defaultImageHeight)},
		Steps:          orDefault(p.Steps, defaultImageSteps),
		GuidanceScale:  p.GuidanceScale,
	}
	if req.GuidanceScale <= 0 {
		req.GuidanceScale = defaultImageGuidance
	}
	if p.Seed != nil {
		req.Seed = *p.Seed
	}

	res, err := s.images.GenerateImage(ctx, req)
	if err != nil {
		logger.Error(ctx, "image generation failed", err)
		return nil, err
	}
	if res == nil || res.URL == "" {
		return nil, apperrors.ErrGenerationFailed.WithDetail("image provider returned no image")
	}
	return res, nil
}

// RegenerateScene 用场景对应的固定种子重新生成插图
func (s *ImageService) RegenerateScene(ctx context.Context, sceneIndex int, p ImageParams) (*workflowport.ImageResult, error) {
	if sceneIndex < 0 {
		return nil, apperrors.NewValidationError("scene index must not be negative, got %d", sceneIndex)
	}
	seed := node.SceneSeed(s.baseSeed, sceneIndex)
	p.Seed = &seed
	return s.Generate(ctx, p)
}

func orDefault(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}
