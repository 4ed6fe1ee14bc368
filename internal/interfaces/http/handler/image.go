package handler

import (
	"context"

	"github.com/gin-gonic/gin"

	"dreamteller-api/internal/application/story"
	"dreamteller-api/internal/interfaces/http/dto"
	workflowport "dreamteller-api/internal/workflow/port"
)

// ImageService 独立图像生成
type ImageService interface {
	Generate(ctx context.Context, p story.ImageParams) (*workflowport.ImageResult, error)
	RegenerateScene(ctx context.Context, sceneIndex int, p story.ImageParams) (*workflowport.ImageResult, error)
}

// ImageHandler 图像处理器
type ImageHandler struct {
	images ImageService
}

// NewImageHandler 创建图像处理器
func NewImageHandler(images ImageService) *ImageHandler {
	return &ImageHandler{images: images}
}

// Generate 按提示词生成一张图像
// @Summary 生成图像
// @Tags Images
// @Accept json
// @Produce json
// @Param body body dto.GenerateImageRequest true "生成参数"
// @Success 200 {object} dto.Response[dto.ImageResponse]
// @Router /v1/images/generate [post]
func (h *ImageHandler) Generate(c *gin.Context) {
	req, ok := bindImageRequest(c)
	if !ok {
		return
	}
	res, err := h.images.Generate(c.Request.Context(), toImageParams(req))
	if err != nil {
		dto.HandleError(c, err)
		return
	}
	dto.Success(c, &dto.ImageResponse{ImageURL: res.URL, Prompt: req.Prompt, Seed: res.Seed})
}

// RegenerateScene 以场景固定种子重新生成插图
// @Summary 重新生成场景插图
// @Tags Images
// @Accept json
// @Produce json
// @Param scene_index path int true "场景下标"
// @Param body body dto.GenerateImageRequest true "生成参数"
// @Success 200 {object} dto.Response[dto.ImageResponse]
// @Router /v1/images/regenerate/{scene_index} [post]
func (h *ImageHandler) RegenerateScene(c *gin.Context) {
	index, err := dto.BindIndexParam(c, "scene_index")
	if err != nil {
		dto.HandleError(c, err)
		return
	}
	req, ok := bindImageRequest(c)
	if !ok {
		return
	}
	res, err := h.images.RegenerateScene(c.Request.Context(), index, toImageParams(req))
	if err != nil {
		dto.HandleError(c, err)
		return
	}
	dto.Success(c, &dto.ImageResponse{ImageURL: res.URL, Prompt: req.Prompt, Seed: res.Seed})
}

func bindImageRequest(c *gin.Context) (dto.GenerateImageRequest, bool) {
	var req dto.GenerateImageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		dto.BadRequest(c, err.Error())
		return req, false
	}
	return req, true
}

func toImageParams(req dto.GenerateImageRequest) story.ImageParams {
	return story.ImageParams{
		Prompt:         req.Prompt,
		NegativePrompt: req.NegativePrompt,
		Width:          req.Width,
		Height:         req.Height,
		Steps:          req.Steps,
		GuidanceScale:  req.GuidanceScale,
		Seed:           req.Seed,
	}
}
