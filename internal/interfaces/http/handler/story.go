// Package handler 提供 HTTP 请求处理器
package handler

import (
	"context"
	"errors"
	"io"

	"github.com/gin-gonic/gin"

	"dreamteller-api/internal/application/story"
	"dreamteller-api/internal/domain/entity"
	"dreamteller-api/internal/domain/repository"
	"dreamteller-api/internal/interfaces/http/dto"
)

// StoryService 故事生成与存储
type StoryService interface {
	Rules() entity.PromptRules
	Generate(ctx context.Context, prompt entity.StoryPrompt, opts ...story.GenerateOption) (*entity.Story, error)
	Get(ctx context.Context, id string) (*entity.Story, error)
	List(ctx context.Context, pagination repository.Pagination) (*repository.PagedResult[*entity.Story], error)
	Delete(ctx context.Context, id string) error
	RegenerateText(ctx context.Context, prompt entity.StoryPrompt, currentText string, sceneIndex int) (string, error)
	RegenerateStoredScene(ctx context.Context, id string, sceneIndex int) (*entity.Story, error)
}

// StoryHandler 故事处理器
type StoryHandler struct {
	stories StoryService
	library repository.ArchiveRepository
}

// NewStoryHandler 创建故事处理器
func NewStoryHandler(stories StoryService, library repository.ArchiveRepository) *StoryHandler {
	return &StoryHandler{stories: stories, library: library}
}

// Generate 同步生成故事
// @Summary 生成故事
// @Tags Stories
// @Accept json
// @Produce json
// @Param body body dto.StoryPromptRequest true "生成参数"
// @Success 200 {object} dto.Response[dto.StoryResponse]
// @Failure 400 {object} dto.ErrorResponse
// @Failure 502 {object} dto.ErrorResponse
// @Router /v1/stories/generate [post]
func (h *StoryHandler) Generate(c *gin.Context) {
	var req dto.StoryPromptRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		dto.BadRequest(c, err.Error())
		return
	}

	s, err := h.stories.Generate(c.Request.Context(), req.ToEntity())
	if err != nil {
		dto.HandleError(c, err)
		return
	}
	dto.Success(c, dto.ToStoryResponse(s))
}

// RegenerateText 按调用方提供的上下文重写一个场景
// @Summary 重写场景文本
// @Tags Stories
// @Accept json
// @Produce json
// @Param body body dto.RegenerateTextRequest true "重写参数"
// @Success 200 {object} dto.Response[dto.RegenerateTextResponse]
// @Router /v1/stories/regenerate-text [post]
func (h *StoryHandler) RegenerateText(c *gin.Context) {
	var req dto.RegenerateTextRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		dto.BadRequest(c, err.Error())
		return
	}

	text, err := h.stories.RegenerateText(c.Request.Context(), req.Prompt.ToEntity(), req.CurrentText, *req.SceneIndex)
	if err != nil {
		dto.HandleError(c, err)
		return
	}
	dto.Success(c, &dto.RegenerateTextResponse{Text: text})
}

// List 分页列出已生成的故事
// @Summary 故事列表
// @Tags Stories
// @Produce json
// @Param page query int false "页码"
// @Param page_size query int false "每页数量"
// @Success 200 {object} dto.Response[[]dto.StoryResponse]
// @Router /v1/stories [get]
func (h *StoryHandler) List(c *gin.Context) {
	page := dto.BindPage(c)
	result, err := h.stories.List(c.Request.Context(), page.Pagination())
	if err != nil {
		dto.HandleError(c, err)
		return
	}
	dto.SuccessWithPage(c, dto.ToStoryListResponse(result.Items), dto.NewPageMeta(page.Page, page.PageSize, int(result.Total)))
}

// Get 获取故事
// @Summary 获取故事
// @Tags Stories
// @Produce json
// @Param id path string true "故事 ID"
// @Success 200 {object} dto.Response[dto.StoryResponse]
// @Failure 404 {object} dto.ErrorResponse
// @Router /v1/stories/{id} [get]
func (h *StoryHandler) Get(c *gin.Context) {
	s, err := h.stories.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		dto.HandleError(c, err)
		return
	}
	dto.Success(c, dto.ToStoryResponse(s))
}

// Delete 删除故事
// @Summary 删除故事
// @Tags Stories
// @Param id path string true "故事 ID"
// @Success 200 {object} dto.Response[dto.DeleteResponse]
// @Failure 404 {object} dto.ErrorResponse
// @Router /v1/stories/{id} [delete]
func (h *StoryHandler) Delete(c *gin.Context) {
	if err := h.stories.Delete(c.Request.Context(), c.Param("id")); err != nil {
		dto.HandleError(c, err)
		return
	}
	dto.Success(c, &dto.DeleteResponse{Deleted: true})
}

// RegenerateScene 重写已保存故事中的一个场景
// @Summary 重写已保存故事的场景
// @Tags Stories
// @Produce json
// @Param id path string true "故事 ID"
// @Param index path int true "场景下标"
// @Success 200 {object} dto.Response[dto.StoryResponse]
// @Router /v1/stories/{id}/scenes/{index} [put]
func (h *StoryHandler) RegenerateScene(c *gin.Context) {
	index, err := dto.BindIndexParam(c, "index")
	if err != nil {
		dto.HandleError(c, err)
		return
	}

	s, err := h.stories.RegenerateStoredScene(c.Request.Context(), c.Param("id"), index)
	if err != nil {
		dto.HandleError(c, err)
		return
	}
	dto.Success(c, dto.ToStoryResponse(s))
}

// Archive 把已保存的故事写入归档
// @Summary 归档故事
// @Tags Stories
// @Accept json
// @Produce json
// @Param id path string true "故事 ID"
// @Param body body dto.ArchiveStoryRequest false "文件名"
// @Success 201 {object} dto.Response[dto.ArchiveFileResponse]
// @Router /v1/stories/{id}/archive [post]
func (h *StoryHandler) Archive(c *gin.Context) {
	var req dto.ArchiveStoryRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		dto.BadRequest(c, err.Error())
		return
	}

	ctx := c.Request.Context()
	s, err := h.stories.Get(ctx, c.Param("id"))
	if err != nil {
		dto.HandleError(c, err)
		return
	}
	filename, err := h.library.Save(ctx, s, req.Filename)
	if err != nil {
		dto.HandleError(c, err)
		return
	}
	dto.Created(c, &dto.ArchiveFileResponse{Filename: filename})
}
