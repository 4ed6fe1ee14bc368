package handler

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"dreamteller-api/internal/domain/repository"
	"dreamteller-api/internal/interfaces/http/dto"
	apperrors "dreamteller-api/pkg/errors"
)

// ArchiveHandler 故事归档处理器
type ArchiveHandler struct {
	library repository.ArchiveRepository
}

// NewArchiveHandler 创建归档处理器
func NewArchiveHandler(library repository.ArchiveRepository) *ArchiveHandler {
	return &ArchiveHandler{library: library}
}

// List 列出归档
// @Summary 归档列表
// @Tags Archives
// @Produce json
// @Success 200 {object} dto.Response[[]entity.ArchiveSummary]
// @Router /v1/archives [get]
func (h *ArchiveHandler) List(c *gin.Context) {
	list, err := h.library.List(c.Request.Context())
	if err != nil {
		dto.HandleError(c, err)
		return
	}
	dto.Success(c, list)
}

// Get 读取归档
// @Summary 读取归档
// @Tags Archives
// @Produce json
// @Param filename path string true "归档文件名"
// @Success 200 {object} dto.Response[dto.ArchivedStoryResponse]
// @Failure 404 {object} dto.ErrorResponse
// @Failure 422 {object} dto.ErrorResponse
// @Router /v1/archives/{filename} [get]
func (h *ArchiveHandler) Get(c *gin.Context) {
	archived, err := h.library.Load(c.Request.Context(), c.Param("filename"))
	if err != nil {
		dto.HandleError(c, err)
		return
	}
	dto.Success(c, dto.ToArchivedStoryResponse(archived))
}

// Delete 删除归档，文件不存在时 deleted 为 false
// @Summary 删除归档
// @Tags Archives
// @Param filename path string true "归档文件名"
// @Success 200 {object} dto.Response[dto.DeleteResponse]
// @Router /v1/archives/{filename} [delete]
func (h *ArchiveHandler) Delete(c *gin.Context) {
	existed, err := h.library.Delete(c.Request.Context(), c.Param("filename"))
	if err != nil {
		dto.HandleError(c, err)
		return
	}
	dto.Success(c, &dto.DeleteResponse{Deleted: existed})
}

// Download 下载归档原始文件
// @Summary 下载归档
// @Tags Archives
// @Produce application/zip
// @Param filename path string true "归档文件名"
// @Router /v1/archives/{filename}/download [get]
func (h *ArchiveHandler) Download(c *gin.Context) {
	filename := c.Param("filename")
	path, err := h.library.Path(c.Request.Context(), filename)
	if err != nil {
		dto.HandleError(c, err)
		return
	}
	c.Header("Content-Type", "application/zip")
	c.FileAttachment(path, filename)
}

// Image 返回归档内嵌的场景插图
// @Summary 归档插图
// @Tags Archives
// @Produce image/png
// @Param filename path string true "归档文件名"
// @Param index path int true "场景下标"
// @Router /v1/archives/{filename}/images/{index} [get]
func (h *ArchiveHandler) Image(c *gin.Context) {
	index, err := dto.BindIndexParam(c, "index")
	if err != nil {
		dto.HandleError(c, err)
		return
	}

	archived, err := h.library.Load(c.Request.Context(), c.Param("filename"))
	if err != nil {
		dto.HandleError(c, err)
		return
	}
	img, ok := archived.Image(index)
	if !ok {
		dto.HandleError(c, apperrors.ErrImageNotFound.WithDetail(fmt.Sprintf("scene %d", index)))
		return
	}
	c.Header("Cache-Control", "private, max-age=3600")
	c.Data(http.StatusOK, img.ContentType, img.Data)
}
