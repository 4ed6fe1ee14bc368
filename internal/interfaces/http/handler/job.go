package handler

import (
	"context"

	"github.com/gin-gonic/gin"

	"dreamteller-api/internal/domain/entity"
	"dreamteller-api/internal/domain/repository"
	"dreamteller-api/internal/interfaces/http/dto"
)

// IdempotencyKeyHeader 重复提交同一任务时携带的请求头
const IdempotencyKeyHeader = "Idempotency-Key"

// JobService 异步生成任务
type JobService interface {
	Submit(ctx context.Context, prompt entity.StoryPrompt, idempotencyKey string) (*entity.StoryJob, bool, error)
	Get(ctx context.Context, id string) (*entity.StoryJob, error)
	List(ctx context.Context, status entity.JobStatus, pagination repository.Pagination) (*repository.PagedResult[*entity.StoryJob], error)
	Cancel(ctx context.Context, id string) (*entity.StoryJob, error)
}

// JobHandler 任务处理器
type JobHandler struct {
	jobs JobService
}

// NewJobHandler 创建任务处理器
func NewJobHandler(jobs JobService) *JobHandler {
	return &JobHandler{jobs: jobs}
}

// Submit 提交异步生成任务
// @Summary 提交生成任务
// @Tags Jobs
// @Accept json
// @Produce json
// @Param Idempotency-Key header string false "幂等键"
// @Param body body dto.StoryPromptRequest true "生成参数"
// @Success 202 {object} dto.Response[dto.JobResponse]
// @Success 200 {object} dto.Response[dto.JobResponse] "幂等键命中已有任务"
// @Router /v1/stories/jobs [post]
func (h *JobHandler) Submit(c *gin.Context) {
	var req dto.StoryPromptRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		dto.BadRequest(c, err.Error())
		return
	}

	job, created, err := h.jobs.Submit(c.Request.Context(), req.ToEntity(), c.GetHeader(IdempotencyKeyHeader))
	if err != nil {
		dto.HandleError(c, err)
		return
	}
	if !created {
		dto.Success(c, dto.ToJobResponse(job))
		return
	}
	dto.Accepted(c, dto.ToJobResponse(job))
}

// GetJob 获取任务详情
// @Summary 获取任务详情
// @Tags Jobs
// @Produce json
// @Param id path string true "任务 ID"
// @Success 200 {object} dto.Response[dto.JobResponse]
// @Failure 404 {object} dto.ErrorResponse
// @Router /v1/jobs/{id} [get]
func (h *JobHandler) GetJob(c *gin.Context) {
	job, err := h.jobs.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		dto.HandleError(c, err)
		return
	}
	dto.Success(c, dto.ToJobResponse(job))
}

// ListJobs 分页列出任务，可按状态过滤
// @Summary 任务列表
// @Tags Jobs
// @Produce json
// @Param status query string false "任务状态"
// @Success 200 {object} dto.Response[[]dto.JobResponse]
// @Router /v1/jobs [get]
func (h *JobHandler) ListJobs(c *gin.Context) {
	page := dto.BindPage(c)
	result, err := h.jobs.List(c.Request.Context(), entity.JobStatus(c.Query("status")), page.Pagination())
	if err != nil {
		dto.HandleError(c, err)
		return
	}
	dto.SuccessWithPage(c, dto.ToJobListResponse(result.Items), dto.NewPageMeta(page.Page, page.PageSize, int(result.Total)))
}

// CancelJob 取消任务
// @Summary 取消任务
// @Tags Jobs
// @Produce json
// @Param id path string true "任务 ID"
// @Success 200 {object} dto.Response[dto.CancelJobResponse]
// @Failure 404 {object} dto.ErrorResponse
// @Failure 409 {object} dto.ErrorResponse "任务已结束"
// @Router /v1/jobs/{id}/cancel [post]
func (h *JobHandler) CancelJob(c *gin.Context) {
	job, err := h.jobs.Cancel(c.Request.Context(), c.Param("id"))
	if err != nil {
		dto.HandleError(c, err)
		return
	}
	dto.Success(c, &dto.CancelJobResponse{ID: job.ID, Cancelled: true})
}
