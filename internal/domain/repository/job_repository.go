package repository

import (
	"context"

	"dreamteller-api/internal/domain/entity"
)

// JobFilter 任务过滤条件
type JobFilter struct {
	Status entity.JobStatus
}

// JobRepository 故事生成任务仓储接口
type JobRepository interface {
	// Create 创建任务
	Create(ctx context.Context, job *entity.StoryJob) error

	// GetByID 根据 ID 获取任务，不存在时返回 nil, nil
	GetByID(ctx context.Context, id string) (*entity.StoryJob, error)

	// GetByIdempotencyKey 根据幂等键获取任务
	GetByIdempotencyKey(ctx context.Context, key string) (*entity.StoryJob, error)

	// Update 更新任务
	Update(ctx context.Context, job *entity.StoryJob) error

	// UpdateProgress 更新阶段与进度（0-100）
	UpdateProgress(ctx context.Context, id string, stage entity.Stage, progress int, message string) error

	// List 按创建时间倒序列出任务
	List(ctx context.Context, filter *JobFilter, pagination Pagination) (*PagedResult[*entity.StoryJob], error)

	// Delete 删除任务
	Delete(ctx context.Context, id string) error
}
