// Package job 管理异步故事生成任务
package job

import (
	"context"
	"strings"

	"dreamteller-api/internal/domain/entity"
	"dreamteller-api/internal/domain/repository"
	"dreamteller-api/internal/infrastructure/messaging"
	apperrors "dreamteller-api/pkg/errors"
	"dreamteller-api/pkg/logger"
)

// Publisher 把任务投递到队列
type Publisher interface {
	PublishStoryJob(ctx context.Context, job *messaging.StoryJobMessage) (string, error)
}

// Service 任务提交、查询与取消
type Service struct {
	jobs      repository.JobRepository
	publisher Publisher
	rules     entity.PromptRules
}

func NewService(jobs repository.JobRepository, publisher Publisher, rules entity.PromptRules) *Service {
	return &Service{jobs: jobs, publisher: publisher, rules: rules}
}

// Submit 校验参数并创建任务。同一幂等键重复提交时返回已有任务，created 为 false。
func (s *Service) Submit(ctx context.Context, prompt entity.StoryPrompt, idempotencyKey string) (job *entity.StoryJob, created bool, err error) {
	normalized, err := prompt.Normalize(s.rules)
	if err != nil {
		return nil, false, apperrors.ErrValidationFailed.WithDetail(err.Error()).WithError(err)
	}

	idempotencyKey = strings.TrimSpace(idempotencyKey)
	if idempotencyKey != "" {
		existing, err := s.jobs.GetByIdempotencyKey(ctx, idempotencyKey)
		if err != nil {
			return nil, false, apperrors.Wrap(err, apperrors.CodeDatabaseError, "failed to look up job")
		}
		if existing != nil {
			return existing, false, nil
		}
	}

	job = entity.NewStoryJob(normalized, idempotencyKey)
	ctx = logger.WithContext(ctx, logger.JobIDKey, job.ID)
	if err := s.jobs.Create(ctx, job); err != nil {
		return nil, false, apperrors.Wrap(err, apperrors.CodeDatabaseError, "failed to create job")
	}

	if _, err := s.publisher.PublishStoryJob(ctx, &messaging.StoryJobMessage{JobID: job.ID, IdempotencyKey: idempotencyKey}); err != nil {
		logger.Error(ctx, "failed to enqueue job", err)
		job.Fail("internal", "failed to enqueue job")
		if uerr := s.jobs.Update(ctx, job); uerr != nil {
			logger.Error(ctx, "failed to mark job failed", uerr)
		}
		return nil, false, apperrors.Wrap(err, apperrors.CodeServiceUnavailable, "job queue unavailable")
	}

	logger.Info(ctx, "job submitted", "num_scenes", normalized.NumScenes)
	return job, true, nil
}

// Get 获取任务
func (s *Service) Get(ctx context.Context, id string) (*entity.StoryJob, error) {
	job, err := s.jobs.GetByID(ctx, id)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeDatabaseError, "failed to get job")
	}
	if job == nil {
		return nil, apperrors.ErrJobNotFound.WithDetail(id)
	}
	return job, nil
}

// List 按创建时间倒序列出任务
func (s *Service) List(ctx context.Context, status entity.JobStatus, pagination repository.Pagination) (*repository.PagedResult[*entity.StoryJob], error) {
	var filter *repository.JobFilter
	if status != "" {
		filter = &repository.JobFilter{Status: status}
	}
	result, err := s.jobs.List(ctx, filter, pagination)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeDatabaseError, "failed to list jobs")
	}
	return result, nil
}

// Cancel 取消未结束的任务，重复取消是幂等的。运行中的任务由 worker 轮询状态后停止。
func (s *Service) Cancel(ctx context.Context, id string) (*entity.StoryJob, error) {
	job, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if job.Status == entity.JobStatusCancelled {
		return job, nil
	}
	if !job.Cancel() {
		return nil, apperrors.ErrJobNotCancelable.WithDetail(string(job.Status))
	}
	if err := s.jobs.Update(ctx, job); err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeDatabaseError, "failed to cancel job")
	}
	logger.Info(logger.WithContext(ctx, logger.JobIDKey, id), "job cancelled")
	return job, nil
}
