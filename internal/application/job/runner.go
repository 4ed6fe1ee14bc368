package job

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"dreamteller-api/internal/application/story"
	"dreamteller-api/internal/domain/entity"
	"dreamteller-api/internal/domain/repository"
	"dreamteller-api/internal/infrastructure/messaging"
	apperrors "dreamteller-api/pkg/errors"
	"dreamteller-api/pkg/logger"
)

// StoryGenerator 执行一次完整生成，StoryService 满足该接口
type StoryGenerator interface {
	Generate(ctx context.Context, prompt entity.StoryPrompt, opts ...story.GenerateOption) (*entity.Story, error)
}

// Archiver 把完成的故事写入归档
type Archiver interface {
	Save(ctx context.Context, s *entity.Story, filename string) (string, error)
}

// RunnerConfig worker 参数
type RunnerConfig struct {
	// MaxRetries 瞬时 provider 错误的最大重试次数，应小于队列的投递上限
	MaxRetries int
	// CancelPollInterval 运行中检查任务是否被取消的间隔
	CancelPollInterval time.Duration
}

// Runner 消费队列消息并执行生成任务
type Runner struct {
	jobs     repository.JobRepository
	stories  StoryGenerator
	archiver Archiver
	cfg      RunnerConfig
}

// NewRunner 创建 worker，archiver 为 nil 时不自动归档
func NewRunner(jobs repository.JobRepository, stories StoryGenerator, archiver Archiver, cfg RunnerConfig) *Runner {
	if cfg.CancelPollInterval <= 0 {
		cfg.CancelPollInterval = 2 * time.Second
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	return &Runner{jobs: jobs, stories: stories, archiver: archiver, cfg: cfg}
}

// Handle 处理一条 story_gen 消息。
// 返回错误表示消息应留在队列中等待重投：只有可重试的 provider 错误和 worker 退出会这样。
func (r *Runner) Handle(ctx context.Context, msg *messaging.Message) error {
	var payload messaging.StoryJobMessage
	if err := msg.UnmarshalPayload(&payload); err != nil {
		logger.Error(ctx, "invalid job payload, dropping", err, "message_id", msg.ID)
		return nil
	}
	ctx = logger.WithContext(ctx, logger.JobIDKey, payload.JobID)

	job, err := r.jobs.GetByID(ctx, payload.JobID)
	if err != nil {
		return fmt.Errorf("failed to load job: %w", err)
	}
	if job == nil {
		logger.Warn(ctx, "job not found, dropping message")
		return nil
	}
	if job.IsTerminal() {
		logger.Info(ctx, "job already finished, skipping", "status", job.Status)
		return nil
	}
	if job.Status == entity.JobStatusRunning {
		logger.Warn(ctx, "job was left running by a previous worker, restarting")
	}

	job.Start()
	if err := r.jobs.Update(ctx, job); err != nil {
		return fmt.Errorf("failed to start job: %w", err)
	}
	logger.Info(ctx, "job started", "retry_count", job.RetryCount)

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	var cancelled atomic.Bool
	go r.watchCancellation(runCtx, job.ID, &cancelled, cancel)

	progress := &progressReporter{ctx: ctx, jobs: r.jobs, jobID: job.ID}
	result, genErr := r.stories.Generate(runCtx, job.Prompt, story.WithObserver(progress))
	if genErr != nil {
		return r.handleFailure(ctx, job, genErr, cancelled.Load())
	}

	if r.cancelledMeanwhile(ctx, job.ID) {
		logger.Info(ctx, "job cancelled before completion, result kept in store only", "story_id", result.ID)
		return nil
	}

	var archiveFile string
	if r.archiver != nil {
		name, err := r.archiver.Save(ctx, result, "")
		if err != nil {
			logger.Error(ctx, "auto archive failed", err, "story_id", result.ID)
		} else {
			archiveFile = name
		}
	}

	job.Complete(result.ID, result.Title, archiveFile)
	if err := r.jobs.Update(ctx, job); err != nil {
		logger.Error(ctx, "failed to mark job completed", err)
		return nil
	}
	logger.Info(ctx, "job completed", "story_id", result.ID, "duration_ms", job.DurationMs)
	return nil
}

func (r *Runner) handleFailure(ctx context.Context, job *entity.StoryJob, genErr error, cancelledByUser bool) error {
	if cancelledByUser {
		logger.Info(ctx, "job stopped after cancellation")
		return nil
	}
	if ctx.Err() != nil {
		// worker 退出：放回待执行，消息保持 pending 由其他 worker 接管
		job.Requeue()
		if err := r.jobs.Update(context.WithoutCancel(ctx), job); err != nil {
			logger.Error(ctx, "failed to requeue job", err)
		}
		return ctx.Err()
	}

	job.Fail(story.ErrorKind(genErr), story.UserMessage(genErr))
	kind, isProvider := apperrors.ProviderKindOf(genErr)
	if isProvider && kind.Retryable() && job.CanRetry(r.cfg.MaxRetries) {
		job.Retry()
		if err := r.jobs.Update(ctx, job); err != nil {
			logger.Error(ctx, "failed to schedule job retry", err)
		}
		logger.Warn(ctx, "job failed with retryable error, will retry",
			"error_kind", kind, "retry_count", job.RetryCount)
		return genErr
	}

	if err := r.jobs.Update(ctx, job); err != nil {
		logger.Error(ctx, "failed to mark job failed", err)
	}
	logger.Warn(ctx, "job failed", "error_kind", job.ErrorKind, "error", genErr.Error())
	return nil
}

// watchCancellation 轮询任务状态，发现被取消后中止生成
func (r *Runner) watchCancellation(ctx context.Context, id string, cancelled *atomic.Bool, cancel context.CancelFunc) {
	ticker := time.NewTicker(r.cfg.CancelPollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if r.cancelledMeanwhile(ctx, id) {
				cancelled.Store(true)
				cancel()
				return
			}
		}
	}
}

func (r *Runner) cancelledMeanwhile(ctx context.Context, id string) bool {
	current, err := r.jobs.GetByID(ctx, id)
	if err != nil || current == nil {
		return false
	}
	return current.Status == entity.JobStatusCancelled
}

// progressReporter 把生成进度回写到任务记录
type progressReporter struct {
	ctx   context.Context
	jobs  repository.JobRepository
	jobID string

	mu       sync.Mutex
	stage    entity.Stage
	progress int
	message  string
}

func (p *progressReporter) OnStatus(message string) {
	p.mu.Lock()
	p.message = message
	p.mu.Unlock()
	p.flush()
}

func (p *progressReporter) OnImageStatus(int, bool) {}

func (p *progressReporter) OnStage(stage entity.Stage, progress int) {
	p.mu.Lock()
	p.stage = stage
	p.progress = progress
	p.mu.Unlock()
	p.flush()
}

func (p *progressReporter) flush() {
	p.mu.Lock()
	stage, progress, message := p.stage, p.progress, p.message
	p.mu.Unlock()
	if stage == "" {
		return
	}
	if err := p.jobs.UpdateProgress(p.ctx, p.jobID, stage, progress, message); err != nil {
		logger.Warn(p.ctx, "failed to record job progress", "error", err.Error())
	}
}
