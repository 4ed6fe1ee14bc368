package entity

import (
	"time"

	"github.com/google/uuid"
)

// JobStatus 任务状态
type JobStatus string

const (
	JobStatusPending   JobStatus = "pending"
	JobStatusRunning   JobStatus = "running"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
	JobStatusCancelled JobStatus = "cancelled"
)

// StoryJob 异步故事生成任务
type StoryJob struct {
	ID             string      `json:"id" gorm:"primaryKey;type:uuid"`
	Status         JobStatus   `json:"status" gorm:"type:varchar(16);index"`
	Stage          Stage       `json:"stage" gorm:"type:varchar(16)"`
	Progress       int         `json:"progress"` // 任务进度 (0-100)
	StatusMessage  string      `json:"status_message,omitempty"`
	Prompt         StoryPrompt `json:"prompt" gorm:"type:jsonb;serializer:json"`
	StoryID        string      `json:"story_id,omitempty"`
	Title          string      `json:"title,omitempty"`
	ArchiveFile    string      `json:"archive_file,omitempty"`
	ErrorKind      string      `json:"error_kind,omitempty"`
	ErrorMessage   string      `json:"error_message,omitempty"`
	RetryCount     int         `json:"retry_count"`
	IdempotencyKey string      `json:"idempotency_key,omitempty" gorm:"index"`
	DurationMs     int         `json:"duration_ms,omitempty"`
	CreatedAt      time.Time   `json:"created_at"`
	UpdatedAt      time.Time   `json:"updated_at"`
	StartedAt      *time.Time  `json:"started_at,omitempty"`
	CompletedAt    *time.Time  `json:"completed_at,omitempty"`
}

// TableName GORM 表名
func (StoryJob) TableName() string {
	return "story_jobs"
}

// NewStoryJob 创建新任务
func NewStoryJob(prompt StoryPrompt, idempotencyKey string) *StoryJob {
	now := time.Now().UTC()
	return &StoryJob{
		ID:             uuid.NewString(),
		Status:         JobStatusPending,
		Stage:          StagePending,
		Prompt:         prompt,
		IdempotencyKey: idempotencyKey,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

// Start 开始执行任务
func (j *StoryJob) Start() {
	now := time.Now().UTC()
	j.Status = JobStatusRunning
	j.Stage = StageSketch
	j.StartedAt = &now
	j.ErrorKind = ""
	j.ErrorMessage = ""
}

// Complete 完成任务
func (j *StoryJob) Complete(storyID, title, archiveFile string) {
	now := time.Now().UTC()
	j.Status = JobStatusCompleted
	j.Stage = StageDone
	j.Progress = 100
	j.StoryID = storyID
	j.Title = title
	j.ArchiveFile = archiveFile
	j.CompletedAt = &now
	j.setDuration(now)
}

// Fail 任务失败
func (j *StoryJob) Fail(kind, errMsg string) {
	now := time.Now().UTC()
	j.Status = JobStatusFailed
	j.Stage = StageFailed
	j.ErrorKind = kind
	j.ErrorMessage = errMsg
	j.CompletedAt = &now
	j.setDuration(now)
}

// Cancel 取消任务，已结束的任务返回 false
func (j *StoryJob) Cancel() bool {
	if j.IsTerminal() {
		return false
	}
	now := time.Now().UTC()
	j.Status = JobStatusCancelled
	j.CompletedAt = &now
	j.setDuration(now)
	return true
}

// Retry 重试任务
func (j *StoryJob) Retry() {
	j.RetryCount++
	j.Requeue()
}

// Requeue 放回待执行状态，不计入重试次数
func (j *StoryJob) Requeue() {
	j.Status = JobStatusPending
	j.Stage = StagePending
	j.Progress = 0
	j.StartedAt = nil
	j.CompletedAt = nil
}

// CanRetry 检查是否可以重试
func (j *StoryJob) CanRetry(maxRetries int) bool {
	return j.RetryCount < maxRetries && j.Status == JobStatusFailed
}

// IsTerminal 任务是否已结束
func (j *StoryJob) IsTerminal() bool {
	switch j.Status {
	case JobStatusCompleted, JobStatusFailed, JobStatusCancelled:
		return true
	}
	return false
}

// UpdateProgress 更新任务进度
func (j *StoryJob) UpdateProgress(stage Stage, progress int, message string) {
	if progress < 0 {
		progress = 0
	}
	if progress > 100 {
		progress = 100
	}
	j.Stage = stage
	j.Progress = progress
	if message != "" {
		j.StatusMessage = message
	}
}

func (j *StoryJob) setDuration(now time.Time) {
	if j.StartedAt != nil {
		j.DurationMs = int(now.Sub(*j.StartedAt).Milliseconds())
	}
}
