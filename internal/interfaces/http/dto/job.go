package dto

import (
	"time"

	"dreamteller-api/internal/domain/entity"
)

// JobResponse 任务响应
type JobResponse struct {
	ID            string             `json:"id"`
	Status        string             `json:"status"`
	Stage         string             `json:"stage"`
	Progress      int                `json:"progress"`
	StatusMessage string             `json:"status_message,omitempty"`
	Prompt        entity.StoryPrompt `json:"prompt"`
	StoryID       string             `json:"story_id,omitempty"`
	Title         string             `json:"title,omitempty"`
	ArchiveFile   string             `json:"archive_file,omitempty"`
	ErrorKind     string             `json:"error_kind,omitempty"`
	ErrorMsg      string             `json:"error_msg,omitempty"`
	RetryCount    int                `json:"retry_count"`
	DurationMs    int                `json:"duration_ms,omitempty"`
	StartedAt     *time.Time         `json:"started_at,omitempty"`
	CompletedAt   *time.Time         `json:"completed_at,omitempty"`
	CreatedAt     time.Time          `json:"created_at"`
	UpdatedAt     time.Time          `json:"updated_at"`
}

// CancelJobResponse 取消任务响应
type CancelJobResponse struct {
	ID        string `json:"id"`
	Cancelled bool   `json:"cancelled"`
}

// ToJobResponse 将领域实体转换为响应 DTO
func ToJobResponse(j *entity.StoryJob) *JobResponse {
	if j == nil {
		return nil
	}
	return &JobResponse{
		ID:            j.ID,
		Status:        string(j.Status),
		Stage:         string(j.Stage),
		Progress:      j.Progress,
		StatusMessage: j.StatusMessage,
		Prompt:        j.Prompt,
		StoryID:       j.StoryID,
		Title:         j.Title,
		ArchiveFile:   j.ArchiveFile,
		ErrorKind:     j.ErrorKind,
		ErrorMsg:      j.ErrorMessage,
		RetryCount:    j.RetryCount,
		DurationMs:    j.DurationMs,
		StartedAt:     j.StartedAt,
		CompletedAt:   j.CompletedAt,
		CreatedAt:     j.CreatedAt,
		UpdatedAt:     j.UpdatedAt,
	}
}

// ToJobListResponse 将领域实体列表转换为响应 DTO
func ToJobListResponse(jobs []*entity.StoryJob) []*JobResponse {
	out := make([]*JobResponse, 0, len(jobs))
	for _, j := range jobs {
		out = append(out, ToJobResponse(j))
	}
	return out
}
