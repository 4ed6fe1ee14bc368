package story

import (
	"context"
	"errors"
	"fmt"

	"dreamteller-api/internal/domain/entity"
	apperrors "dreamteller-api/pkg/errors"
)

// StageError 致命阶段失败，记录失败发生的阶段
type StageError struct {
	Stage entity.Stage
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s stage failed: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

// FailedStage 返回错误链中的失败阶段
func FailedStage(err error) (entity.Stage, bool) {
	var se *StageError
	if errors.As(err, &se) {
		return se.Stage, true
	}
	return "", false
}

// IsCancelled 生成是否因调用方取消或超时而终止
func IsCancelled(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

// ErrorKind 给调用方区分的失败类别：认证、限流或其它
func ErrorKind(err error) string {
	if err == nil {
		return ""
	}
	if kind, ok := apperrors.ProviderKindOf(err); ok {
		return string(kind)
	}
	if IsCancelled(err) {
		return "cancelled"
	}
	if apperrors.HasCode(err, apperrors.CodeValidationFailed) {
		return "validation"
	}
	return "internal"
}

// UserMessage 面向用户的简短失败说明
func UserMessage(err error) string {
	switch ErrorKind(err) {
	case string(apperrors.ProviderAuth):
		return "authentication with the AI provider failed, check your API key"
	case string(apperrors.ProviderRateLimit):
		return "the AI provider is rate limiting requests, wait a moment and retry"
	case "cancelled":
		return "generation was cancelled"
	}
	if appErr, ok := apperrors.AsAppError(err); ok {
		if appErr.Detail != "" {
			return appErr.Message + ": " + appErr.Detail
		}
		return appErr.Message
	}
	return err.Error()
}

func emptyOutputError(stage entity.Stage) error {
	return &StageError{
		Stage: stage,
		Err:   apperrors.ErrGenerationFailed.WithDetail(fmt.Sprintf("%s stage returned empty output", stage)),
	}
}

func validationError(err error) error {
	return apperrors.ErrValidationFailed.WithDetail(err.Error()).WithError(err)
}
