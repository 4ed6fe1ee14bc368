package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"strings"
)

// ProviderKind 外部生成服务错误分类
type ProviderKind string

const (
	ProviderAuth         ProviderKind = "auth"
	ProviderRateLimit    ProviderKind = "rate_limit"
	ProviderInvalidInput ProviderKind = "invalid_input"
	ProviderTransient    ProviderKind = "transient"
)

// ProviderError 外部文本/图像服务返回的错误
type ProviderError struct {
	Kind     ProviderKind
	Provider string
	Status   int
	Err      error
}

func (e *ProviderError) Error() string {
	if e.Status > 0 {
		return fmt.Sprintf("provider %s (%s, status %d): %v", e.Provider, e.Kind, e.Status, e.Err)
	}
	return fmt.Sprintf("provider %s (%s): %v", e.Provider, e.Kind, e.Err)
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

// Code 返回分类对应的错误码
func (k ProviderKind) Code() ErrorCode {
	switch k {
	case ProviderAuth:
		return CodeProviderAuth
	case ProviderRateLimit:
		return CodeProviderRateLimit
	case ProviderInvalidInput:
		return CodeProviderInvalid
	default:
		return CodeProviderTransient
	}
}

// Retryable 仅瞬时错误与限流值得重试
func (k ProviderKind) Retryable() bool {
	return k == ProviderTransient || k == ProviderRateLimit
}

// NewProviderError 创建 ProviderError 并包装为 AppError
func NewProviderError(kind ProviderKind, provider string, status int, err error) *AppError {
	pe := &ProviderError{Kind: kind, Provider: provider, Status: status, Err: err}
	return Wrap(pe, kind.Code(), providerMessage(kind))
}

func providerMessage(kind ProviderKind) string {
	switch kind {
	case ProviderAuth:
		return "provider authentication failed, check the configured api key"
	case ProviderRateLimit:
		return "provider rate limit exceeded, retry later"
	case ProviderInvalidInput:
		return "provider rejected the request"
	default:
		return "provider call failed"
	}
}

// ProviderKindOf 提取错误链中的 ProviderError 分类
func ProviderKindOf(err error) (ProviderKind, bool) {
	var pe *ProviderError
	if stderrors.As(err, &pe) {
		return pe.Kind, true
	}
	return "", false
}

// ClassifyProviderError 将原始 SDK 错误归类；status 为 0 时仅按消息判断
func ClassifyProviderError(provider string, status int, err error) *AppError {
	if err == nil {
		return nil
	}
	if appErr, ok := AsAppError(err); ok {
		if _, isProvider := ProviderKindOf(appErr); isProvider {
			return appErr
		}
	}
	return NewProviderError(classify(status, err.Error()), provider, status, err)
}

func classify(status int, msg string) ProviderKind {
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return ProviderAuth
	case status == http.StatusTooManyRequests:
		return ProviderRateLimit
	case status == http.StatusBadRequest || status == http.StatusUnprocessableEntity:
		return ProviderInvalidInput
	case status >= 500:
		return ProviderTransient
	}

	msg = strings.ToLower(msg)
	switch {
	case strings.Contains(msg, "api key"), strings.Contains(msg, "unauthorized"), strings.Contains(msg, "authentication"):
		return ProviderAuth
	case strings.Contains(msg, "rate limit"), strings.Contains(msg, "too many requests"), strings.Contains(msg, "429"):
		return ProviderRateLimit
	case strings.Contains(msg, "invalid"), strings.Contains(msg, "content policy"):
		return ProviderInvalidInput
	default:
		return ProviderTransient
	}
}
