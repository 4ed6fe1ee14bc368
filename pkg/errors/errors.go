// Package errors 提供统一的错误定义
package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
)

// ErrorCode 错误码类型
type ErrorCode string

// 预定义错误码
const (
	// 通用错误 (1xxx)
	CodeSuccess            ErrorCode = "0"
	CodeUnknown            ErrorCode = "1000"
	CodeInvalidParam       ErrorCode = "1001"
	CodeNotFound           ErrorCode = "1004"
	CodeConflict           ErrorCode = "1005"
	CodeTooManyRequests    ErrorCode = "1006"
	CodeInternalError      ErrorCode = "1007"
	CodeServiceUnavailable ErrorCode = "1008"

	// 资源错误 (3xxx)
	CodeStoryNotFound   ErrorCode = "3001"
	CodeArchiveNotFound ErrorCode = "3002"
	CodeJobNotFound     ErrorCode = "3003"
	CodeImageNotFound   ErrorCode = "3004"

	// 业务错误 (4xxx)
	CodeGenerationFailed ErrorCode = "4001"
	CodeValidationFailed ErrorCode = "4002"
	CodeArchiveFormat    ErrorCode = "4003"
	CodeJobNotCancelable ErrorCode = "4004"

	// 外部服务错误 (5xxx)
	CodeDatabaseError     ErrorCode = "5001"
	CodeCacheError        ErrorCode = "5002"
	CodeFilesystemError   ErrorCode = "5004"
	CodeProviderAuth      ErrorCode = "5101"
	CodeProviderRateLimit ErrorCode = "5102"
	CodeProviderInvalid   ErrorCode = "5103"
	CodeProviderTransient ErrorCode = "5104"
)

// AppError 应用错误
type AppError struct {
	Code       ErrorCode `json:"code"`
	Message    string    `json:"message"`
	Detail     string    `json:"detail,omitempty"`
	HTTPStatus int       `json:"-"`
	Err        error     `json:"-"`
}

// Error 实现 error 接口
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap 返回底层错误
func (e *AppError) Unwrap() error {
	return e.Err
}

// Is 按错误码比较，使预定义错误可用于 errors.Is
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

// WithDetail 添加详细信息
func (e *AppError) WithDetail(detail string) *AppError {
	cp := *e
	cp.Detail = detail
	return &cp
}

// WithError 添加底层错误
func (e *AppError) WithError(err error) *AppError {
	cp := *e
	cp.Err = err
	return &cp
}

// New 创建新的应用错误
func New(code ErrorCode, message string) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: codeToHTTPStatus(code),
	}
}

// Newf 使用格式化消息创建应用错误
func Newf(code ErrorCode, format string, args ...any) *AppError {
	return New(code, fmt.Sprintf(format, args...))
}

// Wrap 包装错误
func Wrap(err error, code ErrorCode, message string) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: codeToHTTPStatus(code),
		Err:        err,
	}
}

// codeToHTTPStatus 错误码转 HTTP 状态码
func codeToHTTPStatus(code ErrorCode) int {
	switch code {
	case CodeSuccess:
		return http.StatusOK
	case CodeInvalidParam, CodeValidationFailed, CodeProviderInvalid:
		return http.StatusBadRequest
	case CodeProviderAuth:
		return http.StatusUnauthorized
	case CodeNotFound, CodeStoryNotFound, CodeArchiveNotFound, CodeJobNotFound, CodeImageNotFound:
		return http.StatusNotFound
	case CodeConflict, CodeJobNotCancelable:
		return http.StatusConflict
	case CodeArchiveFormat:
		return http.StatusUnprocessableEntity
	case CodeTooManyRequests, CodeProviderRateLimit:
		return http.StatusTooManyRequests
	case CodeProviderTransient:
		return http.StatusBadGateway
	case CodeServiceUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// 预定义错误
var (
	ErrInvalidParam       = New(CodeInvalidParam, "invalid parameter")
	ErrNotFound           = New(CodeNotFound, "resource not found")
	ErrTooManyRequests    = New(CodeTooManyRequests, "too many requests")
	ErrInternalError      = New(CodeInternalError, "internal server error")
	ErrServiceUnavailable = New(CodeServiceUnavailable, "service unavailable")

	ErrStoryNotFound   = New(CodeStoryNotFound, "story not found")
	ErrArchiveNotFound = New(CodeArchiveNotFound, "archive not found")
	ErrJobNotFound     = New(CodeJobNotFound, "job not found")
	ErrImageNotFound   = New(CodeImageNotFound, "image not found")

	ErrGenerationFailed = New(CodeGenerationFailed, "story generation failed")
	ErrValidationFailed = New(CodeValidationFailed, "validation failed")
	ErrArchiveFormat    = New(CodeArchiveFormat, "invalid archive format")
	ErrJobNotCancelable = New(CodeJobNotCancelable, "job can no longer be cancelled")

	ErrDatabaseError   = New(CodeDatabaseError, "database error")
	ErrCacheError      = New(CodeCacheError, "cache error")
	ErrFilesystemError = New(CodeFilesystemError, "filesystem error")
)

// IsAppError 检查链上是否存在 AppError
func IsAppError(err error) bool {
	var appErr *AppError
	return stderrors.As(err, &appErr)
}

// AsAppError 从错误链中取出 AppError
func AsAppError(err error) (*AppError, bool) {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// HasCode 判断错误链上的 AppError 是否为指定错误码
func HasCode(err error, code ErrorCode) bool {
	appErr, ok := AsAppError(err)
	return ok && appErr.Code == code
}

// NewValidationError 创建参数校验错误
func NewValidationError(format string, args ...any) *AppError {
	return Newf(CodeValidationFailed, format, args...)
}

// NewFormatError 创建归档格式错误
func NewFormatError(err error, format string, args ...any) *AppError {
	return Wrap(err, CodeArchiveFormat, fmt.Sprintf(format, args...))
}

// NewFilesystemError 创建文件系统错误
func NewFilesystemError(err error, format string, args ...any) *AppError {
	return Wrap(err, CodeFilesystemError, fmt.Sprintf(format, args...))
}

// IsNotFound 判断是否为任意 "不存在" 类错误
func IsNotFound(err error) bool {
	appErr, ok := AsAppError(err)
	if !ok {
		return false
	}
	return appErr.HTTPStatus == http.StatusNotFound
}
