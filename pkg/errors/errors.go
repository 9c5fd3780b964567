// Package errors 提供统一的错误定义
package errors

import (
	"fmt"
	"net/http"
)

// ErrorCode 错误码类型，对外契约的稳定标识
type ErrorCode string

// 预定义错误码
const (
	// 请求错误
	CodeInvalidParam ErrorCode = "invalid_param"
	CodeUnauthorized ErrorCode = "unauthorized"
	CodeForbidden    ErrorCode = "forbidden"
	CodeNotFound     ErrorCode = "not_found"

	// 业务错误
	CodeNoSources        ErrorCode = "no_sources"
	CodeGenerationFailed ErrorCode = "generation_failed"
	CodeValidationFailed ErrorCode = "validation_failed"
	CodeRetrievalFailed  ErrorCode = "retrieval_failed"

	// 配置错误
	CodeMissingOpenRouterKey ErrorCode = "missing_openrouter_key"

	// 上游错误
	CodeUpstreamTimeout ErrorCode = "upstream_timeout"
	CodeUpstreamError   ErrorCode = "upstream_error"

	// 兜底
	CodeServerError ErrorCode = "server_error"
)

// AppError 应用错误
type AppError struct {
	Code       ErrorCode `json:"error"`
	Message    string    `json:"message"`
	Detail     string    `json:"details,omitempty"`
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

// WithDetail 添加详细信息
func (e *AppError) WithDetail(detail string) *AppError {
	clone := *e
	clone.Detail = detail
	return &clone
}

// WithError 添加底层错误
func (e *AppError) WithError(err error) *AppError {
	clone := *e
	clone.Err = err
	return &clone
}

// New 创建新的应用错误
func New(code ErrorCode, message string) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: codeToHTTPStatus(code),
	}
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
	case CodeInvalidParam:
		return http.StatusBadRequest
	case CodeUnauthorized:
		return http.StatusUnauthorized
	case CodeForbidden:
		return http.StatusForbidden
	case CodeNotFound:
		return http.StatusNotFound
	case CodeNoSources:
		return http.StatusUnprocessableEntity
	case CodeUpstreamTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// 预定义错误
var (
	ErrInvalidParam = New(CodeInvalidParam, "invalid parameter")
	ErrUnauthorized = New(CodeUnauthorized, "unauthorized")
	ErrForbidden    = New(CodeForbidden, "forbidden")
	ErrNotFound     = New(CodeNotFound, "resource not found")

	ErrNoSources            = New(CodeNoSources, "no usable sources for private mode")
	ErrGenerationFailed     = New(CodeGenerationFailed, "content generation failed")
	ErrRetrievalFailed      = New(CodeRetrievalFailed, "evidence retrieval failed")
	ErrMissingOpenRouterKey = New(CodeMissingOpenRouterKey, "openrouter api key not configured")
	ErrUpstreamTimeout      = New(CodeUpstreamTimeout, "upstream request timed out")
	ErrServerError          = New(CodeServerError, "internal server error")
)

// IsAppError 检查是否为 AppError
func IsAppError(err error) bool {
	_, ok := err.(*AppError)
	return ok
}

// AsAppError 将错误转换为 AppError；未知错误统一归一化为 server_error
func AsAppError(err error) *AppError {
	if appErr, ok := err.(*AppError); ok {
		return appErr
	}
	return Wrap(err, CodeServerError, "internal server error").WithDetail(err.Error())
}
