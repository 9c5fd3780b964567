// Package dto 提供 HTTP 层数据传输对象
package dto

import (
	"github.com/gin-gonic/gin"

	"compligen-api/pkg/errors"
)

// Response 统一成功响应结构
type Response[T any] struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    T      `json:"data,omitempty"`
	TraceID string `json:"trace_id,omitempty"`
}

// ErrorResponse 错误响应结构。error 字段是稳定错误码，
// 客户端按码分支，message/details 仅供展示。
type ErrorResponse struct {
	Error   errors.ErrorCode `json:"error"`
	Message string           `json:"message"`
	Details string           `json:"details,omitempty"`
	TraceID string           `json:"trace_id,omitempty"`
}

// Success 返回成功响应
func Success[T any](c *gin.Context, data T) {
	c.JSON(200, Response[T]{
		Code:    200,
		Message: "success",
		Data:    data,
		TraceID: c.GetString("trace_id"),
	})
}

// Fail 按 AppError 返回错误响应；未知错误归一化为 server_error
func Fail(c *gin.Context, err error) {
	appErr := errors.AsAppError(err)
	c.JSON(appErr.HTTPStatus, ErrorResponse{
		Error:   appErr.Code,
		Message: appErr.Message,
		Details: appErr.Detail,
		TraceID: c.GetString("trace_id"),
	})
}

// BadRequest 返回 400 错误
func BadRequest(c *gin.Context, detail string) {
	Fail(c, errors.ErrInvalidParam.WithDetail(detail))
}

// NotFound 返回 404 错误
func NotFound(c *gin.Context, detail string) {
	Fail(c, errors.ErrNotFound.WithDetail(detail))
}
