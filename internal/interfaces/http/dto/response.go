// Package dto 提供 HTTP 层数据传输对象
package dto

import (
	"net/http"

	"github.com/gin-gonic/gin"

	apperrors "libra-lite/pkg/errors"
)

// Response 统一响应结构
type Response[T any] struct {
	Code      int    `json:"code"`
	Message   string `json:"message"`
	Data      T      `json:"data,omitempty"`
	RequestID string `json:"request_id,omitempty"`
	TraceID   string `json:"trace_id,omitempty"`
}

// ErrorDetail 错误详情
type ErrorDetail struct {
	ErrorCode string `json:"error_code,omitempty"`
	Details   string `json:"details,omitempty"`
}

// ErrorResponse 错误响应结构
type ErrorResponse struct {
	Code      int          `json:"code"`
	Message   string       `json:"message"`
	Warning   string       `json:"warning,omitempty"`
	Error     *ErrorDetail `json:"error,omitempty"`
	RequestID string       `json:"request_id,omitempty"`
	TraceID   string       `json:"trace_id,omitempty"`
}

// Success 返回成功响应
func Success[T any](c *gin.Context, data T) {
	c.JSON(http.StatusOK, Response[T]{
		Code:      http.StatusOK,
		Message:   "success",
		Data:      data,
		RequestID: c.GetString("request_id"),
		TraceID:   c.GetString("trace_id"),
	})
}

// Error 返回错误响应
func Error(c *gin.Context, httpCode int, message string) {
	c.JSON(httpCode, ErrorResponse{
		Code:      httpCode,
		Message:   message,
		RequestID: c.GetString("request_id"),
		TraceID:   c.GetString("trace_id"),
	})
}

// Warning 输入不可用时的提示（空摘要等），不属于失败
func Warning(c *gin.Context, message string) {
	c.JSON(http.StatusUnprocessableEntity, ErrorResponse{
		Code:      http.StatusUnprocessableEntity,
		Message:   "warning",
		Warning:   message,
		RequestID: c.GetString("request_id"),
		TraceID:   c.GetString("trace_id"),
	})
}

// AppError 按 AppError 的 HTTP 状态码与错误码返回；空输入类错误以 warning 形式返回
func AppError(c *gin.Context, err *apperrors.AppError) {
	if err == nil {
		Error(c, http.StatusInternalServerError, "internal server error")
		return
	}
	if err.Code == apperrors.CodeEmptyInput {
		Warning(c, err.Detail)
		return
	}
	status := err.HTTPStatus
	if status == 0 {
		status = http.StatusInternalServerError
	}
	c.JSON(status, ErrorResponse{
		Code:    status,
		Message: err.Message,
		Error: &ErrorDetail{
			ErrorCode: string(err.Code),
			Details:   err.Detail,
		},
		RequestID: c.GetString("request_id"),
		TraceID:   c.GetString("trace_id"),
	})
}

// BadRequest 返回 400 错误
func BadRequest(c *gin.Context, message string) {
	Error(c, http.StatusBadRequest, message)
}

// NotFound 返回 404 错误
func NotFound(c *gin.Context, message string) {
	Error(c, http.StatusNotFound, message)
}

// InternalError 返回 500 错误
func InternalError(c *gin.Context, message string) {
	Error(c, http.StatusInternalServerError, message)
}
