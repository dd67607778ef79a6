package llm

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
)

// ErrEmptyRequest 请求不包含任何消息
var ErrEmptyRequest = errors.New("generation request has no messages")

// GenerationError 重试耗尽或遇到不可重试错误后的最终失败
type GenerationError struct {
	Provider string
	Attempts int
	Err      error
}

func (e *GenerationError) Error() string {
	return fmt.Sprintf("llm %s: generation failed after %d attempt(s): %v", e.Provider, e.Attempts, e.Err)
}

func (e *GenerationError) Unwrap() error {
	return e.Err
}

// StatusError 提供商返回的非 2xx 响应
type StatusError struct {
	Provider   string
	StatusCode int
	Message    string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("%s: http %d", e.Provider, e.StatusCode)
	}
	return fmt.Sprintf("%s: http %d: %s", e.Provider, e.StatusCode, e.Message)
}

// Transient 408/429/5xx 视为可重试
func (e *StatusError) Transient() bool {
	return isTransientStatus(e.StatusCode)
}

func isTransientStatus(code int) bool {
	return code == http.StatusRequestTimeout ||
		code == http.StatusTooManyRequests ||
		code >= http.StatusInternalServerError
}

// IsTransient 判断错误是否值得重试
// 调用方 context 已取消时一律不重试
func IsTransient(ctx context.Context, err error) bool {
	if err == nil {
		return false
	}
	if ctx != nil && ctx.Err() != nil {
		return false
	}
	if errors.Is(err, ErrEmptyRequest) {
		return false
	}

	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return statusErr.Transient()
	}
	// 单次请求超时（非调用方取消）
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	return isTransientMessage(err)
}

// isTransientMessage 兜底：eino-ext openai 等适配器只暴露错误文本
func isTransientMessage(err error) bool {
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "status code: 429"), strings.Contains(msg, "rate limit"):
		return true
	case strings.Contains(msg, "resource_exhausted"), strings.Contains(msg, "resource exhausted"):
		return true
	case strings.Contains(msg, "status code: 5"):
		return true
	case strings.Contains(msg, "unavailable"), strings.Contains(msg, "overloaded"):
		return true
	case strings.Contains(msg, "timeout"), strings.Contains(msg, "connection reset"):
		return true
	case strings.Contains(msg, "unexpected eof"):
		return true
	default:
		return false
	}
}
