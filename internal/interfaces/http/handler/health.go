// Package handler 提供 HTTP 请求处理器
package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	workflowport "libra-lite/internal/workflow/port"
)

// HealthHandler 健康检查处理器
type HealthHandler struct {
	version  string
	factory  workflowport.ChatModelFactory
	required []string
	optional []string
}

// NewHealthHandler 创建健康检查处理器
// required 中的提供商无法构建时服务未就绪；optional（插图提供商）只降级
func NewHealthHandler(version string, factory workflowport.ChatModelFactory, required, optional []string) *HealthHandler {
	return &HealthHandler{
		version:  version,
		factory:  factory,
		required: required,
		optional: optional,
	}
}

// HealthResponse 健康检查响应
type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version,omitempty"`
}

type readinessCheck struct {
	Status    string `json:"status"`
	Error     string `json:"error,omitempty"`
	LatencyMs int64  `json:"latency_ms,omitempty"`
}

type readinessResponse struct {
	Status string                     `json:"status"`
	Checks map[string]*readinessCheck `json:"checks,omitempty"`
}

// Health 健康检查接口
// @Summary 健康检查
// @Tags System
// @Produce json
// @Success 200 {object} HealthResponse
// @Router /health [get]
func (h *HealthHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, HealthResponse{
		Status:  "ok",
		Version: h.version,
	})
}

// Ready 就绪检查接口：确认所需提供商的模型客户端可以构建（不发起模型调用）
// @Summary 就绪检查
// @Tags System
// @Produce json
// @Success 200 {object} readinessResponse
// @Failure 503 {object} readinessResponse
// @Router /ready [get]
func (h *HealthHandler) Ready(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	checks := make(map[string]*readinessCheck, len(h.required)+len(h.optional))
	ready := h.factory != nil

	for _, name := range h.required {
		check := h.check(ctx, name)
		if check.Status != "ok" {
			ready = false
		}
		checks[name] = check
	}
	for _, name := range h.optional {
		check := h.check(ctx, name)
		if check.Status != "ok" {
			check.Status = "degraded"
		}
		checks[name] = check
	}

	resp := readinessResponse{Status: "ok", Checks: checks}
	if !ready {
		resp.Status = "not_ready"
		c.JSON(http.StatusServiceUnavailable, resp)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *HealthHandler) check(ctx context.Context, provider string) *readinessCheck {
	if h.factory == nil {
		return &readinessCheck{Status: "missing", Error: "llm factory not configured"}
	}
	start := time.Now()
	_, err := h.factory.Get(ctx, provider)
	check := &readinessCheck{Status: "ok", LatencyMs: time.Since(start).Milliseconds()}
	if err != nil {
		check.Status = "error"
		check.Error = err.Error()
	}
	return check
}

// Live 存活检查接口
// @Summary 存活检查
// @Tags System
// @Produce json
// @Success 200 {object} HealthResponse
// @Router /live [get]
func (h *HealthHandler) Live(c *gin.Context) {
	c.JSON(http.StatusOK, HealthResponse{Status: "ok"})
}
