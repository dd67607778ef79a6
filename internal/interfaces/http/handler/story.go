// Package handler 提供 HTTP 请求处理器
package handler

import (
	"context"
	"strings"

	"github.com/gin-gonic/gin"

	storyapp "libra-lite/internal/application/story"
	"libra-lite/internal/interfaces/http/dto"
	"libra-lite/internal/workflow/chain"
	wfmodel "libra-lite/internal/workflow/model"
	"libra-lite/pkg/logger"
)

// StoryGenerator 故事与图片生成能力，由 application/story.Service 实现
type StoryGenerator interface {
	Generate(ctx context.Context, summary string, obs chain.Observer) (*wfmodel.StoryArtifact, error)
	GenerateImage(ctx context.Context, prompt string) (*wfmodel.Image, error)
}

// StoryHandler 故事生成处理器
type StoryHandler struct {
	svc StoryGenerator
}

// NewStoryHandler 创建故事生成处理器
func NewStoryHandler(svc StoryGenerator) *StoryHandler {
	return &StoryHandler{svc: svc}
}

// GenerateStory 同步生成故事
// @Summary 生成故事
// @Description 依次生成标题、角色与故事，返回完整产物
// @Tags Stories
// @Accept json
// @Produce json
// @Param body body dto.GenerateStoryRequest true "故事摘要"
// @Success 200 {object} dto.Response[dto.StoryResponse]
// @Failure 422 {object} dto.ErrorResponse
// @Failure 502 {object} dto.ErrorResponse
// @Router /v1/stories [post]
func (h *StoryHandler) GenerateStory(c *gin.Context) {
	var req dto.GenerateStoryRequest
	if err := c.ShouldBind(&req); err != nil {
		dto.BadRequest(c, "invalid request body")
		return
	}
	if strings.TrimSpace(req.Summary) == "" {
		dto.Warning(c, storyapp.WarningEmptySummary)
		return
	}

	art, err := h.svc.Generate(c.Request.Context(), req.Summary, nil)
	if err != nil {
		logger.Warn(c.Request.Context(), "story generation failed", "error", err.Error())
		dto.AppError(c, storyapp.MapError(err))
		return
	}
	dto.Success(c, dto.ToStoryResponse(art))
}

// GenerateImage 按自由提示词生成单张图片
// @Summary 生成图片
// @Tags Images
// @Accept json
// @Produce json
// @Param body body dto.GenerateImageRequest true "图片提示词"
// @Success 200 {object} dto.Response[dto.ImageResponse]
// @Failure 422 {object} dto.ErrorResponse
// @Router /v1/images [post]
func (h *StoryHandler) GenerateImage(c *gin.Context) {
	var req dto.GenerateImageRequest
	if err := c.ShouldBind(&req); err != nil {
		dto.BadRequest(c, "invalid request body")
		return
	}
	if strings.TrimSpace(req.Prompt) == "" {
		dto.Warning(c, storyapp.WarningEmptyPrompt)
		return
	}

	img, err := h.svc.GenerateImage(c.Request.Context(), req.Prompt)
	if err != nil {
		logger.Warn(c.Request.Context(), "image generation failed", "error", err.Error())
		dto.AppError(c, storyapp.MapError(err))
		return
	}
	dto.Success(c, dto.ToImageResponse(img))
}
