package story

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"libra-lite/internal/config"
	"libra-lite/internal/infrastructure/llm"
	"libra-lite/internal/workflow/chain"
	wfmodel "libra-lite/internal/workflow/model"
	"libra-lite/internal/workflow/node"
	workflowport "libra-lite/internal/workflow/port"
	workflowprompt "libra-lite/internal/workflow/prompt"
	apperrors "libra-lite/pkg/errors"
	"libra-lite/pkg/logger"
	"libra-lite/pkg/metrics"
)

// 展示层提示文案
const (
	WarningEmptySummary = "Please enter a story summary to continue."
	WarningEmptyPrompt  = "Please enter a prompt."
)

// DefaultSummary 控制台入口未指定摘要时使用
const DefaultSummary = "In a world where memories can be traded, a young girl sells hers to save her brother."

// DefaultImagePrompt 独立图片生成的默认提示词
const DefaultImagePrompt = "Generate a photorealistic image of a cuddly cat wearing a hat."

// Service 故事生成应用服务：校验输入、分配运行 ID、记录指标并把流水线错误映射为 AppError
type Service struct {
	chain     *chain.StoryChain
	promptSet string
	imagePath string
}

// NewService 按配置组装流水线
func NewService(cfg *config.Config, factory workflowport.ChatModelFactory, prompts *workflowprompt.Registry) (*Service, error) {
	set, err := workflowprompt.SetByName(cfg.Pipeline.PromptSet)
	if err != nil {
		return nil, apperrors.ErrConfigInvalid.WithError(err)
	}
	c := chain.NewStoryChain(factory, prompts, chain.Options{
		TextProvider:    cfg.LLM.DefaultProvider,
		ImageProvider:   cfg.LLM.ImageProvider,
		PromptSet:       set,
		ImageEnabled:    cfg.Pipeline.ImageEnabled,
		ConcurrentImage: cfg.Pipeline.ConcurrentImage,
		StoryMaxTokens:  cfg.Pipeline.StoryMaxTokens,
	})
	return &Service{
		chain:     c,
		promptSet: cfg.Pipeline.PromptSet,
		imagePath: cfg.Output.ImagePath,
	}, nil
}

// Generate 执行一次完整生成；空摘要在任何阶段调用之前被拒绝
func (s *Service) Generate(ctx context.Context, summary string, obs chain.Observer) (*wfmodel.StoryArtifact, error) {
	if strings.TrimSpace(summary) == "" {
		return nil, apperrors.ErrEmptyInput.WithDetail(WarningEmptySummary)
	}

	runID := uuid.NewString()
	start := time.Now()
	metrics.ActiveRuns.Inc()
	defer metrics.ActiveRuns.Dec()

	logger.Info(logger.WithContext(ctx, logger.RunIDKey, runID), "story run started", "prompt_set", s.promptSet)
	art, err := s.chain.Run(ctx, runID, summary, obs)

	status := "success"
	if err != nil {
		status = "failed"
	}
	metrics.StoryGenerationTotal.WithLabelValues(s.promptSet, status).Inc()
	metrics.StoryGenerationDuration.WithLabelValues(s.promptSet).Observe(time.Since(start).Seconds())
	if err != nil {
		return art, MapError(err)
	}
	metrics.StoryWordCount.Observe(float64(len(strings.Fields(art.Story))))
	return art, nil
}

// GenerateImage 独立图片生成
func (s *Service) GenerateImage(ctx context.Context, prompt string) (*wfmodel.Image, error) {
	if strings.TrimSpace(prompt) == "" {
		return nil, apperrors.ErrEmptyInput.WithDetail(WarningEmptyPrompt)
	}
	img, err := s.chain.GenerateImage(ctx, prompt)
	if err != nil {
		status := "error"
		if errors.Is(err, node.ErrImageBlockNotFound) {
			status = "no_image"
		}
		metrics.ImageGenerationTotal.WithLabelValues(status).Inc()
		return nil, MapError(err)
	}
	metrics.ImageGenerationTotal.WithLabelValues("success").Inc()
	return img, nil
}

// SaveImage 将图片写入固定输出文件，path 为空时使用配置值
func (s *Service) SaveImage(img *wfmodel.Image, path string) (string, error) {
	if img == nil {
		return "", apperrors.ErrImageNotFound
	}
	if path == "" {
		path = s.imagePath
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return "", apperrors.Wrap(err, apperrors.CodeStorageError, "create output directory")
		}
	}
	if err := os.WriteFile(path, img.Data, 0o644); err != nil {
		return "", apperrors.Wrap(err, apperrors.CodeStorageError, fmt.Sprintf("write image to %s", path))
	}
	return path, nil
}

// MapError 将流水线错误映射为带错误码的 AppError
func MapError(err error) *apperrors.AppError {
	if err == nil {
		return nil
	}
	if apperrors.IsAppError(err) {
		return apperrors.AsAppError(err)
	}

	var (
		missing  *workflowprompt.MissingFieldError
		empty    *node.EmptyOutputError
		genErr   *llm.GenerationError
		stageErr *chain.StageError
	)
	detail := ""
	if errors.As(err, &stageErr) {
		detail = "stage: " + stageErr.Stage
	}

	switch {
	case errors.Is(err, chain.ErrEmptySummary):
		return apperrors.ErrEmptyInput.WithDetail(WarningEmptySummary).WithError(err)
	case errors.As(err, &missing):
		return apperrors.Wrap(err, apperrors.CodeMissingField, "prompt field missing").WithDetail(missing.Field)
	case errors.As(err, &empty):
		return apperrors.Wrap(err, apperrors.CodeEmptyOutput, "model returned empty output").WithDetail(detail)
	case errors.Is(err, node.ErrImageBlockNotFound):
		return apperrors.Wrap(err, apperrors.CodeImageNotFound, "no image in model response")
	case errors.As(err, &genErr):
		return apperrors.Wrap(err, apperrors.CodeLLMCallFailed, "LLM call failed").WithDetail(detail)
	default:
		return apperrors.Wrap(err, apperrors.CodeGenerationFailed, "story generation failed").WithDetail(detail)
	}
}
