package service

import (
	"context"
	"strings"
)

type llmCtxKey string

const (
	llmCtxKeyWorkflow llmCtxKey = "llm_workflow"
	llmCtxKeyProvider llmCtxKey = "llm_provider"
	llmCtxKeyRunID    llmCtxKey = "llm_run_id"
)

const unknown = "unknown"

func withValue(ctx context.Context, key llmCtxKey, value string) context.Context {
	if ctx == nil {
		return nil
	}
	v := strings.TrimSpace(value)
	if v == "" {
		return ctx
	}
	return context.WithValue(ctx, key, v)
}

func valueOr(ctx context.Context, key llmCtxKey, fallback string) string {
	if ctx == nil {
		return fallback
	}
	s, ok := ctx.Value(key).(string)
	if !ok || s == "" {
		return fallback
	}
	return s
}

// WithStage 标记当前模型调用所属的流水线阶段，形如 story.title
func WithStage(ctx context.Context, stage string) context.Context {
	return withValue(ctx, llmCtxKeyWorkflow, "story."+strings.TrimSpace(stage))
}

func WithProvider(ctx context.Context, provider string) context.Context {
	return withValue(ctx, llmCtxKeyProvider, provider)
}

func WithRunID(ctx context.Context, runID string) context.Context {
	return withValue(ctx, llmCtxKeyRunID, runID)
}

func WithStageProvider(ctx context.Context, stage, provider string) context.Context {
	return WithProvider(WithStage(ctx, stage), provider)
}

func WorkflowFromContext(ctx context.Context) string {
	return valueOr(ctx, llmCtxKeyWorkflow, unknown)
}

func ProviderFromContext(ctx context.Context) string {
	return valueOr(ctx, llmCtxKeyProvider, unknown)
}

func RunIDFromContext(ctx context.Context) string {
	return valueOr(ctx, llmCtxKeyRunID, "")
}

type callStatsKey struct{}

// CallStats 单次阶段调用的统计，由模型包装层填写，调用方读取
type CallStats struct {
	Model    string
	Attempts int
}

// WithCallStats 为一次阶段调用挂载统计记录
func WithCallStats(ctx context.Context) (context.Context, *CallStats) {
	st := &CallStats{}
	return context.WithValue(ctx, callStatsKey{}, st), st
}

// CallStatsFromContext 未挂载时返回 nil
func CallStatsFromContext(ctx context.Context) *CallStats {
	if ctx == nil {
		return nil
	}
	st, _ := ctx.Value(callStatsKey{}).(*CallStats)
	return st
}
