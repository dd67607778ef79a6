package llm

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	"libra-lite/internal/config"
	"libra-lite/internal/domain/service"
	"libra-lite/pkg/logger"
	"libra-lite/pkg/metrics"
)

// RetryPolicy 有界指数退避
type RetryPolicy struct {
	MaxAttempts int
	Initial     time.Duration
	Max         time.Duration
	Multiplier  float64
	Jitter      float64
}

// DefaultRetryPolicy 3 次尝试，500ms 起步，倍率 2，上限 8s
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts: 3,
		Initial:     500 * time.Millisecond,
		Max:         8 * time.Second,
		Multiplier:  2,
		Jitter:      0.5,
	}
}

// RetryPolicyFromConfig 从配置构建重试策略，缺省字段使用默认值
func RetryPolicyFromConfig(cfg config.RetryConfig) RetryPolicy {
	p := DefaultRetryPolicy()
	if cfg.MaxAttempts > 0 {
		p.MaxAttempts = cfg.MaxAttempts
	}
	if cfg.Backoff.Initial > 0 {
		p.Initial = cfg.Backoff.Initial
	}
	if cfg.Backoff.Max > 0 {
		p.Max = cfg.Backoff.Max
	}
	if cfg.Backoff.Multiplier >= 1 {
		p.Multiplier = cfg.Backoff.Multiplier
	}
	if cfg.Backoff.Jitter > 0 && cfg.Backoff.Jitter < 1 {
		p.Jitter = cfg.Backoff.Jitter
	}
	return p
}

func (p RetryPolicy) backOff() *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = p.Initial
	b.MaxInterval = p.Max
	b.Multiplier = p.Multiplier
	b.RandomizationFactor = p.Jitter
	return b
}

// RetryingChatModel 为单次阻塞调用增加重试，最终失败统一包装为 GenerationError
type RetryingChatModel struct {
	provider string
	model    string
	inner    model.BaseChatModel
	policy   RetryPolicy
}

// NewRetryingChatModel 包装已有模型
func NewRetryingChatModel(provider string, inner model.BaseChatModel, policy RetryPolicy) *RetryingChatModel {
	if policy.MaxAttempts < 1 {
		policy.MaxAttempts = 1
	}
	return &RetryingChatModel{provider: provider, inner: inner, policy: policy}
}

// Generate 调用底层模型，仅对瞬时错误重试
func (m *RetryingChatModel) Generate(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.Message, error) {
	if len(input) == 0 {
		return nil, &GenerationError{Provider: m.provider, Attempts: 0, Err: ErrEmptyRequest}
	}

	attempts := 0
	op := func() (*schema.Message, error) {
		attempts++
		out, err := m.inner.Generate(ctx, input, opts...)
		if err == nil {
			return out, nil
		}
		if !IsTransient(ctx, err) {
			return nil, backoff.Permanent(err)
		}
		return nil, err
	}
	notify := func(err error, wait time.Duration) {
		metrics.LLMRetryTotal.WithLabelValues(m.provider).Inc()
		logger.Warn(ctx, "llm call failed, retrying",
			"provider", m.provider,
			"attempt", attempts,
			"wait", wait.String(),
			"error", err.Error(),
		)
	}

	out, err := backoff.Retry(ctx, op,
		backoff.WithBackOff(m.policy.backOff()),
		backoff.WithMaxTries(uint(m.policy.MaxAttempts)),
		backoff.WithMaxElapsedTime(0),
		backoff.WithNotify(notify),
	)
	if st := service.CallStatsFromContext(ctx); st != nil {
		st.Model = m.model
		st.Attempts = attempts
	}
	if err != nil {
		return nil, &GenerationError{Provider: m.provider, Attempts: attempts, Err: err}
	}
	return out, nil
}

// Stream 不做重试，直接透传
func (m *RetryingChatModel) Stream(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	if len(input) == 0 {
		return nil, &GenerationError{Provider: m.provider, Err: ErrEmptyRequest}
	}
	sr, err := m.inner.Stream(ctx, input, opts...)
	if err != nil {
		return nil, &GenerationError{Provider: m.provider, Attempts: 1, Err: err}
	}
	return sr, nil
}
