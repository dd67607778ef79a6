package llm

import (
	"context"
	"fmt"
	"sync"

	"github.com/cloudwego/eino-ext/components/model/openai"
	"github.com/cloudwego/eino/components/model"

	"libra-lite/internal/config"
)

// Builder 根据提供商配置构建底层模型
type Builder func(ctx context.Context, name string, cfg config.ProviderConfig) (model.BaseChatModel, error)

// EinoFactory 管理多个 Eino ChatModel 客户端实例，每个实例均带重试
type EinoFactory struct {
	config   *config.LLMConfig
	policy   RetryPolicy
	builders map[string]Builder
	models   map[string]model.BaseChatModel
	mu       sync.RWMutex
}

// NewEinoFactory 创建 Eino LLM 工厂
func NewEinoFactory(cfg *config.Config) *EinoFactory {
	return &EinoFactory{
		config: &cfg.LLM,
		policy: RetryPolicyFromConfig(cfg.LLM.Retry),
		builders: map[string]Builder{
			config.ProviderKindOpenAI:    buildOpenAI,
			config.ProviderKindGemini:    buildGemini,
			config.ProviderKindAnthropic: buildClaude,
		},
		models: make(map[string]model.BaseChatModel),
	}
}

// RegisterBuilder 覆盖或新增某类提供商的构建函数
func (f *EinoFactory) RegisterBuilder(kind string, b Builder) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.builders[kind] = b
}

// Get 获取指定名称的 ChatModel，如果未指定则返回默认客户端
func (f *EinoFactory) Get(ctx context.Context, name string) (model.BaseChatModel, error) {
	if name == "" {
		name = f.config.DefaultProvider
	}

	f.mu.RLock()
	m, ok := f.models[name]
	f.mu.RUnlock()
	if ok {
		return m, nil
	}

	// 惰性加载
	f.mu.Lock()
	defer f.mu.Unlock()

	if m, ok = f.models[name]; ok {
		return m, nil
	}

	providerCfg, ok := f.config.Providers[name]
	if !ok {
		return nil, fmt.Errorf("provider %s not found in LLM config", name)
	}
	kind := providerCfg.Kind
	if kind == "" {
		kind = config.ProviderKindOpenAI
	}
	build, ok := f.builders[kind]
	if !ok {
		return nil, fmt.Errorf("provider %s: unsupported kind %q", name, kind)
	}

	inner, err := build(ctx, name, providerCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create chat model for %s: %w", name, err)
	}

	rm := NewRetryingChatModel(name, inner, f.policy)
	rm.model = providerCfg.Model
	f.models[name] = rm
	return rm, nil
}

// buildOpenAI 使用 Eino 的 OpenAI 适配器，可对接任意 OpenAI 兼容端点
func buildOpenAI(ctx context.Context, _ string, cfg config.ProviderConfig) (model.BaseChatModel, error) {
	occ := &openai.ChatModelConfig{
		APIKey:      cfg.APIKey,
		BaseURL:     cfg.BaseURL,
		Model:       cfg.Model,
		Temperature: temperature(cfg),
		Timeout:     cfg.Timeout,
	}
	if cfg.MaxTokens > 0 {
		occ.MaxTokens = &cfg.MaxTokens
	}
	return openai.NewChatModel(ctx, occ)
}

func buildGemini(_ context.Context, _ string, cfg config.ProviderConfig) (model.BaseChatModel, error) {
	return NewGeminiChatModel(GeminiConfig{
		APIKey:      cfg.APIKey,
		BaseURL:     cfg.BaseURL,
		Model:       cfg.Model,
		MaxTokens:   cfg.MaxTokens,
		Temperature: temperature(cfg),
		Timeout:     cfg.Timeout,
	})
}

func buildClaude(_ context.Context, _ string, cfg config.ProviderConfig) (model.BaseChatModel, error) {
	return NewClaudeChatModel(ClaudeConfig{
		APIKey:      cfg.APIKey,
		BaseURL:     cfg.BaseURL,
		Model:       cfg.Model,
		MaxTokens:   cfg.MaxTokens,
		Temperature: temperature(cfg),
		Timeout:     cfg.Timeout,
	})
}

// temperature 配置为 0 时交给提供商默认值
func temperature(cfg config.ProviderConfig) *float32 {
	if cfg.Temperature <= 0 {
		return nil
	}
	t := float32(cfg.Temperature)
	return &t
}
