package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/cloudwego/eino/callbacks"
	"github.com/cloudwego/eino/components"
	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
)

const defaultClaudeMaxTokens = 4096

// ClaudeConfig Anthropic Messages 接口配置
type ClaudeConfig struct {
	APIKey      string
	BaseURL     string
	Model       string
	MaxTokens   int
	Temperature *float32
	Timeout     time.Duration
}

// ClaudeChatModel 基于 anthropic-sdk-go 的文本模型
type ClaudeChatModel struct {
	cfg    ClaudeConfig
	client *anthropic.Client
}

// NewClaudeChatModel 创建 Claude 模型；SDK 自带重试关闭，由 RetryingChatModel 统一处理
func NewClaudeChatModel(cfg ClaudeConfig) (*ClaudeChatModel, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("anthropic: api key is required")
	}
	if cfg.Model == "" {
		cfg.Model = string(anthropic.ModelClaude3_5SonnetLatest)
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = defaultClaudeMaxTokens
	}

	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithMaxRetries(0),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	if cfg.Timeout > 0 {
		opts = append(opts, option.WithRequestTimeout(cfg.Timeout))
	}
	return &ClaudeChatModel{cfg: cfg, client: anthropic.NewClient(opts...)}, nil
}

func (m *ClaudeChatModel) GetType() string { return "Claude" }

func (m *ClaudeChatModel) IsCallbacksEnabled() bool { return true }

// Generate 调用 Messages API
func (m *ClaudeChatModel) Generate(ctx context.Context, input []*schema.Message, opts ...model.Option) (out *schema.Message, err error) {
	common := model.GetCommonOptions(&model.Options{
		Model:       &m.cfg.Model,
		MaxTokens:   &m.cfg.MaxTokens,
		Temperature: m.cfg.Temperature,
	}, opts...)

	conf := &model.Config{Model: *common.Model, MaxTokens: *common.MaxTokens}
	if common.Temperature != nil {
		conf.Temperature = *common.Temperature
	}

	ctx = callbacks.EnsureRunInfo(ctx, m.GetType(), components.ComponentOfChatModel)
	ctx = callbacks.OnStart(ctx, &model.CallbackInput{Messages: input, Config: conf})
	defer func() {
		if err != nil {
			callbacks.OnError(ctx, err)
		}
	}()

	params := anthropic.MessageNewParams{
		Model:     anthropic.F(anthropic.Model(conf.Model)),
		MaxTokens: anthropic.F(int64(conf.MaxTokens)),
	}
	if common.Temperature != nil {
		params.Temperature = anthropic.F(float64(*common.Temperature))
	}

	var system []anthropic.TextBlockParam
	var messages []anthropic.MessageParam
	for _, msg := range input {
		if msg == nil {
			continue
		}
		switch msg.Role {
		case schema.System:
			system = append(system, anthropic.NewTextBlock(msg.Content))
		case schema.Assistant:
			messages = append(messages, anthropic.NewAssistantMessage(anthropic.NewTextBlock(msg.Content)))
		default:
			messages = append(messages, anthropic.NewUserMessage(anthropic.NewTextBlock(msg.Content)))
		}
	}
	if len(system) > 0 {
		params.System = anthropic.F(system)
	}
	params.Messages = anthropic.F(messages)

	resp, err := m.client.Messages.New(ctx, params)
	if err != nil {
		var apiErr *anthropic.Error
		if errors.As(err, &apiErr) {
			return nil, &StatusError{Provider: "anthropic", StatusCode: apiErr.StatusCode, Message: apiErr.Error()}
		}
		return nil, fmt.Errorf("anthropic: %w", err)
	}

	var text strings.Builder
	for _, block := range resp.Content {
		text.WriteString(block.Text)
	}
	usage := &model.TokenUsage{
		PromptTokens:     int(resp.Usage.InputTokens),
		CompletionTokens: int(resp.Usage.OutputTokens),
		TotalTokens:      int(resp.Usage.InputTokens + resp.Usage.OutputTokens),
	}
	out = &schema.Message{
		Role:    schema.Assistant,
		Content: text.String(),
		ResponseMeta: &schema.ResponseMeta{
			FinishReason: string(resp.StopReason),
			Usage: &schema.TokenUsage{
				PromptTokens:     usage.PromptTokens,
				CompletionTokens: usage.CompletionTokens,
				TotalTokens:      usage.TotalTokens,
			},
		},
	}

	callbacks.OnEnd(ctx, &model.CallbackOutput{Message: out, Config: conf, TokenUsage: usage})
	return out, nil
}

// Stream 以单个分片返回完整响应
func (m *ClaudeChatModel) Stream(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	out, err := m.Generate(ctx, input, opts...)
	if err != nil {
		return nil, err
	}
	return schema.StreamReaderFromArray([]*schema.Message{out}), nil
}
