package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/cloudwego/eino/callbacks"
	"github.com/cloudwego/eino/components"
	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/tidwall/gjson"
)

const defaultGeminiBaseURL = "https://generativelanguage.googleapis.com/v1beta"

// GeminiConfig 原生 Gemini generateContent 接口配置
type GeminiConfig struct {
	APIKey      string
	BaseURL     string
	Model       string
	MaxTokens   int
	Temperature *float32
	Timeout     time.Duration
	HTTPClient  *http.Client
}

// GeminiChatModel 通过 REST 调用 Gemini，支持图片输出
type GeminiChatModel struct {
	cfg    GeminiConfig
	client *http.Client
}

// NewGeminiChatModel 创建 Gemini 模型
func NewGeminiChatModel(cfg GeminiConfig) (*GeminiChatModel, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("gemini: api key is required")
	}
	if cfg.Model == "" {
		return nil, fmt.Errorf("gemini: model is required")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultGeminiBaseURL
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")

	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: cfg.Timeout}
	}
	return &GeminiChatModel{cfg: cfg, client: client}, nil
}

func (m *GeminiChatModel) GetType() string { return "Gemini" }

func (m *GeminiChatModel) IsCallbacksEnabled() bool { return true }

type geminiPart struct {
	Text string `json:"text,omitempty"`
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts"`
}

type geminiGenerationConfig struct {
	Temperature        *float32 `json:"temperature,omitempty"`
	MaxOutputTokens    *int     `json:"maxOutputTokens,omitempty"`
	ResponseModalities []string `json:"responseModalities,omitempty"`
}

type geminiRequest struct {
	Contents          []geminiContent         `json:"contents"`
	SystemInstruction *geminiContent          `json:"systemInstruction,omitempty"`
	GenerationConfig  *geminiGenerationConfig `json:"generationConfig,omitempty"`
}

// Generate 发送一次 generateContent 请求
func (m *GeminiChatModel) Generate(ctx context.Context, input []*schema.Message, opts ...model.Option) (out *schema.Message, err error) {
	common := model.GetCommonOptions(&model.Options{
		Model:       &m.cfg.Model,
		Temperature: m.cfg.Temperature,
	}, opts...)
	if m.cfg.MaxTokens > 0 && common.MaxTokens == nil {
		common.MaxTokens = &m.cfg.MaxTokens
	}
	specific := model.GetImplSpecificOptions(&geminiOptions{}, opts...)

	conf := &model.Config{Model: *common.Model}
	if common.MaxTokens != nil {
		conf.MaxTokens = *common.MaxTokens
	}
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

	body := buildGeminiRequest(input, common, specific)
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("gemini: encode request: %w", err)
	}

	url := fmt.Sprintf("%s/models/%s:generateContent", m.cfg.BaseURL, *common.Model)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("gemini: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-goog-api-key", m.cfg.APIKey)

	resp, err := m.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("gemini: request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("gemini: read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &StatusError{
			Provider:   "gemini",
			StatusCode: resp.StatusCode,
			Message:    gjson.GetBytes(raw, "error.message").String(),
		}
	}

	out, usage, err := parseGeminiResponse(raw)
	if err != nil {
		return nil, err
	}

	callbacks.OnEnd(ctx, &model.CallbackOutput{Message: out, Config: conf, TokenUsage: usage})
	return out, nil
}

// Stream 以单个分片返回完整响应
func (m *GeminiChatModel) Stream(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	out, err := m.Generate(ctx, input, opts...)
	if err != nil {
		return nil, err
	}
	return schema.StreamReaderFromArray([]*schema.Message{out}), nil
}

func buildGeminiRequest(input []*schema.Message, common *model.Options, specific *geminiOptions) *geminiRequest {
	req := &geminiRequest{}
	var system []geminiPart
	for _, msg := range input {
		if msg == nil {
			continue
		}
		switch msg.Role {
		case schema.System:
			system = append(system, geminiPart{Text: msg.Content})
		case schema.Assistant:
			req.Contents = append(req.Contents, geminiContent{Role: "model", Parts: []geminiPart{{Text: msg.Content}}})
		default:
			req.Contents = append(req.Contents, geminiContent{Role: "user", Parts: []geminiPart{{Text: msg.Content}}})
		}
	}
	if len(system) > 0 {
		req.SystemInstruction = &geminiContent{Parts: system}
	}

	gen := &geminiGenerationConfig{
		Temperature:        common.Temperature,
		MaxOutputTokens:    common.MaxTokens,
		ResponseModalities: specific.ResponseModalities,
	}
	if gen.Temperature != nil || gen.MaxOutputTokens != nil || len(gen.ResponseModalities) > 0 {
		req.GenerationConfig = gen
	}
	return req
}

// parseGeminiResponse 将首个候选的文本与内联图片转换为消息内容块
func parseGeminiResponse(raw []byte) (*schema.Message, *model.TokenUsage, error) {
	if !gjson.ValidBytes(raw) {
		return nil, nil, fmt.Errorf("gemini: invalid json response")
	}
	doc := gjson.ParseBytes(raw)
	candidate := doc.Get("candidates.0")
	if !candidate.Exists() {
		reason := doc.Get("promptFeedback.blockReason").String()
		if reason != "" {
			return nil, nil, fmt.Errorf("gemini: prompt blocked: %s", reason)
		}
		return nil, nil, fmt.Errorf("gemini: response has no candidates")
	}

	msg := &schema.Message{Role: schema.Assistant}
	var text strings.Builder
	candidate.Get("content.parts").ForEach(func(_, part gjson.Result) bool {
		if t := part.Get("text"); t.Exists() {
			text.WriteString(t.String())
			msg.MultiContent = append(msg.MultiContent, schema.ChatMessagePart{
				Type: schema.ChatMessagePartTypeText,
				Text: t.String(),
			})
			return true
		}
		inline := part.Get("inlineData")
		if !inline.Exists() {
			inline = part.Get("inline_data")
		}
		if inline.Exists() {
			mime := inline.Get("mimeType").String()
			if mime == "" {
				mime = inline.Get("mime_type").String()
			}
			msg.MultiContent = append(msg.MultiContent, schema.ChatMessagePart{
				Type: schema.ChatMessagePartTypeImageURL,
				ImageURL: &schema.ChatMessageImageURL{
					URL:      fmt.Sprintf("data:%s;base64,%s", mime, inline.Get("data").String()),
					MIMEType: mime,
				},
			})
		}
		return true
	})
	msg.Content = text.String()

	usage := &model.TokenUsage{
		PromptTokens:     int(doc.Get("usageMetadata.promptTokenCount").Int()),
		CompletionTokens: int(doc.Get("usageMetadata.candidatesTokenCount").Int()),
		TotalTokens:      int(doc.Get("usageMetadata.totalTokenCount").Int()),
	}
	msg.ResponseMeta = &schema.ResponseMeta{
		FinishReason: candidate.Get("finishReason").String(),
		Usage: &schema.TokenUsage{
			PromptTokens:     usage.PromptTokens,
			CompletionTokens: usage.CompletionTokens,
			TotalTokens:      usage.TotalTokens,
		},
	}
	return msg, usage, nil
}
