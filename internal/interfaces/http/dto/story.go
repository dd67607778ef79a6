package dto

import (
	"bytes"
	"encoding/base64"
	stdhtml "html"
	"time"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/renderer/html"

	wfmodel "libra-lite/internal/workflow/model"
)

// 默认不输出原始 HTML，模型返回的标签会被转义
var markdown = goldmark.New(goldmark.WithRendererOptions(html.WithHardWraps()))

// GenerateStoryRequest 故事生成请求；摘要为空时返回 warning 而不是 400
type GenerateStoryRequest struct {
	Summary string `json:"summary" form:"summary"`
}

// GenerateImageRequest 独立图片生成请求
type GenerateImageRequest struct {
	Prompt string `json:"prompt" form:"prompt"`
}

// ImageResponse 插图，data 为 base64 编码
type ImageResponse struct {
	MIMEType string `json:"mime_type"`
	Data     string `json:"data"`
	DataURL  string `json:"data_url"`
}

// StoryResponse 一次运行的完整产物
type StoryResponse struct {
	RunID          string         `json:"run_id"`
	Summary        string         `json:"summary"`
	Title          string         `json:"title"`
	Characters     string         `json:"characters"`
	CharactersHTML string         `json:"characters_html"`
	Story          string         `json:"story"`
	StoryHTML      string         `json:"story_html"`
	Image          *ImageResponse `json:"image,omitempty"`
	ImageError     string         `json:"image_error,omitempty"`
	State          string         `json:"state"`
	DurationMs     int64          `json:"duration_ms"`
	Usage          []UsageItem    `json:"usage,omitempty"`
}

// UsageItem 单阶段调用统计
type UsageItem struct {
	Stage            string `json:"stage"`
	Provider         string `json:"provider"`
	Model            string `json:"model,omitempty"`
	Attempts         int    `json:"attempts"`
	PromptTokens     int    `json:"prompt_tokens"`
	CompletionTokens int    `json:"completion_tokens"`
	DurationMs       int64  `json:"duration_ms"`
}

// StageTextEvent SSE 文本阶段事件负载
type StageTextEvent struct {
	Text string `json:"text"`
	HTML string `json:"html,omitempty"`
}

// StateEvent SSE 状态迁移事件负载
type StateEvent struct {
	State string `json:"state"`
}

// MessageEvent SSE warning / error / image_failed 事件负载
type MessageEvent struct {
	Message   string `json:"message"`
	ErrorCode string `json:"error_code,omitempty"`
	Details   string `json:"details,omitempty"`
}

// DoneEvent SSE 结束事件负载
type DoneEvent struct {
	RunID      string `json:"run_id"`
	State      string `json:"state"`
	DurationMs int64  `json:"duration_ms"`
}

// ToStoryResponse 将产物转换为响应；故事与角色同时给出 markdown 渲染后的 HTML
func ToStoryResponse(art *wfmodel.StoryArtifact) *StoryResponse {
	if art == nil {
		return nil
	}
	resp := &StoryResponse{
		RunID:          art.RunID,
		Summary:        art.Summary,
		Title:          art.Title,
		Characters:     art.Characters,
		CharactersHTML: RenderMarkdown(art.Characters),
		Story:          art.Story,
		StoryHTML:      RenderMarkdown(art.Story),
		Image:          ToImageResponse(art.Image),
		ImageError:     art.ImageError,
		State:          string(art.State),
	}
	if !art.FinishedAt.IsZero() {
		resp.DurationMs = art.FinishedAt.Sub(art.StartedAt).Milliseconds()
	}
	for _, u := range art.Usage {
		resp.Usage = append(resp.Usage, UsageItem{
			Stage:            u.Stage,
			Provider:         u.Provider,
			Model:            u.Model,
			Attempts:         u.Attempts,
			PromptTokens:     u.PromptTokens,
			CompletionTokens: u.CompletionTokens,
			DurationMs:       u.Duration.Milliseconds(),
		})
	}
	return resp
}

// ToImageResponse 图片为空时返回 nil
func ToImageResponse(img *wfmodel.Image) *ImageResponse {
	if img == nil || len(img.Data) == 0 {
		return nil
	}
	data := base64.StdEncoding.EncodeToString(img.Data)
	return &ImageResponse{
		MIMEType: img.MIMEType,
		Data:     data,
		DataURL:  "data:" + img.MIMEType + ";base64," + data,
	}
}

// ToDoneEvent 运行结束事件
func ToDoneEvent(art *wfmodel.StoryArtifact) DoneEvent {
	ev := DoneEvent{RunID: art.RunID, State: string(art.State)}
	finished := art.FinishedAt
	if finished.IsZero() {
		finished = time.Now()
	}
	ev.DurationMs = finished.Sub(art.StartedAt).Milliseconds()
	return ev
}

// RenderMarkdown 渲染失败时退回转义后的原文
func RenderMarkdown(src string) string {
	if src == "" {
		return ""
	}
	var buf bytes.Buffer
	if err := markdown.Convert([]byte(src), &buf); err != nil {
		return stdhtml.EscapeString(src)
	}
	return buf.String()
}
