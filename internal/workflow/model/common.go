package model

import "time"

// Fields 阶段之间传递的字段映射（summary/title/characters/story）
type Fields map[string]string

const (
	FieldSummary    = "summary"
	FieldTitle      = "title"
	FieldCharacters = "characters"
	FieldStory      = "story"
)

// Clone 返回浅拷贝，阶段只读取快照
func (f Fields) Clone() Fields {
	out := make(Fields, len(f))
	for k, v := range f {
		out[k] = v
	}
	return out
}

type LLMUsageMeta struct {
	Stage            string
	Provider         string
	Model            string
	PromptTokens     int
	CompletionTokens int
	Attempts         int
	Duration         time.Duration
	GeneratedAt      time.Time
}
