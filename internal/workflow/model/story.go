package model

import (
	"time"
)

// RunState 一次生成运行所处的阶段
type RunState string

const (
	StateIdle                RunState = "idle"
	StateTitleRequested      RunState = "title_requested"
	StateTitleReceived       RunState = "title_received"
	StateCharactersRequested RunState = "characters_requested"
	StateCharactersReceived  RunState = "characters_received"
	StateStoryRequested      RunState = "story_requested"
	StateStoryReceived       RunState = "story_received"
	StateImageRequested      RunState = "image_requested"
	StateImageReceived       RunState = "image_received"
	StateImageFailed         RunState = "image_failed"
	StateComplete            RunState = "complete"
	StateFailed              RunState = "failed"
)

// Terminal 是否为终止状态
func (s RunState) Terminal() bool {
	return s == StateComplete || s == StateFailed
}

// Image 解码后的插图
type Image struct {
	Data     []byte `json:"-"`
	MIMEType string `json:"mime_type"`
}

// StoryArtifact 一次运行的全部产物，仅保存在内存中
type StoryArtifact struct {
	RunID      string         `json:"run_id"`
	Summary    string         `json:"summary"`
	Title      string         `json:"title"`
	Characters string         `json:"characters"`
	Story      string         `json:"story"`
	Image      *Image         `json:"image,omitempty"`
	ImageError string         `json:"image_error,omitempty"`
	State      RunState       `json:"state"`
	Usage      []LLMUsageMeta `json:"-"`
	StartedAt  time.Time      `json:"started_at"`
	FinishedAt time.Time      `json:"finished_at"`
}

// EventKind 推送给展示层的事件类型
type EventKind string

const (
	EventState       EventKind = "state"
	EventTitle       EventKind = "title"
	EventCharacters  EventKind = "characters"
	EventStory       EventKind = "story"
	EventImage       EventKind = "image"
	EventImageFailed EventKind = "image_failed"
)

// Event 阶段完成或状态迁移时产生的事件
type Event struct {
	Kind  EventKind
	State RunState
	Text  string
	Image *Image
	Err   error
}
