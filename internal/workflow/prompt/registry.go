package prompt

import (
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"sync"
)

//go:embed templates/*.txt
var templatesFS embed.FS

type PromptID string

const (
	PromptTitleV1      PromptID = "title_v1"
	PromptCharactersV1 PromptID = "characters_v1"
	PromptStoryV1      PromptID = "story_v1"

	PromptTitleV2      PromptID = "title_v2"
	PromptCharactersV2 PromptID = "characters_v2"
	PromptStoryV2      PromptID = "story_v2"

	PromptImageV1       PromptID = "image_v1"
	PromptImagePromptV1 PromptID = "image_prompt_v1"
)

var knownPrompts = map[PromptID]struct{}{
	PromptTitleV1:       {},
	PromptCharactersV1:  {},
	PromptStoryV1:       {},
	PromptTitleV2:       {},
	PromptCharactersV2:  {},
	PromptStoryV2:       {},
	PromptImageV1:       {},
	PromptImagePromptV1: {},
}

// Set 一组文本阶段使用的模板
type Set struct {
	Title      PromptID
	Characters PromptID
	Story      PromptID
}

var sets = map[string]Set{
	"classic": {Title: PromptTitleV1, Characters: PromptCharactersV1, Story: PromptStoryV1},
	"lite":    {Title: PromptTitleV2, Characters: PromptCharactersV2, Story: PromptStoryV2},
}

// SetByName 按名称返回模板集合
func SetByName(name string) (Set, error) {
	s, ok := sets[name]
	if !ok {
		return Set{}, fmt.Errorf("unknown prompt set: %s", name)
	}
	return s, nil
}

type Registry struct {
	mu    sync.RWMutex
	cache map[PromptID]*Template
}

func NewRegistry() *Registry {
	return &Registry{
		cache: make(map[PromptID]*Template),
	}
}

// Template 返回已解析的模板，首次访问时从内嵌文件加载
func (r *Registry) Template(id PromptID) (*Template, error) {
	if r == nil {
		return nil, fmt.Errorf("prompt registry is nil")
	}

	r.mu.RLock()
	if tpl, ok := r.cache[id]; ok {
		r.mu.RUnlock()
		return tpl, nil
	}
	r.mu.RUnlock()

	r.mu.Lock()
	defer r.mu.Unlock()
	if tpl, ok := r.cache[id]; ok {
		return tpl, nil
	}

	systemPath, userPath, err := resolvePromptFiles(id)
	if err != nil {
		return nil, err
	}
	// system 文件可选，缺失时模板只包含 human 消息
	system, err := readEmbeddedText(systemPath)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, err
	}
	user, err := readEmbeddedText(userPath)
	if err != nil {
		return nil, err
	}

	tpl := New(id, system, user)
	r.cache[id] = tpl
	return tpl, nil
}

func resolvePromptFiles(id PromptID) (systemFile string, userFile string, err error) {
	if _, ok := knownPrompts[id]; !ok {
		return "", "", fmt.Errorf("unknown prompt id: %s", id)
	}
	return fmt.Sprintf("templates/%s.system.txt", id), fmt.Sprintf("templates/%s.user.txt", id), nil
}

func readEmbeddedText(path string) (string, error) {
	b, err := templatesFS.ReadFile(path)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(b)), nil
}
