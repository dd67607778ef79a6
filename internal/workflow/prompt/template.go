package prompt

import (
	"context"
	"fmt"
	"regexp"
	"sort"

	einoprompt "github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/schema"
)

var placeholderPattern = regexp.MustCompile(`\{(\w+)\}`)

// MissingFieldError 渲染时缺少模板声明的占位字段
type MissingFieldError struct {
	Template PromptID
	Field    string
}

func (e *MissingFieldError) Error() string {
	return fmt.Sprintf("prompt %s: missing field %q", e.Template, e.Field)
}

// Template 由可选的 system 文本与带占位符的 human 文本组成
type Template struct {
	ID       PromptID
	System   string
	Human    string
	Required []string

	chat einoprompt.ChatTemplate
}

// New 构建模板并解析占位字段
func New(id PromptID, system, human string) *Template {
	msgs := make([]schema.MessagesTemplate, 0, 2)
	if system != "" {
		msgs = append(msgs, schema.SystemMessage(system))
	}
	msgs = append(msgs, schema.UserMessage(human))

	return &Template{
		ID:       id,
		System:   system,
		Human:    human,
		Required: placeholders(system, human),
		chat:     einoprompt.FromMessages(schema.FString, msgs...),
	}
}

// Render 按字段映射填充模板，输出 system（若有）+ human 消息序列
// 字段值原样插入，不做转义；空字符串视为已提供
func (t *Template) Render(ctx context.Context, fields map[string]string) ([]*schema.Message, error) {
	vars := make(map[string]any, len(fields))
	for _, name := range t.Required {
		v, ok := fields[name]
		if !ok {
			return nil, &MissingFieldError{Template: t.ID, Field: name}
		}
		vars[name] = v
	}

	msgs, err := t.chat.Format(ctx, vars)
	if err != nil {
		return nil, fmt.Errorf("format prompt %s: %w", t.ID, err)
	}
	return msgs, nil
}

func placeholders(texts ...string) []string {
	seen := make(map[string]struct{})
	for _, text := range texts {
		for _, m := range placeholderPattern.FindAllStringSubmatch(text, -1) {
			seen[m[1]] = struct{}{}
		}
	}
	out := make([]string, 0, len(seen))
	for name := range seen {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}
