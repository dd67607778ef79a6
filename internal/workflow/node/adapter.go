package node

import (
	"fmt"
	"strings"

	"github.com/cloudwego/eino/schema"

	wfmodel "libra-lite/internal/workflow/model"
)

// TextAdapter 将模型响应转换为下一个阶段的字段映射
type TextAdapter func(msg *schema.Message) (wfmodel.Fields, error)

// EmptyOutputError 模型返回内容去除空白后为空
type EmptyOutputError struct {
	Field string
}

func (e *EmptyOutputError) Error() string {
	return fmt.Sprintf("model returned empty %s", e.Field)
}

// AdaptTitle 响应文本去除首尾空白后作为 {title}
func AdaptTitle(msg *schema.Message) (wfmodel.Fields, error) {
	return adaptText(msg, wfmodel.FieldTitle)
}

// AdaptCharacters 响应文本去除首尾空白后作为 {characters}
func AdaptCharacters(msg *schema.Message) (wfmodel.Fields, error) {
	return adaptText(msg, wfmodel.FieldCharacters)
}

// AdaptStory 响应文本去除首尾空白后作为 {story}
func AdaptStory(msg *schema.Message) (wfmodel.Fields, error) {
	return adaptText(msg, wfmodel.FieldStory)
}

func adaptText(msg *schema.Message, field string) (wfmodel.Fields, error) {
	text := strings.TrimSpace(MessageText(msg))
	if text == "" {
		return nil, &EmptyOutputError{Field: field}
	}
	return wfmodel.Fields{field: text}, nil
}
