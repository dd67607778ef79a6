package port

import (
	"context"

	"github.com/cloudwego/eino/components/model"
)

// ChatModelFactory 按提供商名称返回 ChatModel（文本阶段与插图阶段可使用不同提供商）。
// 返回的模型已带重试，最终失败为 llm.GenerationError。
type ChatModelFactory interface {
	Get(ctx context.Context, name string) (model.BaseChatModel, error)
}
