package llm

import (
	"github.com/cloudwego/eino/components/model"
)

// Modality 输出模态
const (
	ModalityText  = "TEXT"
	ModalityImage = "IMAGE"
)

// geminiOptions Gemini 特有的调用选项
type geminiOptions struct {
	ResponseModalities []string
}

// WithResponseModalities 指定响应模态（如 TEXT + IMAGE），仅 gemini 类型的提供商生效
func WithResponseModalities(modalities ...string) model.Option {
	return model.WrapImplSpecificOptFn(func(o *geminiOptions) {
		o.ResponseModalities = append([]string(nil), modalities...)
	})
}
