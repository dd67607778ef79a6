// Package wire 提供依赖注入配置
package wire

import (
	"libra-lite/internal/application/story"
	"libra-lite/internal/config"
	"libra-lite/internal/interfaces/http/handler"
	workflowport "libra-lite/internal/workflow/port"
	workflowprompt "libra-lite/internal/workflow/prompt"
)

// ProvidePromptRegistry 内嵌模板注册表
func ProvidePromptRegistry() *workflowprompt.Registry {
	return workflowprompt.NewRegistry()
}

// ProvideStoryService 故事生成应用服务
func ProvideStoryService(cfg *config.Config, factory workflowport.ChatModelFactory, prompts *workflowprompt.Registry) (*story.Service, error) {
	return story.NewService(cfg, factory, prompts)
}

// ProvideHealthHandler 文本提供商为就绪必需项；插图提供商仅在启用插图时检查，失败只降级
func ProvideHealthHandler(cfg *config.Config, factory workflowport.ChatModelFactory) *handler.HealthHandler {
	var optional []string
	if cfg.Pipeline.ImageEnabled && cfg.LLM.ImageProvider != "" {
		optional = append(optional, cfg.LLM.ImageProvider)
	}
	return handler.NewHealthHandler(cfg.App.Version, factory, []string{cfg.LLM.DefaultProvider}, optional)
}

// ProvidePageHandler 页面处理器
func ProvidePageHandler(cfg *config.Config) *handler.PageHandler {
	return handler.NewPageHandler(cfg.App.Title)
}
