//go:build wireinject
// +build wireinject

package wire

import (
	"context"

	"github.com/google/wire"

	"libra-lite/internal/application/story"
	"libra-lite/internal/config"
	"libra-lite/internal/infrastructure/llm"
	"libra-lite/internal/interfaces/http/handler"
	"libra-lite/internal/interfaces/http/router"
	workflowport "libra-lite/internal/workflow/port"
)

// InitializeApp 初始化 Web 应用（带路由器）
func InitializeApp(ctx context.Context, cfg *config.Config) (*router.Router, func(), error) {
	wire.Build(
		LLMSet,
		StorySet,
		RouterSet,
	)
	return nil, nil, nil
}

// InitializeStoryService 初始化命令行入口使用的应用服务
func InitializeStoryService(ctx context.Context, cfg *config.Config) (*story.Service, error) {
	wire.Build(
		LLMSet,
		StorySet,
	)
	return nil, nil
}

// LLMSet 模型工厂（带重试包装）
var LLMSet = wire.NewSet(
	llm.NewEinoFactory,
	wire.Bind(new(workflowport.ChatModelFactory), new(*llm.EinoFactory)),
)

// StorySet 模板注册表与故事服务
var StorySet = wire.NewSet(
	ProvidePromptRegistry,
	ProvideStoryService,
)

// RouterSet HTTP 处理器与路由
var RouterSet = wire.NewSet(
	ProvideHealthHandler,
	ProvidePageHandler,
	handler.NewStoryHandler,
	wire.Bind(new(handler.StoryGenerator), new(*story.Service)),
	router.New,
)
