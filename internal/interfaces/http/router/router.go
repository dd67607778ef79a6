// Package router 提供 HTTP 路由配置
package router

import (
	"libra-lite/internal/config"
	"libra-lite/internal/interfaces/http/handler"
	"libra-lite/internal/interfaces/http/middleware"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Router HTTP 路由器
type Router struct {
	engine *gin.Engine
	cfg    *config.Config

	health *handler.HealthHandler
	pages  *handler.PageHandler
	story  *handler.StoryHandler
}

// New 创建新的路由器
func New(cfg *config.Config, health *handler.HealthHandler, pages *handler.PageHandler, story *handler.StoryHandler) *Router {
	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	engine := gin.New()
	engine.SetHTMLTemplate(handler.PageTemplates())

	r := &Router{
		engine: engine,
		cfg:    cfg,
		health: health,
		pages:  pages,
		story:  story,
	}

	r.setupMiddleware()
	r.setupRoutes()

	return r
}

// Engine 返回 Gin Engine
func (r *Router) Engine() *gin.Engine {
	return r.engine
}

// setupMiddleware 配置中间件
func (r *Router) setupMiddleware() {
	r.engine.Use(middleware.Recovery())
	r.engine.Use(middleware.RequestID())
	r.engine.Use(middleware.CORS(r.cfg.Security.CORS))

	if r.cfg.Observability.Tracing.Enabled {
		r.engine.Use(middleware.Trace(r.cfg.App.Name, "/health", "/ready", "/live", r.metricsPath()))
		r.engine.Use(middleware.TraceContext())
	}

	if r.cfg.Observability.Metrics.Enabled {
		r.engine.Use(middleware.Metrics())
	}
}

// setupRoutes 配置路由
func (r *Router) setupRoutes() {
	// 系统端点
	r.engine.GET("/health", r.health.Health)
	r.engine.GET("/ready", r.health.Ready)
	r.engine.GET("/live", r.health.Live)

	if r.cfg.Observability.Metrics.Enabled {
		r.engine.GET(r.metricsPath(), gin.WrapH(promhttp.Handler()))
	}

	// 页面
	r.engine.GET("/", r.pages.Index)
	r.engine.GET("/image", r.pages.Image)

	v1 := r.engine.Group("/v1")
	{
		stories := v1.Group("/stories")
		{
			stories.POST("", r.story.GenerateStory)
			stories.POST("/stream", r.story.StreamStory)
		}

		v1.POST("/images", r.story.GenerateImage)
	}
}

func (r *Router) metricsPath() string {
	if r.cfg.Observability.Metrics.Path == "" {
		return "/metrics"
	}
	return r.cfg.Observability.Metrics.Path
}
