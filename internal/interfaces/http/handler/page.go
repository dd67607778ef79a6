package handler

import (
	"embed"
	"html/template"
	"net/http"

	"github.com/gin-gonic/gin"

	storyapp "libra-lite/internal/application/story"
)

//go:embed templates/*.html
var templateFS embed.FS

// PageTemplates 返回内嵌的页面模板，供 gin.Engine.SetHTMLTemplate 使用
func PageTemplates() *template.Template {
	return template.Must(template.ParseFS(templateFS, "templates/*.html"))
}

// PageHandler 浏览器页面
type PageHandler struct {
	appName string
}

// NewPageHandler 创建页面处理器
func NewPageHandler(appName string) *PageHandler {
	if appName == "" {
		appName = "Libra Lite"
	}
	return &PageHandler{appName: appName}
}

// Index 故事生成页：一个输入框和一个按钮
func (h *PageHandler) Index(c *gin.Context) {
	c.HTML(http.StatusOK, "index.html", gin.H{
		"Title":   h.appName,
		"Summary": c.Query("summary"),
	})
}

// Image 独立图片生成页
func (h *PageHandler) Image(c *gin.Context) {
	prompt := c.Query("prompt")
	if prompt == "" {
		prompt = storyapp.DefaultImagePrompt
	}
	c.HTML(http.StatusOK, "image.html", gin.H{
		"Title":  h.appName + " Image",
		"Prompt": prompt,
	})
}
