// Package config 提供配置加载和管理功能
package config

import (
	"time"
)

// Config 应用配置根结构
type Config struct {
	App           AppConfig           `yaml:"app" mapstructure:"app"`
	Server        ServerConfig        `yaml:"server" mapstructure:"server"`
	LLM           LLMConfig           `yaml:"llm" mapstructure:"llm"`
	Pipeline      PipelineConfig      `yaml:"pipeline" mapstructure:"pipeline"`
	Output        OutputConfig        `yaml:"output" mapstructure:"output"`
	Observability ObservabilityConfig `yaml:"observability" mapstructure:"observability"`
	Security      SecurityConfig      `yaml:"security" mapstructure:"security"`
}

// AppConfig 应用基础配置
type AppConfig struct {
	Name    string `yaml:"name" mapstructure:"name"`
	Version string `yaml:"version" mapstructure:"version"`
	Env     string `yaml:"env" mapstructure:"env"`
	// Title 页面标题
	Title string `yaml:"title" mapstructure:"title"`
}

// ServerConfig 服务器配置
type ServerConfig struct {
	HTTP HTTPServerConfig `yaml:"http" mapstructure:"http"`
}

// HTTPServerConfig HTTP 服务器配置
type HTTPServerConfig struct {
	Host         string        `yaml:"host" mapstructure:"host"`
	Port         int           `yaml:"port" mapstructure:"port"`
	ReadTimeout  time.Duration `yaml:"read_timeout" mapstructure:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout" mapstructure:"write_timeout"`
	IdleTimeout  time.Duration `yaml:"idle_timeout" mapstructure:"idle_timeout"`
}

// Provider 类型
const (
	ProviderKindOpenAI    = "openai"
	ProviderKindGemini    = "gemini"
	ProviderKindAnthropic = "anthropic"
)

// LLMConfig LLM 配置
type LLMConfig struct {
	// DefaultProvider 文本阶段（标题/角色/故事）使用的提供商
	DefaultProvider string `yaml:"default_provider" mapstructure:"default_provider"`
	// ImageProvider 图片阶段使用的提供商，需支持多模态输出
	ImageProvider string                    `yaml:"image_provider" mapstructure:"image_provider"`
	Providers     map[string]ProviderConfig `yaml:"providers" mapstructure:"providers"`
	Retry         RetryConfig               `yaml:"retry" mapstructure:"retry"`
}

// ProviderConfig LLM 提供商配置
type ProviderConfig struct {
	// Kind 取值 openai / gemini / anthropic
	Kind        string        `yaml:"kind" mapstructure:"kind"`
	APIKey      string        `yaml:"api_key" mapstructure:"api_key"`
	BaseURL     string        `yaml:"base_url" mapstructure:"base_url"`
	Model       string        `yaml:"model" mapstructure:"model"`
	MaxTokens   int           `yaml:"max_tokens" mapstructure:"max_tokens"`
	Temperature float64       `yaml:"temperature" mapstructure:"temperature"`
	Timeout     time.Duration `yaml:"timeout" mapstructure:"timeout"`
}

// RetryConfig 模型调用重试配置
type RetryConfig struct {
	// MaxAttempts 总尝试次数（含首次调用）
	MaxAttempts int           `yaml:"max_attempts" mapstructure:"max_attempts"`
	Backoff     BackoffConfig `yaml:"backoff" mapstructure:"backoff"`
}

// BackoffConfig 退避配置
type BackoffConfig struct {
	Initial    time.Duration `yaml:"initial" mapstructure:"initial"`
	Max        time.Duration `yaml:"max" mapstructure:"max"`
	Multiplier float64       `yaml:"multiplier" mapstructure:"multiplier"`
	Jitter     float64       `yaml:"jitter" mapstructure:"jitter"`
}

// Prompt 集合
const (
	PromptSetClassic = "classic"
	PromptSetLite    = "lite"
)

// PipelineConfig 生成流水线配置
type PipelineConfig struct {
	// PromptSet 取值 classic / lite
	PromptSet string `yaml:"prompt_set" mapstructure:"prompt_set"`
	// ImageEnabled 是否在故事之后追加插图阶段
	ImageEnabled bool `yaml:"image_enabled" mapstructure:"image_enabled"`
	// ConcurrentImage 标题产出后即并发生成插图
	ConcurrentImage bool `yaml:"concurrent_image" mapstructure:"concurrent_image"`
	// StoryMaxTokens 故事阶段的输出上限，0 表示使用提供商默认值
	StoryMaxTokens int `yaml:"story_max_tokens" mapstructure:"story_max_tokens"`
}

// OutputConfig 输出配置
type OutputConfig struct {
	// ImagePath 独立图片生成命令写入的文件
	ImagePath string `yaml:"image_path" mapstructure:"image_path"`
}

// ObservabilityConfig 可观测性配置
type ObservabilityConfig struct {
	Logging LoggingConfig `yaml:"logging" mapstructure:"logging"`
	Tracing TracingConfig `yaml:"tracing" mapstructure:"tracing"`
	Metrics MetricsConfig `yaml:"metrics" mapstructure:"metrics"`
}

// LoggingConfig 日志配置
type LoggingConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// TracingConfig 追踪配置
type TracingConfig struct {
	Enabled    bool    `yaml:"enabled" mapstructure:"enabled"`
	Exporter   string  `yaml:"exporter" mapstructure:"exporter"`
	Endpoint   string  `yaml:"endpoint" mapstructure:"endpoint"`
	SampleRate float64 `yaml:"sample_rate" mapstructure:"sample_rate"`
}

// MetricsConfig 指标配置
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled" mapstructure:"enabled"`
	Path    string `yaml:"path" mapstructure:"path"`
}

// SecurityConfig 安全配置
type SecurityConfig struct {
	CORS CORSConfig `yaml:"cors" mapstructure:"cors"`
}

// CORSConfig CORS 配置
type CORSConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins" mapstructure:"allowed_origins"`
	AllowedMethods []string `yaml:"allowed_methods" mapstructure:"allowed_methods"`
	AllowedHeaders []string `yaml:"allowed_headers" mapstructure:"allowed_headers"`
}

// TextProvider 返回文本阶段的提供商配置
func (c *Config) TextProvider() (string, ProviderConfig, bool) {
	p, ok := c.LLM.Providers[c.LLM.DefaultProvider]
	return c.LLM.DefaultProvider, p, ok
}
