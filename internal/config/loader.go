// Package config 提供配置加载功能
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/spf13/viper"

	apperrors "libra-lite/pkg/errors"
)

// DefaultDir 默认配置目录
const DefaultDir = "configs"

var envPattern = regexp.MustCompile(`\${(\w+)(:([^}]*))?}`)

// Load 加载配置文件
// 按优先级加载：默认配置 -> 环境配置 -> 环境变量
func Load() (*Config, error) {
	return LoadFromDir(DefaultDir)
}

// LoadFromDir 从指定目录加载配置
func LoadFromDir(dir string) (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")

	// 1. 加载默认配置
	if err := loadConfigFile(v, filepath.Join(dir, "config.yaml"), false); err != nil {
		return nil, err
	}

	// 2. 加载环境特定配置
	env := os.Getenv("APP_ENV")
	if env == "" {
		env = "development"
	}
	envFile := filepath.Join(dir, fmt.Sprintf("config.%s.yaml", env))
	if err := loadConfigFile(v, envFile, true); err != nil {
		return nil, err
	}

	// 3. 绑定环境变量 (直接覆盖)
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// 设置默认值 (兜底)
	setDefaults(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}

// loadConfigFile 读取文件，执行环境变量替换，并加载到 viper
func loadConfigFile(v *viper.Viper, path string, optional bool) error {
	content, err := os.ReadFile(path)
	if err != nil {
		if optional && os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	expanded := expandEnv(string(content))

	reader := strings.NewReader(expanded)
	if v.ConfigFileUsed() == "" {
		if err := v.ReadConfig(reader); err != nil {
			return fmt.Errorf("failed to read processed config %s: %w", path, err)
		}
		// 手动标记已加载文件，后续文件走 Merge
		v.SetConfigFile(path)
	} else {
		if err := v.MergeConfig(reader); err != nil {
			return fmt.Errorf("failed to merge processed config %s: %w", path, err)
		}
	}

	return nil
}

// expandEnv 替换字符串中的 ${VAR:default} 占位符
// 未定义且无默认值的变量替换为空串，由 Validate 报告缺失
func expandEnv(s string) string {
	return envPattern.ReplaceAllStringFunc(s, func(match string) string {
		submatch := envPattern.FindStringSubmatch(match)
		key := submatch[1]
		hasDefault := submatch[2] != ""
		defVal := submatch[3]

		if val, ok := os.LookupEnv(key); ok {
			return val
		}
		if hasDefault {
			return defVal
		}
		return ""
	})
}

// Validate 校验启动所需的配置，缺失凭据时返回结构化错误
func (c *Config) Validate() error {
	if c.LLM.DefaultProvider == "" {
		return apperrors.ErrConfigInvalid.WithDetail("llm.default_provider is empty")
	}
	if err := c.validateProvider(c.LLM.DefaultProvider); err != nil {
		return err
	}
	if c.Pipeline.ImageEnabled {
		if err := c.validateProvider(c.LLM.ImageProvider); err != nil {
			return err
		}
	}
	switch c.Pipeline.PromptSet {
	case PromptSetClassic, PromptSetLite:
	default:
		return apperrors.ErrConfigInvalid.WithDetail(fmt.Sprintf("unknown pipeline.prompt_set %q", c.Pipeline.PromptSet))
	}
	if c.LLM.Retry.MaxAttempts < 1 {
		return apperrors.ErrConfigInvalid.WithDetail("llm.retry.max_attempts must be >= 1")
	}
	return nil
}

// ValidateImage 校验独立图片生成所需的配置
func (c *Config) ValidateImage() error {
	return c.validateProvider(c.LLM.ImageProvider)
}

func (c *Config) validateProvider(name string) error {
	p, ok := c.LLM.Providers[name]
	if !ok {
		return apperrors.ErrConfigInvalid.WithDetail(fmt.Sprintf("llm provider %q not configured", name))
	}
	if strings.TrimSpace(p.APIKey) == "" {
		return apperrors.ErrConfigInvalid.WithDetail(fmt.Sprintf("llm provider %q: api key missing (set GOOGLE_API_KEY)", name))
	}
	switch p.Kind {
	case ProviderKindOpenAI, ProviderKindGemini, ProviderKindAnthropic:
	default:
		return apperrors.ErrConfigInvalid.WithDetail(fmt.Sprintf("llm provider %q: unknown kind %q", name, p.Kind))
	}
	if p.Model == "" {
		return apperrors.ErrConfigInvalid.WithDetail(fmt.Sprintf("llm provider %q: model missing", name))
	}
	return nil
}

// setDefaults 设置配置默认值
func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "libra-lite")
	v.SetDefault("app.version", "v0.0.0")
	v.SetDefault("app.env", "development")
	v.SetDefault("app.title", "Libra Lite")

	// HTTP 服务器默认值（故事生成耗时较长，写超时放宽）
	v.SetDefault("server.http.host", "0.0.0.0")
	v.SetDefault("server.http.port", 8501)
	v.SetDefault("server.http.read_timeout", "30s")
	v.SetDefault("server.http.write_timeout", "5m")
	v.SetDefault("server.http.idle_timeout", "120s")

	v.SetDefault("llm.default_provider", "gemini")
	v.SetDefault("llm.image_provider", "gemini-image")
	v.SetDefault("llm.retry.max_attempts", 3)
	v.SetDefault("llm.retry.backoff.initial", "500ms")
	v.SetDefault("llm.retry.backoff.max", "8s")
	v.SetDefault("llm.retry.backoff.multiplier", 2.0)
	v.SetDefault("llm.retry.backoff.jitter", 0.5)

	v.SetDefault("pipeline.prompt_set", PromptSetClassic)
	v.SetDefault("pipeline.image_enabled", false)
	v.SetDefault("pipeline.concurrent_image", false)

	v.SetDefault("output.image_path", "generated_cat.jpg")

	v.SetDefault("observability.logging.level", "info")
	v.SetDefault("observability.logging.format", "json")
	v.SetDefault("observability.tracing.enabled", false)
	v.SetDefault("observability.tracing.exporter", "otlp")
	v.SetDefault("observability.tracing.endpoint", "localhost:4317")
	v.SetDefault("observability.tracing.sample_rate", 1.0)
	v.SetDefault("observability.metrics.enabled", true)
	v.SetDefault("observability.metrics.path", "/metrics")

	v.SetDefault("security.cors.allowed_origins", []string{"*"})
	v.SetDefault("security.cors.allowed_methods", []string{"GET", "POST", "OPTIONS"})
	v.SetDefault("security.cors.allowed_headers", []string{"Origin", "Content-Type", "Accept", "X-Request-ID"})
}
