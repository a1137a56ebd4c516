// internal/config/config.go
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config 存储进程级配置
type Config struct {
	Port      string `mapstructure:"port"`
	LogDir    string `mapstructure:"log_dir"`
	LogLevel  string `mapstructure:"log_level"`
	LogFormat string `mapstructure:"log_format"`
	DebugMode bool   `mapstructure:"debug_mode"`

	// 新会话的默认设置
	Defaults Settings `mapstructure:"defaults"`

	Inference  InferenceConfig  `mapstructure:"inference"`
	Generation GenerationConfig `mapstructure:"generation"`
	Session    SessionConfig    `mapstructure:"session"`
	Tracing    TracingConfig    `mapstructure:"tracing"`
}

// InferenceConfig 推理服务调用参数
type InferenceConfig struct {
	Provider string        `mapstructure:"provider"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

// GenerationConfig 生成流程参数
type GenerationConfig struct {
	// Concurrent 为 true 时三个阶段并行执行
	Concurrent bool `mapstructure:"concurrent"`
	// RejectEmpty 为 true 时模型返回空文本视为推理失败
	RejectEmpty bool `mapstructure:"reject_empty"`
	// RateLimit 每个会话每分钟允许的生成次数
	RateLimit int `mapstructure:"rate_limit"`
}

// SessionConfig 会话存储参数
type SessionConfig struct {
	CookieName string        `mapstructure:"cookie_name"`
	TTL        time.Duration `mapstructure:"ttl"`
}

// TracingConfig OpenTelemetry 参数
type TracingConfig struct {
	Enabled     bool   `mapstructure:"enabled"`
	Endpoint    string `mapstructure:"endpoint"`
	ServiceName string `mapstructure:"service_name"`
}

// 环境变量到配置键的映射
var envBindings = map[string]string{
	"port":                    "PORT",
	"log_dir":                 "LOG_DIR",
	"log_level":               "LOG_LEVEL",
	"log_format":              "LOG_FORMAT",
	"debug_mode":              "DEBUG_MODE",
	"defaults.user_name":      "DEFAULT_USER_NAME",
	"defaults.api_endpoint":   "OLLAMA_API_URL",
	"defaults.model_name":     "MODEL_NAME",
	"inference.provider":      "LLM_PROVIDER",
	"inference.timeout":       "INFERENCE_TIMEOUT",
	"generation.concurrent":   "GENERATION_CONCURRENT",
	"generation.reject_empty": "GENERATION_REJECT_EMPTY",
	"generation.rate_limit":   "GENERATION_RATE_LIMIT",
	"session.cookie_name":     "SESSION_COOKIE",
	"session.ttl":             "SESSION_TTL",
	"tracing.enabled":         "OTEL_ENABLED",
	"tracing.endpoint":        "OTEL_EXPORTER_OTLP_ENDPOINT",
	"tracing.service_name":    "OTEL_SERVICE_NAME",
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("port", "8080")
	v.SetDefault("log_dir", "")
	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "console")
	v.SetDefault("debug_mode", false)

	v.SetDefault("defaults.user_name", DefaultUserName)
	v.SetDefault("defaults.api_endpoint", DefaultAPIEndpoint)
	v.SetDefault("defaults.model_name", DefaultModelName)

	v.SetDefault("inference.provider", "ollama")
	v.SetDefault("inference.timeout", DefaultInferenceTimeout)

	v.SetDefault("generation.concurrent", false)
	v.SetDefault("generation.reject_empty", false)
	v.SetDefault("generation.rate_limit", 10)

	v.SetDefault("session.cookie_name", "cwc_session")
	v.SetDefault("session.ttl", 12*time.Hour)

	v.SetDefault("tracing.enabled", false)
	v.SetDefault("tracing.endpoint", "localhost:4317")
	v.SetDefault("tracing.service_name", "coffee-with-cinema")
}

// Load 从 .env、可选的 config.yaml 和环境变量加载配置
func Load(configPaths ...string) (*Config, error) {
	// .env 文件可选
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	if len(configPaths) == 0 {
		configPaths = []string{".", "./config"}
	}
	for _, p := range configPaths {
		v.AddConfigPath(p)
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("读取配置文件失败: %w", err)
		}
	}

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for key, env := range envBindings {
		if err := v.BindEnv(key, env); err != nil {
			return nil, fmt.Errorf("绑定环境变量 %s 失败: %w", env, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("解析配置失败: %w", err)
	}

	cfg.Defaults = cfg.Defaults.Normalize()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate 校验进程级配置
func (c *Config) Validate() error {
	if c.Port == "" {
		return errors.New("port 不能为空")
	}
	if c.Inference.Timeout <= 0 {
		return fmt.Errorf("inference.timeout 必须为正数，当前为 %s", c.Inference.Timeout)
	}
	if c.Generation.RateLimit <= 0 {
		return fmt.Errorf("generation.rate_limit 必须为正数，当前为 %d", c.Generation.RateLimit)
	}
	if c.Session.TTL <= 0 {
		return fmt.Errorf("session.ttl 必须为正数，当前为 %s", c.Session.TTL)
	}
	if c.Session.CookieName == "" {
		return errors.New("session.cookie_name 不能为空")
	}
	if err := c.Defaults.Validate(); err != nil {
		return fmt.Errorf("默认会话设置无效: %w", err)
	}
	return nil
}
