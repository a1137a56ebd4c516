// internal/config/settings.go
package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"
)

const (
	DefaultUserName    = "Director"
	DefaultAPIEndpoint = "http://localhost:11434/api/generate"
	DefaultModelName   = "granite4:micro"

	DefaultInferenceTimeout = 300 * time.Second
)

// Settings 是单个会话可编辑的设置
type Settings struct {
	UserName    string `json:"user_name" mapstructure:"user_name"`
	APIEndpoint string `json:"api_endpoint" mapstructure:"api_endpoint"`
	ModelName   string `json:"model_name" mapstructure:"model_name"`
}

// DefaultSettings 返回内置默认设置
func DefaultSettings() Settings {
	return Settings{
		UserName:    DefaultUserName,
		APIEndpoint: DefaultAPIEndpoint,
		ModelName:   DefaultModelName,
	}
}

// Normalize 去除首尾空白，空字段回退到默认值
func (s Settings) Normalize() Settings {
	return s.NormalizeWith(DefaultSettings())
}

// NormalizeWith 与 Normalize 相同，但使用给定的回退值
func (s Settings) NormalizeWith(fallback Settings) Settings {
	out := Settings{
		UserName:    strings.TrimSpace(s.UserName),
		APIEndpoint: strings.TrimSpace(s.APIEndpoint),
		ModelName:   strings.TrimSpace(s.ModelName),
	}
	if out.UserName == "" {
		out.UserName = fallback.UserName
	}
	if out.APIEndpoint == "" {
		out.APIEndpoint = fallback.APIEndpoint
	}
	if out.ModelName == "" {
		out.ModelName = fallback.ModelName
	}
	return out
}

var (
	ErrEmptyEndpoint   = errors.New("api endpoint must not be empty")
	ErrInvalidEndpoint = errors.New("api endpoint must be an absolute http or https URL")
	ErrEmptyModel      = errors.New("model name must not be empty")
)

// Validate 校验推理所需字段
func (s Settings) Validate() error {
	endpoint := strings.TrimSpace(s.APIEndpoint)
	if endpoint == "" {
		return ErrEmptyEndpoint
	}
	u, err := url.Parse(endpoint)
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return fmt.Errorf("%w: %q", ErrInvalidEndpoint, endpoint)
	}
	if strings.TrimSpace(s.ModelName) == "" {
		return ErrEmptyModel
	}
	return nil
}
