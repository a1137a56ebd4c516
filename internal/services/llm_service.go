// internal/services/llm_service.go
package services

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/Corphon/CoffeeWithCinema/internal/config"
	apperrors "github.com/Corphon/CoffeeWithCinema/internal/errors"
	"github.com/Corphon/CoffeeWithCinema/internal/llm"
	"github.com/Corphon/CoffeeWithCinema/internal/utils"
)

// 连接测试使用的提示词和长度
const (
	connectionTestPrompt    = "Reply with the single word OK."
	connectionTestMaxTokens = 5
	connectionTestSection   = "connection_test"

	// 超过此数量时清空提供者缓存
	maxCachedProviders = 32
)

// TextGenerator 生成流程依赖的推理接口
type TextGenerator interface {
	Generate(ctx context.Context, settings config.Settings, section, prompt string, maxTokens int) (string, error)
}

// LLMService 按会话设置调用推理后端
type LLMService struct {
	providerName string
	timeout      time.Duration
	metrics      *utils.APIMetrics
	logger       *utils.Logger

	// endpoint+model -> 已初始化的提供者，复用其 http.Client
	providerMutex sync.Mutex
	providers     map[string]llm.Provider
}

// NewLLMService 创建LLM服务
func NewLLMService(providerName string, timeout time.Duration) *LLMService {
	if providerName == "" {
		providerName = "ollama"
	}
	if timeout <= 0 {
		timeout = config.DefaultInferenceTimeout
	}
	return &LLMService{
		providerName: providerName,
		timeout:      timeout,
		metrics:      utils.NewAPIMetrics(),
		logger:       utils.GetLogger(),
		providers:    make(map[string]llm.Provider),
	}
}

// ProviderName 当前使用的提供者名称
func (s *LLMService) ProviderName() string {
	return s.providerName
}

func (s *LLMService) providerFor(settings config.Settings) (llm.Provider, error) {
	key := settings.APIEndpoint + "|" + settings.ModelName

	s.providerMutex.Lock()
	defer s.providerMutex.Unlock()

	if p, ok := s.providers[key]; ok {
		return p, nil
	}

	p, err := llm.GetProvider(s.providerName, map[string]string{
		"endpoint":      settings.APIEndpoint,
		"default_model": settings.ModelName,
		"timeout":       s.timeout.String(),
	})
	if err != nil {
		return nil, err
	}

	if len(s.providers) >= maxCachedProviders {
		s.providers = make(map[string]llm.Provider)
	}
	s.providers[key] = p
	return p, nil
}

// Generate 发送一次生成请求；所有失败统一包装为推理错误
func (s *LLMService) Generate(ctx context.Context, settings config.Settings, section, prompt string, maxTokens int) (string, error) {
	ctx, span := utils.StartSpan(ctx, "llm.generate")
	defer span.End()
	span.SetAttributes(
		attribute.String("llm.provider", s.providerName),
		attribute.String("llm.model", settings.ModelName),
		attribute.String("generation.section", section),
		attribute.Int("llm.max_tokens", maxTokens),
	)

	fail := func(err error) (string, error) {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		s.metrics.RecordError(string(apperrors.ErrorTypeInference), "llm")
		return "", apperrors.NewInferenceError(section, err)
	}

	if err := settings.Validate(); err != nil {
		return "", apperrors.NewValidationError("invalid settings", err)
	}

	provider, err := s.providerFor(settings)
	if err != nil {
		return fail(err)
	}

	start := time.Now()
	resp, err := provider.CompleteText(ctx, llm.CompletionRequest{
		Prompt:      prompt,
		MaxTokens:   maxTokens,
		Temperature: llm.DefaultTemperature,
		Model:       settings.ModelName,
	})
	elapsed := time.Since(start)

	if err != nil {
		s.metrics.RecordLLMRequest(s.providerName, settings.ModelName, section, 0, elapsed, err)
		s.logger.Error("inference call failed", map[string]interface{}{
			"section":  section,
			"model":    settings.ModelName,
			"endpoint": settings.APIEndpoint,
			"elapsed":  elapsed.String(),
			"error":    err.Error(),
		})
		return fail(err)
	}

	s.metrics.RecordLLMRequest(s.providerName, settings.ModelName, section, resp.OutputTokens, elapsed, nil)
	s.logger.Debug("inference call finished", map[string]interface{}{
		"section":       section,
		"model":         resp.ModelName,
		"elapsed":       elapsed.String(),
		"output_tokens": resp.OutputTokens,
		"chars":         len(resp.Text),
	})
	span.SetAttributes(attribute.Int("llm.output_tokens", resp.OutputTokens))
	return resp.Text, nil
}

// TestConnection 用一次很短的请求检查后端是否可用
func (s *LLMService) TestConnection(ctx context.Context, settings config.Settings) (string, time.Duration, error) {
	start := time.Now()
	text, err := s.Generate(ctx, settings, connectionTestSection, connectionTestPrompt, connectionTestMaxTokens)
	return text, time.Since(start), err
}
