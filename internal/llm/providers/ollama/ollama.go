// internal/llm/providers/ollama/ollama.go
package ollama

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/Corphon/CoffeeWithCinema/internal/llm"
)

const (
	ProviderName    = "ollama"
	DefaultEndpoint = "http://localhost:11434/api/generate"
	DefaultModel    = "granite4:micro"
	DefaultTimeout  = 300 * time.Second

	// 错误信息中保留的响应体长度
	maxErrorBody = 512
)

func init() {
	llm.Register(ProviderName, func() llm.Provider {
		return &Provider{}
	})
}

// Provider 调用 Ollama 的 /api/generate 接口（非流式）
type Provider struct {
	endpoint     string
	defaultModel string
	client       *http.Client
}

type generateOptions struct {
	Temperature float32 `json:"temperature"`
	NumPredict  int     `json:"num_predict"`
}

type generateRequest struct {
	Model   string          `json:"model"`
	Prompt  string          `json:"prompt"`
	Stream  bool            `json:"stream"`
	Options generateOptions `json:"options"`
}

type generateResponse struct {
	Model           string `json:"model"`
	Response        string `json:"response"`
	Done            bool   `json:"done"`
	DoneReason      string `json:"done_reason"`
	PromptEvalCount int    `json:"prompt_eval_count"`
	EvalCount       int    `json:"eval_count"`
}

// Initialize 支持的配置项：endpoint、default_model、timeout（Go duration 字符串）
func (p *Provider) Initialize(config map[string]string) error {
	p.endpoint = DefaultEndpoint
	if endpoint := strings.TrimSpace(config["endpoint"]); endpoint != "" {
		p.endpoint = endpoint
	}

	p.defaultModel = DefaultModel
	if model := strings.TrimSpace(config["default_model"]); model != "" {
		p.defaultModel = model
	}

	timeout := DefaultTimeout
	if raw := strings.TrimSpace(config["timeout"]); raw != "" {
		d, err := time.ParseDuration(raw)
		if err != nil || d <= 0 {
			return fmt.Errorf("ollama: invalid timeout %q", raw)
		}
		timeout = d
	}
	p.client = &http.Client{Timeout: timeout}
	return nil
}

func (p *Provider) GetName() string {
	return ProviderName
}

// Endpoint 当前使用的接口地址
func (p *Provider) Endpoint() string {
	return p.endpoint
}

// CompleteText 发送一次阻塞的生成请求，返回去除首尾空白的 response 字段
func (p *Provider) CompleteText(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	model := req.Model
	if model == "" {
		model = p.defaultModel
	}

	body, err := json.Marshal(generateRequest{
		Model:  model,
		Prompt: req.Prompt,
		Stream: false,
		Options: generateOptions{
			Temperature: req.Temperature,
			NumPredict:  req.MaxTokens,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("ollama: encode request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("ollama: build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("ollama: request failed: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("ollama: read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet := strings.TrimSpace(string(data))
		if len(snippet) > maxErrorBody {
			snippet = snippet[:maxErrorBody]
		}
		return nil, fmt.Errorf("ollama: HTTP %d %s: %s", resp.StatusCode, http.StatusText(resp.StatusCode), snippet)
	}

	var out generateResponse
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("ollama: decode response: %w", err)
	}

	modelName := out.Model
	if modelName == "" {
		modelName = model
	}

	return &llm.CompletionResponse{
		Text:         strings.TrimSpace(out.Response),
		FinishReason: out.DoneReason,
		PromptTokens: out.PromptEvalCount,
		OutputTokens: out.EvalCount,
		ModelName:    modelName,
		ProviderName: ProviderName,
	}, nil
}
