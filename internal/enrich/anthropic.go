package enrich

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	domain "github.com/donaldgifford/market-comps/pkg/types"
)

const (
	defaultAnthropicURL     = "https://api.anthropic.com/v1/messages"
	defaultAnthropicModel   = "claude-3-5-haiku-latest"
	defaultAnthropicVersion = "2023-06-01"
	defaultMaxTokens        = 512
)

// AnthropicBackend implements LLMBackend using the Anthropic Messages API.
type AnthropicBackend struct {
	apiKey     string
	model      string
	endpoint   string
	apiVersion string
	client     *http.Client
}

// AnthropicOption configures the AnthropicBackend.
type AnthropicOption func(*AnthropicBackend)

// WithAnthropicEndpoint overrides the default API endpoint.
func WithAnthropicEndpoint(url string) AnthropicOption {
	return func(b *AnthropicBackend) {
		b.endpoint = url
	}
}

// WithAnthropicModel overrides the default model.
func WithAnthropicModel(model string) AnthropicOption {
	return func(b *AnthropicBackend) {
		if model != "" {
			b.model = model
		}
	}
}

// WithAnthropicVersion overrides the anthropic-version header. Empty values
// are ignored.
func WithAnthropicVersion(v string) AnthropicOption {
	return func(b *AnthropicBackend) {
		if v != "" {
			b.apiVersion = v
		}
	}
}

// WithAnthropicHTTPClient overrides the default HTTP client.
func WithAnthropicHTTPClient(c *http.Client) AnthropicOption {
	return func(b *AnthropicBackend) {
		b.client = c
	}
}

// NewAnthropicBackend creates a Claude backend authenticated with apiKey.
func NewAnthropicBackend(apiKey string, opts ...AnthropicOption) *AnthropicBackend {
	b := &AnthropicBackend{
		apiKey:     apiKey,
		model:      defaultAnthropicModel,
		endpoint:   defaultAnthropicURL,
		apiVersion: defaultAnthropicVersion,
		client:     &http.Client{Timeout: 60 * time.Second},
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Name returns the backend name.
func (*AnthropicBackend) Name() string {
	return "anthropic"
}

type anthropicRequest struct {
	Model       string             `json:"model"`
	MaxTokens   int                `json:"max_tokens"`
	System      string             `json:"system,omitempty"`
	Messages    []anthropicMessage `json:"messages"`
	Temperature *float64           `json:"temperature,omitempty"`
}

type anthropicMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type anthropicResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	Model string `json:"model"`
	Usage struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
	} `json:"usage"`
}

type anthropicError struct {
	Error struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}

// Generate calls the Messages API. Transport and non-200 failures wrap
// domain.ErrProviderUnavailable; unreadable bodies wrap domain.ErrDecode.
func (b *AnthropicBackend) Generate(ctx context.Context, req GenerateRequest) (GenerateResponse, error) {
	if b.apiKey == "" {
		return GenerateResponse{}, fmt.Errorf("%w: anthropic api key is not set", domain.ErrProviderUnavailable)
	}

	model := b.model
	if req.Model != "" {
		model = req.Model
	}
	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}

	payload := anthropicRequest{
		Model:     model,
		MaxTokens: maxTokens,
		System:    req.SystemMsg,
		Messages:  []anthropicMessage{{Role: "user", Content: req.Prompt}},
	}
	if req.Temperature > 0 {
		payload.Temperature = &req.Temperature
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return GenerateResponse{}, fmt.Errorf("marshaling request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, b.endpoint, bytes.NewReader(body))
	if err != nil {
		return GenerateResponse{}, fmt.Errorf("creating HTTP request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-api-key", b.apiKey)
	httpReq.Header.Set("anthropic-version", b.apiVersion)

	resp, err := b.client.Do(httpReq)
	if err != nil {
		return GenerateResponse{}, fmt.Errorf("%w: calling anthropic API: %w", domain.ErrProviderUnavailable, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return GenerateResponse{}, fmt.Errorf("%w: reading anthropic response: %w", domain.ErrProviderUnavailable, err)
	}

	if resp.StatusCode != http.StatusOK {
		var apiErr anthropicError
		if json.Unmarshal(respBody, &apiErr) == nil && apiErr.Error.Message != "" {
			return GenerateResponse{}, fmt.Errorf("%w: anthropic API error (status %d): %s: %s",
				domain.ErrProviderUnavailable, resp.StatusCode, apiErr.Error.Type, apiErr.Error.Message)
		}
		return GenerateResponse{}, fmt.Errorf("%w: anthropic API error (status %d): %s",
			domain.ErrProviderUnavailable, resp.StatusCode, string(respBody))
	}

	var apiResp anthropicResponse
	if err := json.Unmarshal(respBody, &apiResp); err != nil {
		return GenerateResponse{}, fmt.Errorf("%w: parsing anthropic response: %w", domain.ErrDecode, err)
	}

	var text bytes.Buffer
	for _, c := range apiResp.Content {
		if c.Type == "text" {
			text.WriteString(c.Text)
		}
	}
	if text.Len() == 0 {
		return GenerateResponse{}, fmt.Errorf("%w: empty response from anthropic", domain.ErrDecode)
	}

	return GenerateResponse{
		Content: text.String(),
		Model:   apiResp.Model,
		Usage: TokenUsage{
			PromptTokens:     apiResp.Usage.InputTokens,
			CompletionTokens: apiResp.Usage.OutputTokens,
			TotalTokens:      apiResp.Usage.InputTokens + apiResp.Usage.OutputTokens,
		},
	}, nil
}
