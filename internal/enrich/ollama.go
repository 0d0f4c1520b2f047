package enrich

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	domain "github.com/donaldgifford/market-comps/pkg/types"
)

const (
	defaultOllamaEndpoint = "http://localhost:11434"
	defaultOllamaModel    = "llama3.2"
)

// OllamaBackend implements LLMBackend using the Ollama /api/generate endpoint.
type OllamaBackend struct {
	endpoint string
	model    string
	client   *http.Client
}

// OllamaOption configures the OllamaBackend.
type OllamaOption func(*OllamaBackend)

// WithOllamaEndpoint overrides the server address. Empty values are ignored.
func WithOllamaEndpoint(url string) OllamaOption {
	return func(b *OllamaBackend) {
		if url != "" {
			b.endpoint = strings.TrimRight(url, "/")
		}
	}
}

// WithOllamaModel overrides the default model. Empty values are ignored.
func WithOllamaModel(model string) OllamaOption {
	return func(b *OllamaBackend) {
		if model != "" {
			b.model = model
		}
	}
}

// WithOllamaHTTPClient overrides the default HTTP client.
func WithOllamaHTTPClient(c *http.Client) OllamaOption {
	return func(b *OllamaBackend) {
		b.client = c
	}
}

// NewOllamaBackend creates a backend for a local Ollama server.
func NewOllamaBackend(opts ...OllamaOption) *OllamaBackend {
	b := &OllamaBackend{
		endpoint: defaultOllamaEndpoint,
		model:    defaultOllamaModel,
		client:   &http.Client{Timeout: 60 * time.Second},
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Name returns the backend name.
func (*OllamaBackend) Name() string {
	return "ollama"
}

type ollamaRequest struct {
	Model   string        `json:"model"`
	Prompt  string        `json:"prompt"`
	System  string        `json:"system,omitempty"`
	Stream  bool          `json:"stream"`
	Options ollamaOptions `json:"options"`
}

type ollamaOptions struct {
	Temperature float64 `json:"temperature"`
	NumPredict  int     `json:"num_predict,omitempty"`
}

type ollamaResponse struct {
	Model           string `json:"model"`
	Response        string `json:"response"`
	PromptEvalCount int    `json:"prompt_eval_count"`
	EvalCount       int    `json:"eval_count"`
}

// Generate calls the Ollama /api/generate endpoint without streaming.
func (b *OllamaBackend) Generate(ctx context.Context, req GenerateRequest) (GenerateResponse, error) {
	model := b.model
	if req.Model != "" {
		model = req.Model
	}

	body, err := json.Marshal(ollamaRequest{
		Model:  model,
		Prompt: req.Prompt,
		System: req.SystemMsg,
		Options: ollamaOptions{
			Temperature: req.Temperature,
			NumPredict:  req.MaxTokens,
		},
	})
	if err != nil {
		return GenerateResponse{}, fmt.Errorf("marshaling request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, b.endpoint+"/api/generate", bytes.NewReader(body))
	if err != nil {
		return GenerateResponse{}, fmt.Errorf("creating HTTP request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := b.client.Do(httpReq)
	if err != nil {
		return GenerateResponse{}, fmt.Errorf("calling ollama: %w: %w", domain.ErrProviderUnavailable, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return GenerateResponse{}, fmt.Errorf("reading response: %w: %w", domain.ErrProviderUnavailable, err)
	}

	if resp.StatusCode != http.StatusOK {
		return GenerateResponse{}, fmt.Errorf("ollama error (status %d): %w: %s",
			resp.StatusCode, domain.ErrProviderUnavailable, string(respBody))
	}

	var out ollamaResponse
	if err := json.Unmarshal(respBody, &out); err != nil {
		return GenerateResponse{}, fmt.Errorf("parsing ollama response: %w: %w", domain.ErrDecode, err)
	}

	return GenerateResponse{
		Content: out.Response,
		Model:   out.Model,
		Usage: TokenUsage{
			PromptTokens:     out.PromptEvalCount,
			CompletionTokens: out.EvalCount,
			TotalTokens:      out.PromptEvalCount + out.EvalCount,
		},
	}, nil
}
