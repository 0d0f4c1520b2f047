package enrich

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	domain "github.com/donaldgifford/market-comps/pkg/types"
)

const defaultOpenAIModel = "gpt-4o-mini"

// OpenAIBackend implements LLMBackend with the OpenAI chat completions API.
// Any OpenAI-compatible endpoint works through WithOpenAIBaseURL.
type OpenAIBackend struct {
	client  openai.Client
	model   string
	reqOpts []option.RequestOption
}

// OpenAIOption configures the OpenAIBackend.
type OpenAIOption func(*OpenAIBackend)

// WithOpenAIBaseURL points the client at an OpenAI-compatible endpoint.
func WithOpenAIBaseURL(url string) OpenAIOption {
	return func(b *OpenAIBackend) {
		if url != "" {
			b.reqOpts = append(b.reqOpts, option.WithBaseURL(url))
		}
	}
}

// WithOpenAIModel overrides the default model.
func WithOpenAIModel(model string) OpenAIOption {
	return func(b *OpenAIBackend) {
		if model != "" {
			b.model = model
		}
	}
}

// WithOpenAITimeout bounds each request, retries included.
func WithOpenAITimeout(d time.Duration) OpenAIOption {
	return func(b *OpenAIBackend) {
		if d > 0 {
			b.reqOpts = append(b.reqOpts, option.WithRequestTimeout(d))
		}
	}
}

// WithOpenAIMaxRetries sets how often the SDK retries retriable failures.
func WithOpenAIMaxRetries(n int) OpenAIOption {
	return func(b *OpenAIBackend) {
		b.reqOpts = append(b.reqOpts, option.WithMaxRetries(n))
	}
}

// WithOpenAIHTTPClient overrides the default HTTP client.
func WithOpenAIHTTPClient(c *http.Client) OpenAIOption {
	return func(b *OpenAIBackend) {
		b.reqOpts = append(b.reqOpts, option.WithHTTPClient(c))
	}
}

// NewOpenAIBackend creates a backend authenticated with apiKey.
func NewOpenAIBackend(apiKey string, opts ...OpenAIOption) *OpenAIBackend {
	b := &OpenAIBackend{
		model:   defaultOpenAIModel,
		reqOpts: []option.RequestOption{option.WithAPIKey(apiKey)},
	}
	for _, opt := range opts {
		opt(b)
	}
	b.client = openai.NewClient(b.reqOpts...)
	return b
}

// Name returns the backend name.
func (*OpenAIBackend) Name() string {
	return "openai"
}

// Generate calls /chat/completions.
func (b *OpenAIBackend) Generate(ctx context.Context, req GenerateRequest) (GenerateResponse, error) {
	model := b.model
	if req.Model != "" {
		model = req.Model
	}
	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}

	messages := make([]openai.ChatCompletionMessageParamUnion, 0, 2)
	if req.SystemMsg != "" {
		messages = append(messages, openai.SystemMessage(req.SystemMsg))
	}
	messages = append(messages, openai.UserMessage(req.Prompt))

	params := openai.ChatCompletionNewParams{
		Model:               openai.ChatModel(model),
		Messages:            messages,
		MaxCompletionTokens: openai.Int(int64(maxTokens)),
	}
	if req.Temperature > 0 {
		params.Temperature = openai.Float(req.Temperature)
	}

	completion, err := b.client.Chat.Completions.New(ctx, params)
	if err != nil {
		var apiErr *openai.Error
		if errors.As(err, &apiErr) {
			return GenerateResponse{}, fmt.Errorf("%w: openai API error (status %d): %w",
				domain.ErrProviderUnavailable, apiErr.StatusCode, err)
		}
		return GenerateResponse{}, fmt.Errorf("%w: calling openai API: %w", domain.ErrProviderUnavailable, err)
	}

	if len(completion.Choices) == 0 || completion.Choices[0].Message.Content == "" {
		return GenerateResponse{}, fmt.Errorf("%w: empty choices from openai", domain.ErrDecode)
	}

	return GenerateResponse{
		Content: completion.Choices[0].Message.Content,
		Model:   completion.Model,
		Usage: TokenUsage{
			PromptTokens:     int(completion.Usage.PromptTokens),
			CompletionTokens: int(completion.Usage.CompletionTokens),
			TotalTokens:      int(completion.Usage.TotalTokens),
		},
	}, nil
}
