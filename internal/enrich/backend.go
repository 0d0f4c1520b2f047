// Package enrich produces short generated texts about an item, such as a
// resale appraisal, through a pluggable LLM backend.
package enrich

import "context"

// GenerateRequest is the input to one LLM call.
type GenerateRequest struct {
	Prompt    string
	SystemMsg string
	// Model overrides the backend's default model when set.
	Model       string
	Temperature float64
	MaxTokens   int
}

// TokenUsage tracks LLM token consumption.
type TokenUsage struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

// GenerateResponse holds the result of an LLM call.
type GenerateResponse struct {
	Content string
	Model   string
	Usage   TokenUsage
}

// LLMBackend generates text from a prompt.
type LLMBackend interface {
	Generate(ctx context.Context, req GenerateRequest) (GenerateResponse, error)
	Name() string
}
