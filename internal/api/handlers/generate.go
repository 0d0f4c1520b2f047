package handlers

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
)

// TextGenerator produces cached generated text for a named tool.
type TextGenerator interface {
	Generate(ctx context.Context, tool, input string) (string, error)
}

// GenerateHandler exposes the generated-text tools.
type GenerateHandler struct {
	gen TextGenerator
}

// NewGenerateHandler creates a new GenerateHandler.
func NewGenerateHandler(gen TextGenerator) *GenerateHandler {
	return &GenerateHandler{gen: gen}
}

// GenerateInput is the request body for text generation.
type GenerateInput struct {
	Body struct {
		Tool  string `json:"tool"  enum:"appraisal,listing_copy" doc:"Tool to run"`
		Input string `json:"input" minLength:"1" maxLength:"2000" doc:"Tool input, usually the item title"`
	}
}

// GenerateOutput is the response body for text generation.
type GenerateOutput struct {
	Body struct {
		Tool string `json:"tool" example:"appraisal"`
		Text string `json:"text" example:"Expect roughly $45 for this jacket in good condition."`
	}
}

// Generate runs a tool, serving a cached result when one exists.
func (h *GenerateHandler) Generate(ctx context.Context, in *GenerateInput) (*GenerateOutput, error) {
	text, err := h.gen.Generate(ctx, in.Body.Tool, in.Body.Input)
	if err != nil {
		return nil, statusError("text generation failed", err)
	}

	resp := &GenerateOutput{}
	resp.Body.Tool = in.Body.Tool
	resp.Body.Text = text
	return resp, nil
}

// RegisterGenerateRoutes registers the text generation endpoint with the Huma API.
func RegisterGenerateRoutes(api huma.API, h *GenerateHandler) {
	huma.Register(api, huma.Operation{
		OperationID: "generate-text",
		Method:      http.MethodPost,
		Path:        "/api/v1/generate",
		Summary:     "Generate text",
		Description: "Runs an LLM tool over the input. Results are cached per tool and normalized input.",
		Tags:        []string{"enrich"},
		Errors:      []int{http.StatusUnprocessableEntity, http.StatusBadGateway},
	}, h.Generate)
}
