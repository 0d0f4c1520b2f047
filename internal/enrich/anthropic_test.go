package enrich_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/donaldgifford/market-comps/internal/enrich"
	domain "github.com/donaldgifford/market-comps/pkg/types"
)

func TestAnthropicBackend_Generate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		status  int
		body    string
		req     enrich.GenerateRequest
		want    string
		wantErr error
	}{
		{
			name:   "text blocks are joined",
			status: http.StatusOK,
			body: `{"model":"claude-test","content":[{"type":"text","text":"Worn-in "},{"type":"text","text":"trucker jacket."}],
				"usage":{"input_tokens":12,"output_tokens":5}}`,
			req:  enrich.GenerateRequest{Prompt: "hi"},
			want: "Worn-in trucker jacket.",
		},
		{
			name:    "api error",
			status:  http.StatusTooManyRequests,
			body:    `{"error":{"type":"rate_limit_error","message":"slow down"}}`,
			req:     enrich.GenerateRequest{Prompt: "hi"},
			wantErr: domain.ErrProviderUnavailable,
		},
		{
			name:    "unstructured error",
			status:  http.StatusBadGateway,
			body:    `upstream down`,
			req:     enrich.GenerateRequest{Prompt: "hi"},
			wantErr: domain.ErrProviderUnavailable,
		},
		{
			name:    "malformed body",
			status:  http.StatusOK,
			body:    `{"content":`,
			req:     enrich.GenerateRequest{Prompt: "hi"},
			wantErr: domain.ErrDecode,
		},
		{
			name:    "no text content",
			status:  http.StatusOK,
			body:    `{"model":"claude-test","content":[]}`,
			req:     enrich.GenerateRequest{Prompt: "hi"},
			wantErr: domain.ErrDecode,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			t.Cleanup(srv.Close)

			b := enrich.NewAnthropicBackend("key", enrich.WithAnthropicEndpoint(srv.URL))
			resp, err := b.Generate(context.Background(), tt.req)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, resp.Content)
			assert.Equal(t, "claude-test", resp.Model)
			assert.Equal(t, 17, resp.Usage.TotalTokens)
		})
	}
}

func TestAnthropicBackend_RequestShape(t *testing.T) {
	t.Parallel()

	type captured struct {
		apiKey, version string
		body            map[string]any
	}
	got := make(chan captured, 1)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		_ = json.NewDecoder(r.Body).Decode(&body)
		got <- captured{apiKey: r.Header.Get("x-api-key"), version: r.Header.Get("anthropic-version"), body: body}
		_, _ = w.Write([]byte(`{"model":"m","content":[{"type":"text","text":"ok"}]}`))
	}))
	t.Cleanup(srv.Close)

	b := enrich.NewAnthropicBackend("secret",
		enrich.WithAnthropicEndpoint(srv.URL),
		enrich.WithAnthropicModel("default-model"),
		enrich.WithAnthropicVersion(""),
	)
	_, err := b.Generate(context.Background(), enrich.GenerateRequest{
		Prompt:      "prompt",
		SystemMsg:   "system",
		Model:       "override-model",
		Temperature: 0.5,
	})
	require.NoError(t, err)

	c := <-got
	assert.Equal(t, "secret", c.apiKey)
	assert.Equal(t, "2023-06-01", c.version)
	assert.Equal(t, "override-model", c.body["model"])
	assert.Equal(t, "system", c.body["system"])
	assert.InDelta(t, 512, c.body["max_tokens"], 0)
	assert.InDelta(t, 0.5, c.body["temperature"], 0)
}

func TestAnthropicBackend_MissingKey(t *testing.T) {
	t.Parallel()

	_, err := enrich.NewAnthropicBackend("").Generate(context.Background(), enrich.GenerateRequest{Prompt: "x"})
	require.ErrorIs(t, err, domain.ErrProviderUnavailable)
	assert.Equal(t, "anthropic", enrich.NewAnthropicBackend("").Name())
}
