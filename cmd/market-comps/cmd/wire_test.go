package cmd

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/donaldgifford/market-comps/internal/config"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestOpenStore(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		cfg     config.StorageConfig
		wantErr string
	}{
		{name: "memory", cfg: config.StorageConfig{Backend: config.StorageMemory}},
		{name: "bolt", cfg: config.StorageConfig{Backend: config.StorageBolt, Bolt: config.BoltConfig{Path: filepath.Join(t.TempDir(), "kv.db")}}},
		{name: "unknown", cfg: config.StorageConfig{Backend: "sqlite"}, wantErr: `unknown storage backend "sqlite"`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			s, closeFn, err := openStore(context.Background(), tt.cfg)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			t.Cleanup(func() { assert.NoError(t, closeFn()) })

			require.NoError(t, s.Set(context.Background(), "k", []byte("v")))
			got, ok, err := s.Get(context.Background(), "k")
			require.NoError(t, err)
			assert.True(t, ok)
			assert.Equal(t, []byte("v"), got)
		})
	}
}

func TestNewLLMBackend(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		cfg      config.LLMConfig
		wantName string
	}{
		{name: "none", cfg: config.LLMConfig{Backend: config.LLMNone}},
		{name: "anthropic", cfg: config.LLMConfig{Backend: config.LLMAnthropic, APIKey: "k"}, wantName: "anthropic"},
		{name: "ollama", cfg: config.LLMConfig{Backend: config.LLMOllama}, wantName: "ollama"},
		{name: "openai", cfg: config.LLMConfig{Backend: config.LLMOpenAI, APIKey: "k", BaseURL: "http://localhost:1/v1/"}, wantName: "openai"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			b := newLLMBackend(tt.cfg)
			if tt.wantName == "" {
				assert.Nil(t, b)
				return
			}
			require.NotNil(t, b)
			assert.Equal(t, tt.wantName, b.Name())
		})
	}
}

func TestNewQueryBuilder(t *testing.T) {
	t.Parallel()

	b := newQueryBuilder(config.QueryConfig{
		FallbackQuery:     "vintage furniture",
		PlaceholderTitles: []string{"pending"},
	})
	assert.Equal(t, "vintage furniture", b.Build("Pending", true))
	assert.True(t, b.IsPlaceholder("pending"))
	assert.False(t, b.IsPlaceholder("untitled"))
}

func TestNewServer_Routes(t *testing.T) {
	t.Parallel()

	cfg := config.Default()
	cfg.Storage.Backend = config.StorageMemory
	cfg.SerpAPI.APIKey = "test"

	a, err := newApp(context.Background(), cfg, quietLogger())
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.close() })
	assert.False(t, a.generator.Enabled())

	e := newServer(a, quietLogger())

	tests := []struct {
		name       string
		method     string
		path       string
		wantStatus int
		wantBody   string
	}{
		{name: "liveness", method: http.MethodGet, path: "/healthz", wantStatus: http.StatusOK, wantBody: `"ok"`},
		{name: "readiness", method: http.MethodGet, path: "/readyz", wantStatus: http.StatusOK, wantBody: `"ready"`},
		{name: "metrics", method: http.MethodGet, path: "/metrics", wantStatus: http.StatusOK, wantBody: "go_goroutines"},
		{name: "item state", method: http.MethodGet, path: "/api/v1/items/item-1/state", wantStatus: http.StatusOK, wantBody: `"status":"empty"`},
		{name: "quota", method: http.MethodGet, path: "/api/v1/quota", wantStatus: http.StatusOK, wantBody: `"remaining":-1`},
		{name: "generate is not mounted without a backend", method: http.MethodPost, path: "/api/v1/generate", wantStatus: http.StatusNotFound},
		{name: "openapi document", method: http.MethodGet, path: "/openapi.json", wantStatus: http.StatusOK, wantBody: "get-market-data"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, tt.path, http.NoBody)
			rec := httptest.NewRecorder()
			e.ServeHTTP(rec, req)

			assert.Equal(t, tt.wantStatus, rec.Code)
			if tt.wantBody != "" {
				assert.Contains(t, rec.Body.String(), tt.wantBody)
			}
		})
	}
}
