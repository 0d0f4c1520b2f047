package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/donaldgifford/market-comps/internal/cache"
	"github.com/donaldgifford/market-comps/internal/config"
	"github.com/donaldgifford/market-comps/internal/curation"
	"github.com/donaldgifford/market-comps/internal/engine"
	"github.com/donaldgifford/market-comps/internal/enrich"
	"github.com/donaldgifford/market-comps/internal/gateway"
	"github.com/donaldgifford/market-comps/internal/kv"
	"github.com/donaldgifford/market-comps/internal/serpapi"
	"github.com/donaldgifford/market-comps/internal/upload"
	"github.com/donaldgifford/market-comps/pkg/availability"
	"github.com/donaldgifford/market-comps/pkg/pricing"
)

// app holds the wired components shared by the commands.
type app struct {
	backend   kv.Store
	engine    *engine.Engine
	generator *enrich.Generator
	limiter   *serpapi.RateLimiter
	close     func() error
}

// openStore connects the configured key-value backend. PostgreSQL schemas
// are migrated on open.
func openStore(ctx context.Context, cfg config.StorageConfig) (kv.Store, func() error, error) {
	switch cfg.Backend {
	case config.StorageMemory:
		return kv.NewMemoryStore(), func() error { return nil }, nil
	case config.StorageBolt:
		s, err := kv.NewBoltStore(cfg.Bolt.Path)
		if err != nil {
			return nil, nil, err
		}
		return s, s.Close, nil
	case config.StoragePostgres:
		s, err := kv.NewPostgresStore(ctx, cfg.Postgres.DSN())
		if err != nil {
			return nil, nil, err
		}
		if err := s.Migrate(ctx); err != nil {
			s.Close()
			return nil, nil, fmt.Errorf("running migrations: %w", err)
		}
		return s, func() error { s.Close(); return nil }, nil
	case config.StorageRedis:
		s, err := kv.DialRedis(ctx, cfg.Redis.URL, kv.WithNamespace(cfg.Redis.Namespace))
		if err != nil {
			return nil, nil, err
		}
		return s, s.Close, nil
	default:
		return nil, nil, fmt.Errorf("unknown storage backend %q", cfg.Backend)
	}
}

// newLLMBackend returns nil when generated text is disabled.
func newLLMBackend(cfg config.LLMConfig) enrich.LLMBackend {
	hc := &http.Client{Timeout: cfg.Timeout}
	switch cfg.Backend {
	case config.LLMAnthropic:
		opts := []enrich.AnthropicOption{
			enrich.WithAnthropicModel(cfg.Model),
			enrich.WithAnthropicVersion(cfg.Anthropic.Version),
			enrich.WithAnthropicHTTPClient(hc),
		}
		if cfg.BaseURL != "" {
			opts = append(opts, enrich.WithAnthropicEndpoint(cfg.BaseURL))
		}
		return enrich.NewAnthropicBackend(cfg.APIKey, opts...)
	case config.LLMOpenAI:
		opts := []enrich.OpenAIOption{
			enrich.WithOpenAIModel(cfg.Model),
			enrich.WithOpenAITimeout(cfg.Timeout),
		}
		if cfg.BaseURL != "" {
			opts = append(opts, enrich.WithOpenAIBaseURL(cfg.BaseURL))
		}
		return enrich.NewOpenAIBackend(cfg.APIKey, opts...)
	case config.LLMOllama:
		return enrich.NewOllamaBackend(
			enrich.WithOllamaEndpoint(cfg.BaseURL),
			enrich.WithOllamaModel(cfg.Model),
			enrich.WithOllamaHTTPClient(hc),
		)
	default:
		return nil
	}
}

func newQueryBuilder(cfg config.QueryConfig) *gateway.QueryBuilder {
	var opts []gateway.QueryOption
	if len(cfg.Qualifiers) > 0 {
		opts = append(opts, gateway.WithQualifiers(cfg.Qualifiers...))
	}
	if cfg.FallbackQuery != "" {
		opts = append(opts, gateway.WithFallbackQuery(cfg.FallbackQuery))
	}
	if len(cfg.PlaceholderTitles) > 0 {
		opts = append(opts, gateway.WithPlaceholderTitles(cfg.PlaceholderTitles...))
	}
	return gateway.NewQueryBuilder(opts...)
}

// newApp wires every component over an open key-value backend.
func newApp(ctx context.Context, cfg *config.Config, log *slog.Logger) (*app, error) {
	backend, closeStore, err := openStore(ctx, cfg.Storage)
	if err != nil {
		return nil, fmt.Errorf("opening %s store: %w", cfg.Storage.Backend, err)
	}

	locks := kv.NewKeyMutex()
	store := cache.NewStore(backend, cache.WithLogger(log), cache.WithLocks(locks))
	cur := curation.NewStore(backend, curation.WithLogger(log), curation.WithLocks(locks))
	queries := newQueryBuilder(cfg.Query)

	limiter := serpapi.NewRateLimiter(
		cfg.SerpAPI.RateLimit.PerSecond,
		cfg.SerpAPI.RateLimit.Burst,
		cfg.SerpAPI.RateLimit.DailyLimit,
	)
	client := serpapi.NewHTTPClient(cfg.SerpAPI.APIKey,
		serpapi.WithBaseURL(cfg.SerpAPI.BaseURL),
		serpapi.WithHTTPClient(&http.Client{Timeout: cfg.SerpAPI.Timeout}),
		serpapi.WithRateLimiter(limiter),
		serpapi.WithLogger(log),
	)

	gwOpts := []gateway.Option{
		gateway.WithNormalizer(pricing.NewNormalizer(pricing.WithMultipliers(cfg.Pricing.Multipliers))),
		gateway.WithQueryBuilder(queries),
		gateway.WithEngines(cfg.SerpAPI.TextEngine, cfg.SerpAPI.VisualEngine),
		gateway.WithLocation(cfg.SerpAPI.Location),
		gateway.WithTimeout(cfg.SerpAPI.Timeout),
		gateway.WithLogger(log),
	}
	if cfg.Upload.Enabled() {
		up := upload.NewHTTPUploader(cfg.Upload.Endpoint,
			upload.WithPublicBaseURL(cfg.Upload.PublicBaseURL),
			upload.WithPrefix(cfg.Upload.Prefix),
			upload.WithToken(cfg.Upload.Token),
			upload.WithHTTPClient(&http.Client{Timeout: cfg.Upload.Timeout}),
			upload.WithLogger(log),
		)
		gwOpts = append(gwOpts, gateway.WithUploader(up))
	} else {
		log.Info("upload endpoint not configured, visual search disabled")
	}
	gw := gateway.New(client, gwOpts...)

	genOpts := []enrich.Option{
		enrich.WithTTL(cfg.Cache.GeneratedTextTTL),
		enrich.WithTimeout(cfg.LLM.Timeout),
		enrich.WithLogger(log),
	}
	for name, tc := range cfg.LLM.Tools {
		genOpts = append(genOpts, enrich.WithToolOverride(name, enrich.ToolOverride{
			Model:       tc.Model,
			MaxTokens:   tc.MaxTokens,
			Temperature: tc.Temperature,
		}))
	}
	generator := enrich.NewGenerator(newLLMBackend(cfg.LLM), store, genOpts...)

	engOpts := []engine.Option{
		engine.WithLogger(log),
		engine.WithClassifier(availability.NewKeywordClassifier()),
		engine.WithQueryBuilder(queries),
		engine.WithFetchTimeout(cfg.Engine.FetchTimeout),
	}
	if generator.Enabled() {
		engOpts = append(engOpts, engine.WithGenerator(generator))
	}

	return &app{
		backend:   backend,
		engine:    engine.NewEngine(gw, store, cur, engOpts...),
		generator: generator,
		limiter:   limiter,
		close:     closeStore,
	}, nil
}
