package enrich

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/sync/singleflight"

	"github.com/donaldgifford/market-comps/internal/cache"
	"github.com/donaldgifford/market-comps/internal/metrics"
	domain "github.com/donaldgifford/market-comps/pkg/types"
)

// DefaultTTL is how long generated text stays valid.
const DefaultTTL = 7 * 24 * time.Hour

// CacheName is the cache namespace for generated text.
const CacheName = "text"

var tracer = otel.Tracer("github.com/donaldgifford/market-comps/internal/enrich")

// Generator produces cached generated text for a tool and input. Inputs that
// differ only in case or whitespace share one cache entry.
type Generator struct {
	backend LLMBackend
	cache   *cache.Cache[string]
	tools   map[string]Tool
	ttl     time.Duration
	timeout time.Duration
	group   singleflight.Group
	log     *slog.Logger
}

// Option configures a Generator.
type Option func(*Generator)

// WithTTL overrides DefaultTTL.
func WithTTL(d time.Duration) Option {
	return func(g *Generator) {
		if d > 0 {
			g.ttl = d
		}
	}
}

// WithTimeout bounds a single backend call.
func WithTimeout(d time.Duration) Option {
	return func(g *Generator) {
		g.timeout = d
	}
}

// WithToolOverride adjusts the settings of a built-in tool. Unknown names
// are ignored.
func WithToolOverride(name string, o ToolOverride) Option {
	return func(g *Generator) {
		if t, ok := g.tools[name]; ok {
			g.tools[name] = t.with(o)
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(g *Generator) {
		g.log = l
	}
}

// NewGenerator creates a Generator. A nil backend disables generation; only
// previously cached text is served.
func NewGenerator(backend LLMBackend, store *cache.Store, opts ...Option) *Generator {
	g := &Generator{
		backend: backend,
		cache:   cache.New[string](store, CacheName),
		tools:   DefaultTools(),
		ttl:     DefaultTTL,
		timeout: 30 * time.Second,
		log:     slog.Default(),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Enabled reports whether a backend is configured.
func (g *Generator) Enabled() bool {
	return g != nil && g.backend != nil
}

// Tool returns the effective settings for name.
func (g *Generator) Tool(name string) (Tool, bool) {
	t, ok := g.tools[name]
	return t, ok
}

// Cached returns previously generated text without calling the backend.
func (g *Generator) Cached(ctx context.Context, tool, input string) (string, bool) {
	if g == nil {
		return "", false
	}
	if _, ok := g.tools[tool]; !ok || cache.NormalizeInput(input) == "" {
		return "", false
	}
	return g.cache.Get(ctx, cache.TextKey(tool, input))
}

// Generate returns text for tool and input, calling the backend only on a
// cache miss. Concurrent calls for the same key share one backend call.
func (g *Generator) Generate(ctx context.Context, tool, input string) (string, error) {
	t, ok := g.tools[tool]
	if !ok {
		return "", fmt.Errorf("%w: unknown tool %q", domain.ErrInvalidRequest, tool)
	}
	if cache.NormalizeInput(input) == "" {
		return "", fmt.Errorf("%w: empty input", domain.ErrInvalidRequest)
	}

	key := cache.TextKey(tool, input)
	if text, ok := g.cache.Get(ctx, key); ok {
		metrics.EnrichmentRequestsTotal.WithLabelValues(tool, "hit").Inc()
		return text, nil
	}
	if !g.Enabled() {
		metrics.EnrichmentRequestsTotal.WithLabelValues(tool, "disabled").Inc()
		return "", fmt.Errorf("%w: no llm backend configured", domain.ErrProviderUnavailable)
	}

	v, err, _ := g.group.Do(key, func() (any, error) {
		return g.generate(context.WithoutCancel(ctx), t, key, input)
	})
	if err != nil {
		metrics.EnrichmentRequestsTotal.WithLabelValues(tool, "error").Inc()
		return "", err
	}
	metrics.EnrichmentRequestsTotal.WithLabelValues(tool, "generated").Inc()
	return v.(string), nil
}

func (g *Generator) generate(ctx context.Context, t Tool, key, input string) (string, error) {
	ctx, span := tracer.Start(ctx, "enrich.Generate")
	defer span.End()
	span.SetAttributes(
		attribute.String("enrich.tool", t.Name),
		attribute.String("enrich.backend", g.backend.Name()),
	)

	if g.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}

	// A flight that finished between the caller's lookup and this one
	// already stored the text.
	if text, ok := g.cache.Get(ctx, key); ok {
		return text, nil
	}

	prompt, err := t.Render(input)
	if err != nil {
		return "", err
	}

	start := time.Now()
	resp, err := g.backend.Generate(ctx, GenerateRequest{
		Prompt:      prompt,
		SystemMsg:   t.System,
		Model:       t.Model,
		Temperature: t.Temperature,
		MaxTokens:   t.MaxTokens,
	})
	metrics.EnrichmentDuration.WithLabelValues(g.backend.Name()).Observe(time.Since(start).Seconds())
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) && !errors.Is(err, domain.ErrProviderUnavailable) {
			err = fmt.Errorf("%w: %w", domain.ErrProviderUnavailable, err)
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, "generation failed")
		return "", fmt.Errorf("generating %s: %w", t.Name, err)
	}

	metrics.LLMTokensTotal.WithLabelValues(g.backend.Name(), "prompt").Add(float64(resp.Usage.PromptTokens))
	metrics.LLMTokensTotal.WithLabelValues(g.backend.Name(), "completion").Add(float64(resp.Usage.CompletionTokens))

	text := strings.TrimSpace(resp.Content)
	if text == "" {
		return "", fmt.Errorf("%w: %s returned no text", domain.ErrDecode, g.backend.Name())
	}

	if err := g.cache.Put(ctx, key, text, cache.FixedDuration(g.ttl)); err != nil {
		g.log.Warn("caching generated text failed", "tool", t.Name, "error", err)
	}
	g.log.Debug("generated text",
		"tool", t.Name,
		"backend", g.backend.Name(),
		"model", resp.Model,
		"tokens", resp.Usage.TotalTokens,
	)
	return text, nil
}
