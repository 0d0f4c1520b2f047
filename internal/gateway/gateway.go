// Package gateway picks and calls search providers for an item: a visual
// search when a photo is available, a text search otherwise or when the
// visual path fails.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/donaldgifford/market-comps/internal/metrics"
	"github.com/donaldgifford/market-comps/internal/serpapi"
	"github.com/donaldgifford/market-comps/internal/upload"
	"github.com/donaldgifford/market-comps/pkg/pricing"
	domain "github.com/donaldgifford/market-comps/pkg/types"
)

const (
	defaultTimeout = 20 * time.Second
	cleanupTimeout = 5 * time.Second
)

var tracer = otel.Tracer("github.com/donaldgifford/market-comps/internal/gateway")

// Searcher is what the engine needs from a gateway.
type Searcher interface {
	Search(ctx context.Context, item domain.Item) (domain.SearchResponse, error)
}

// Gateway implements Searcher over a provider client and an uploader.
type Gateway struct {
	client       serpapi.Client
	uploader     upload.Uploader
	normalizer   *pricing.Normalizer
	queries      *QueryBuilder
	textEngine   string
	visualEngine string
	location     string
	timeout      time.Duration
	nowFunc      func() time.Time
	logger       *slog.Logger
}

// Option configures a Gateway.
type Option func(*Gateway)

// WithUploader enables the visual path.
func WithUploader(u upload.Uploader) Option {
	return func(g *Gateway) {
		g.uploader = u
	}
}

// WithNormalizer sets the price normalizer applied to results.
func WithNormalizer(n *pricing.Normalizer) Option {
	return func(g *Gateway) {
		g.normalizer = n
	}
}

// WithQueryBuilder sets how text queries are built.
func WithQueryBuilder(b *QueryBuilder) Option {
	return func(g *Gateway) {
		g.queries = b
	}
}

// WithEngines overrides the provider engine names. Empty values keep the
// defaults.
func WithEngines(text, visual string) Option {
	return func(g *Gateway) {
		if text != "" {
			g.textEngine = text
		}
		if visual != "" {
			g.visualEngine = visual
		}
	}
}

// WithLocation scopes text searches to a location.
func WithLocation(loc string) Option {
	return func(g *Gateway) {
		g.location = loc
	}
}

// WithTimeout bounds each provider step. A timeout counts as a provider
// failure.
func WithTimeout(d time.Duration) Option {
	return func(g *Gateway) {
		if d > 0 {
			g.timeout = d
		}
	}
}

// WithNowFunc overrides the clock, for tests.
func WithNowFunc(f func() time.Time) Option {
	return func(g *Gateway) {
		g.nowFunc = f
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(g *Gateway) {
		g.logger = l
	}
}

// New creates a Gateway. Without an uploader only text search is used.
func New(client serpapi.Client, opts ...Option) *Gateway {
	g := &Gateway{
		client:       client,
		normalizer:   pricing.NewNormalizer(),
		queries:      NewQueryBuilder(),
		textEngine:   serpapi.EngineShopping,
		visualEngine: serpapi.EngineLens,
		timeout:      defaultTimeout,
		nowFunc:      time.Now,
		logger:       slog.Default(),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Search implements Searcher. Provider failures are absorbed here: the
// visual path falls back to text, and an error is returned only when every
// attempted provider failed.
func (g *Gateway) Search(ctx context.Context, item domain.Item) (domain.SearchResponse, error) {
	ctx, span := tracer.Start(ctx, "gateway.Search")
	defer span.End()
	span.SetAttributes(attribute.String("item.id", item.ID), attribute.Bool("item.has_image", item.HasImage()))

	var (
		errs      []error
		visualOK  bool
		visualRes domain.SearchResponse
	)

	if item.HasImage() && g.uploader != nil {
		resp, err := g.visualSearch(ctx, item)
		switch {
		case err != nil:
			errs = append(errs, err)
			metrics.GatewayFallbacksTotal.WithLabelValues("visual_error").Inc()
			g.logger.Warn("visual search failed, falling back to text",
				"item_id", item.ID, "error", err)
		case resp.Empty():
			visualOK, visualRes = true, resp
			metrics.GatewayFallbacksTotal.WithLabelValues("visual_empty").Inc()
			g.logger.Info("visual search returned no listings, falling back to text",
				"item_id", item.ID)
		default:
			return resp, nil
		}
	}

	resp, err := g.textSearch(ctx, item)
	if err == nil {
		return resp, nil
	}
	errs = append(errs, err)
	g.logger.Warn("text search failed", "item_id", item.ID, "error", err)

	if visualOK {
		// The visual provider answered; its empty result stands.
		return visualRes, nil
	}

	err = fmt.Errorf("%w: %w", domain.ErrAllProvidersFailed, errors.Join(errs...))
	span.RecordError(err)
	span.SetStatus(codes.Error, "all providers failed")
	return domain.SearchResponse{}, err
}

func (g *Gateway) visualSearch(ctx context.Context, item domain.Item) (domain.SearchResponse, error) {
	upCtx, cancel := context.WithTimeout(ctx, g.timeout)
	imageURL, err := g.uploader.Upload(upCtx, item.Image)
	cancel()
	if err != nil {
		return domain.SearchResponse{}, fmt.Errorf("uploading image: %w", err)
	}
	defer g.cleanup(ctx, item.ID, imageURL)

	return g.search(ctx, serpapi.Request{
		Engine:   g.visualEngine,
		ImageURL: imageURL,
	}, "")
}

func (g *Gateway) textSearch(ctx context.Context, item domain.Item) (domain.SearchResponse, error) {
	query := g.queries.Build(item.Title, item.HasImage())
	return g.search(ctx, serpapi.Request{
		Engine:   g.textEngine,
		Query:    query,
		Location: g.location,
	}, query)
}

func (g *Gateway) search(ctx context.Context, req serpapi.Request, query string) (domain.SearchResponse, error) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	raw, err := g.client.Search(ctx, req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) && !errors.Is(err, domain.ErrProviderUnavailable) {
			err = fmt.Errorf("%w: %w", domain.ErrProviderUnavailable, err)
		}
		return domain.SearchResponse{}, fmt.Errorf("%s search: %w", req.Engine, err)
	}

	resp := serpapi.ToSearchResponse(raw, req.Engine, g.normalizer, g.nowFunc())
	resp.Query = query
	return resp, nil
}

// cleanup removes the uploaded photo. Failures only leave an orphaned
// object behind, so they are logged and dropped.
func (g *Gateway) cleanup(ctx context.Context, itemID, imageURL string) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cleanupTimeout)
	defer cancel()

	if err := g.uploader.Delete(ctx, imageURL); err != nil {
		g.logger.Warn("failed to delete uploaded image",
			"item_id", itemID, "url", imageURL, "error", err)
	}
}
