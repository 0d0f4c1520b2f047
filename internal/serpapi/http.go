package serpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/donaldgifford/market-comps/internal/metrics"
	domain "github.com/donaldgifford/market-comps/pkg/types"
)

const (
	defaultBaseURL = "https://serpapi.com/search"
	// Error bodies are echoed into errors; cap what is kept.
	maxErrorBody = 512
)

var tracer = otel.Tracer("github.com/donaldgifford/market-comps/internal/serpapi")

// HTTPClient implements Client over the provider's HTTPS GET API.
type HTTPClient struct {
	apiKey      string
	baseURL     string
	client      *http.Client
	rateLimiter *RateLimiter
	logger      *slog.Logger
}

// Option configures the HTTPClient.
type Option func(*HTTPClient)

// WithBaseURL overrides the default endpoint.
func WithBaseURL(u string) Option {
	return func(c *HTTPClient) {
		c.baseURL = u
	}
}

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *HTTPClient) {
		c.client = hc
	}
}

// WithRateLimiter makes every Search wait on r first.
func WithRateLimiter(r *RateLimiter) Option {
	return func(c *HTTPClient) {
		c.rateLimiter = r
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *HTTPClient) {
		c.logger = l
	}
}

// NewHTTPClient creates a client authenticating with apiKey.
func NewHTTPClient(apiKey string, opts ...Option) *HTTPClient {
	c := &HTTPClient{
		apiKey:  apiKey,
		baseURL: defaultBaseURL,
		client:  &http.Client{Timeout: 30 * time.Second},
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Search implements Client.
func (c *HTTPClient) Search(ctx context.Context, req Request) (*Response, error) {
	ctx, span := tracer.Start(ctx, "serpapi.Search")
	defer span.End()
	span.SetAttributes(
		attribute.String("serpapi.engine", req.Engine),
		attribute.Bool("serpapi.visual", req.Visual()),
	)

	resp, err := c.search(ctx, req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return resp, err
}

func (c *HTTPClient) search(ctx context.Context, req Request) (*Response, error) {
	u, err := c.buildSearchURL(req)
	if err != nil {
		return nil, err
	}

	if c.rateLimiter != nil {
		if err := c.rateLimiter.Wait(ctx); err != nil {
			if errors.Is(err, ErrQuotaExhausted) {
				metrics.ProviderDailyLimitHits.Inc()
			}
			metrics.ProviderRequestsTotal.WithLabelValues(req.Engine, "rate_limited").Inc()
			return nil, fmt.Errorf("rate limit: %w", err)
		}
		metrics.ProviderDailyUsage.Set(float64(c.rateLimiter.Used()))
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, u, http.NoBody)
	if err != nil {
		return nil, invalid(req.Engine, "creating HTTP request: "+err.Error())
	}
	httpReq.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.client.Do(httpReq)
	metrics.ProviderRequestDuration.WithLabelValues(req.Engine).Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.ProviderRequestsTotal.WithLabelValues(req.Engine, "network_error").Inc()
		return nil, &ProviderError{
			Engine:  req.Engine,
			Message: "executing search request",
			Err:     fmt.Errorf("%w: %w", domain.ErrProviderUnavailable, err),
		}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		metrics.ProviderRequestsTotal.WithLabelValues(req.Engine, "network_error").Inc()
		return nil, unavailable(req.Engine, resp.StatusCode, "reading response body: "+err.Error())
	}

	if resp.StatusCode != http.StatusOK {
		metrics.ProviderRequestsTotal.WithLabelValues(req.Engine, "status_"+strconv.Itoa(resp.StatusCode)).Inc()
		return nil, unavailable(req.Engine, resp.StatusCode, truncate(string(body), maxErrorBody))
	}

	var apiResp Response
	if err := json.Unmarshal(body, &apiResp); err != nil {
		metrics.ProviderRequestsTotal.WithLabelValues(req.Engine, "decode_error").Inc()
		return nil, decodeFailed(req.Engine, fmt.Errorf("parsing search response: %w", err))
	}

	if apiResp.Error != nil {
		// Empty result sets are reported as an error string on a 200.
		c.logger.Debug("search provider returned message",
			"engine", req.Engine, "message", *apiResp.Error)
	}
	metrics.ProviderRequestsTotal.WithLabelValues(req.Engine, "ok").Inc()
	return &apiResp, nil
}

func (c *HTTPClient) buildSearchURL(req Request) (string, error) {
	if c.apiKey == "" {
		return "", invalid(req.Engine, "api key is not configured")
	}
	if req.Engine == "" {
		return "", invalid(req.Engine, "engine is required")
	}

	params := url.Values{}
	params.Set("engine", req.Engine)
	params.Set("api_key", c.apiKey)

	switch {
	case req.ImageURL != "":
		if _, err := url.ParseRequestURI(req.ImageURL); err != nil {
			return "", invalid(req.Engine, "malformed image url: "+err.Error())
		}
		params.Set("url", req.ImageURL)
	case req.Query != "":
		params.Set("q", req.Query)
	default:
		return "", invalid(req.Engine, "query or image url is required")
	}

	if req.Location != "" {
		params.Set("location", req.Location)
	}
	if req.Condition != "" {
		params.Set("condition", req.Condition)
	}
	if req.Page > 1 {
		params.Set("page", strconv.Itoa(req.Page))
	}
	if req.Num > 0 {
		params.Set("num", strconv.Itoa(req.Num))
	}

	return c.baseURL + "?" + params.Encode(), nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
