// Package upload publishes item photos to an object store so the visual
// search provider can fetch them by URL.
package upload

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/donaldgifford/market-comps/internal/metrics"
	domain "github.com/donaldgifford/market-comps/pkg/types"
)

const defaultPrefix = "serp-api"

var tracer = otel.Tracer("github.com/donaldgifford/market-comps/internal/upload")

// Uploader stores image bytes and returns a dereferenceable public URL.
type Uploader interface {
	Upload(ctx context.Context, image []byte) (string, error)
	Delete(ctx context.Context, publicURL string) error
}

// HTTPUploader writes objects with HTTP PUT, which S3-compatible stores,
// GCS and most CDN origins accept for pre-authorized buckets.
type HTTPUploader struct {
	endpoint      string
	publicBaseURL string
	prefix        string
	token         string
	client        *http.Client
	nameFunc      func() string
	logger        *slog.Logger
}

// Option configures the HTTPUploader.
type Option func(*HTTPUploader)

// WithPublicBaseURL sets the base of returned URLs when it differs from
// the write endpoint.
func WithPublicBaseURL(u string) Option {
	return func(h *HTTPUploader) {
		h.publicBaseURL = strings.TrimRight(u, "/")
	}
}

// WithPrefix sets the object name prefix. The default is "serp-api".
func WithPrefix(p string) Option {
	return func(h *HTTPUploader) {
		h.prefix = strings.Trim(p, "/")
	}
}

// WithToken sends a bearer token on every request.
func WithToken(t string) Option {
	return func(h *HTTPUploader) {
		h.token = t
	}
}

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(h *HTTPUploader) {
		h.client = hc
	}
}

// WithNameFunc overrides object name generation, for tests.
func WithNameFunc(f func() string) Option {
	return func(h *HTTPUploader) {
		h.nameFunc = f
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(h *HTTPUploader) {
		h.logger = l
	}
}

// NewHTTPUploader creates an uploader writing under endpoint.
func NewHTTPUploader(endpoint string, opts ...Option) *HTTPUploader {
	h := &HTTPUploader{
		endpoint: strings.TrimRight(endpoint, "/"),
		prefix:   defaultPrefix,
		client:   &http.Client{Timeout: 30 * time.Second},
		nameFunc: func() string { return uuid.NewString() },
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(h)
	}
	if h.publicBaseURL == "" {
		h.publicBaseURL = h.endpoint
	}
	return h
}

// Upload implements Uploader.
func (h *HTTPUploader) Upload(ctx context.Context, image []byte) (string, error) {
	ctx, span := tracer.Start(ctx, "upload.Upload")
	defer span.End()

	if len(image) == 0 {
		return "", fmt.Errorf("%w: image is empty", domain.ErrInvalidRequest)
	}

	ct := contentType(image)
	object := h.objectName(h.nameFunc() + extension(ct))
	span.SetAttributes(attribute.String("upload.object", object), attribute.Int("upload.bytes", len(image)))

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, h.endpoint+"/"+object, bytes.NewReader(image))
	if err != nil {
		return "", fmt.Errorf("%w: creating upload request: %w", domain.ErrInvalidRequest, err)
	}
	req.Header.Set("Content-Type", ct)
	h.authorize(req)

	if err := h.do(req); err != nil {
		metrics.UploadsTotal.WithLabelValues("error").Inc()
		return "", fmt.Errorf("uploading image: %w", err)
	}

	metrics.UploadsTotal.WithLabelValues("ok").Inc()
	return h.publicBaseURL + "/" + object, nil
}

// Delete implements Uploader. Deleting an object that is already gone
// succeeds.
func (h *HTTPUploader) Delete(ctx context.Context, publicURL string) error {
	object, ok := strings.CutPrefix(publicURL, h.publicBaseURL+"/")
	if !ok || object == "" {
		return fmt.Errorf("%w: %q is not under %s", domain.ErrInvalidRequest, publicURL, h.publicBaseURL)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, h.endpoint+"/"+object, http.NoBody)
	if err != nil {
		return fmt.Errorf("%w: creating delete request: %w", domain.ErrInvalidRequest, err)
	}
	h.authorize(req)

	if err := h.do(req); err != nil {
		return fmt.Errorf("deleting image: %w", err)
	}
	return nil
}

func (h *HTTPUploader) objectName(file string) string {
	if h.prefix == "" {
		return file
	}
	return h.prefix + "/" + file
}

func (h *HTTPUploader) authorize(req *http.Request) {
	if h.token != "" {
		req.Header.Set("Authorization", "Bearer "+h.token)
	}
}

func (h *HTTPUploader) do(req *http.Request) error {
	resp, err := h.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %w", domain.ErrProviderUnavailable, err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return nil
	case req.Method == http.MethodDelete && resp.StatusCode == http.StatusNotFound:
		return nil
	default:
		return fmt.Errorf("%w: object store returned status %d", domain.ErrProviderUnavailable, resp.StatusCode)
	}
}

var extensions = map[string]string{
	"image/png":  ".png",
	"image/webp": ".webp",
	"image/gif":  ".gif",
	"image/bmp":  ".bmp",
}

// extension names the object after its sniffed type. Anything unrecognized
// is uploaded as JPEG.
func extension(contentType string) string {
	if ext, ok := extensions[contentType]; ok {
		return ext
	}
	return ".jpg"
}

func contentType(image []byte) string {
	ct := http.DetectContentType(image)
	if strings.HasPrefix(ct, "image/") {
		return ct
	}
	return "image/jpeg"
}
