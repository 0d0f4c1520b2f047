package middleware

import (
	"bytes"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRequestLog(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name          string
		method        string
		path          string
		handler       echo.HandlerFunc
		providedReqID string
		wantStatus    int
		wantLogFields []string
	}{
		{
			name:   "logs POST request with generated ID",
			method: http.MethodPost,
			path:   "/api/v1/market-data",
			handler: func(c echo.Context) error {
				return c.NoContent(http.StatusOK)
			},
			wantStatus: http.StatusOK,
			wantLogFields: []string{
				"level=INFO",
				"method=POST",
				"path=/api/v1/market-data",
				"status=200",
				"duration_ms=",
				"request_id=",
			},
		},
		{
			name:   "client errors log at warn",
			method: http.MethodDelete,
			path:   "/api/v1/items/x/listings/y",
			handler: func(c echo.Context) error {
				return c.NoContent(http.StatusNotFound)
			},
			wantStatus:    http.StatusNotFound,
			wantLogFields: []string{"level=WARN", "status=404"},
		},
		{
			name:   "returned errors are written before logging",
			method: http.MethodGet,
			path:   "/boom",
			handler: func(_ echo.Context) error {
				return errors.New("boom")
			},
			wantStatus:    http.StatusInternalServerError,
			wantLogFields: []string{"level=ERROR", "status=500"},
		},
		{
			name:   "uses provided request ID",
			method: http.MethodGet,
			path:   "/test",
			handler: func(c echo.Context) error {
				if RequestID(c.Request().Context()) != "custom-req-id-123" {
					return c.NoContent(http.StatusTeapot)
				}
				return c.NoContent(http.StatusOK)
			},
			providedReqID: "custom-req-id-123",
			wantStatus:    http.StatusOK,
			wantLogFields: []string{"request_id=custom-req-id-123"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			var buf bytes.Buffer
			logger := slog.New(slog.NewTextHandler(&buf, nil))

			e := echo.New()
			req := httptest.NewRequest(tt.method, tt.path, http.NoBody)
			if tt.providedReqID != "" {
				req.Header.Set(requestIDHeader, tt.providedReqID)
			}
			rec := httptest.NewRecorder()
			c := e.NewContext(req, rec)

			err := RequestLog(logger)(tt.handler)(c)
			require.NoError(t, err)
			assert.Equal(t, tt.wantStatus, rec.Code)

			for _, field := range tt.wantLogFields {
				assert.Contains(t, buf.String(), field)
			}

			respID := rec.Header().Get(requestIDHeader)
			assert.NotEmpty(t, respID)
			if tt.providedReqID != "" {
				assert.Equal(t, tt.providedReqID, respID)
			}
			assert.Equal(t, respID, c.Get("request_id"))
		})
	}
}

func TestRequestLog_ItemID(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	e := echo.New()
	e.Use(RequestLog(slog.New(slog.NewTextHandler(&buf, nil))))
	e.POST("/api/v1/items/:item_id/invalidate", func(c echo.Context) error {
		return c.NoContent(http.StatusNoContent)
	})

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/items/abc/invalidate", http.NoBody))

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Contains(t, buf.String(), "item_id=abc")
}

func TestRequestID_Missing(t *testing.T) {
	t.Parallel()
	assert.Empty(t, RequestID(httptest.NewRequest(http.MethodGet, "/", http.NoBody).Context()))
}
