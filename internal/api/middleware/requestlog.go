package middleware

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

const requestIDHeader = "X-Request-ID"

type requestIDKey struct{}

// RequestID returns the request ID stored by RequestLog, or "".
func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

// RequestLog returns Echo middleware that assigns every request an ID and
// logs it on completion. The ID is taken from X-Request-ID when the client
// sends one, echoed in the response, and stored in the request context.
// Server errors log at error level and client errors at warn.
func RequestLog(log *slog.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()

			reqID := c.Request().Header.Get(requestIDHeader)
			if reqID == "" {
				reqID = uuid.NewString()
			}

			c.Set("request_id", reqID)
			c.Response().Header().Set(requestIDHeader, reqID)
			ctx := context.WithValue(c.Request().Context(), requestIDKey{}, reqID)
			c.SetRequest(c.Request().WithContext(ctx))

			err := next(c)
			if err != nil {
				// Let echo write the error so the logged status is final.
				c.Error(err)
			}

			status := c.Response().Status
			level := slog.LevelInfo
			switch {
			case status >= 500:
				level = slog.LevelError
			case status >= 400:
				level = slog.LevelWarn
			}

			attrs := []any{
				"method", c.Request().Method,
				"path", c.Request().URL.Path,
				"status", status,
				"duration_ms", time.Since(start).Milliseconds(),
				"request_id", reqID,
			}
			if itemID := c.Param("item_id"); itemID != "" {
				attrs = append(attrs, "item_id", itemID)
			}
			log.Log(c.Request().Context(), level, "request", attrs...)

			return nil
		}
	}
}
