package middleware

import (
	"fmt"
	"log/slog"
	"net/http"
	"runtime"

	"github.com/labstack/echo/v4"
)

// problem mirrors the RFC 9457 body huma writes for its own errors, so
// clients see one error shape.
type problem struct {
	Title     string `json:"title"`
	Status    int    `json:"status"`
	Detail    string `json:"detail,omitempty"`
	RequestID string `json:"request_id,omitempty"`
}

// Recovery returns Echo middleware that recovers from panics, logs the
// stack, and answers 500 with a problem+json body.
func Recovery(log *slog.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) (err error) {
			defer func() {
				r := recover()
				if r == nil {
					return
				}
				if r == http.ErrAbortHandler { //nolint:errorlint // sentinel panic value
					panic(r)
				}

				buf := make([]byte, 8192)
				n := runtime.Stack(buf, false)
				reqID := RequestID(c.Request().Context())

				log.ErrorContext(c.Request().Context(), "panic recovered",
					"error", fmt.Sprint(r),
					"method", c.Request().Method,
					"path", c.Request().URL.Path,
					"request_id", reqID,
					"stack", string(buf[:n]),
				)

				c.Response().Header().Set(echo.HeaderContentType, "application/problem+json")
				err = c.JSON(http.StatusInternalServerError, problem{
					Title:     http.StatusText(http.StatusInternalServerError),
					Status:    http.StatusInternalServerError,
					RequestID: reqID,
				})
			}()
			return next(c)
		}
	}
}
