// Package middleware provides Echo middleware for the market-comps server.
package middleware

import (
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/donaldgifford/market-comps/internal/metrics"
)

// unmatchedPath labels requests that hit no registered route, keeping raw
// URLs out of metric labels.
const unmatchedPath = "unmatched"

var healthGauges = map[string]prometheus.Gauge{
	"/healthz": metrics.HealthzUp,
	"/readyz":  metrics.ReadyzUp,
}

// Metrics returns Echo middleware that records request duration and count
// labeled by route template. Probe and scrape paths only update the health
// gauges.
func Metrics() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			path := c.Request().URL.Path
			if path == "/metrics" {
				return next(c)
			}
			if gauge, ok := healthGauges[path]; ok {
				err := next(c)
				status := statusOf(c, err)
				if status >= 200 && status < 300 {
					gauge.Set(1)
				} else {
					gauge.Set(0)
				}
				return err
			}

			start := time.Now()
			err := next(c)

			route := c.Path()
			if route == "" {
				route = unmatchedPath
			}
			status := strconv.Itoa(statusOf(c, err))
			method := c.Request().Method

			metrics.HTTPRequestDuration.WithLabelValues(method, route, status).Observe(time.Since(start).Seconds())
			metrics.HTTPRequestsTotal.WithLabelValues(method, route, status).Inc()

			return err
		}
	}
}

// statusOf reports the status the response has or will have once echo's
// error handler writes err.
func statusOf(c echo.Context, err error) int {
	if c.Response().Committed || err == nil {
		return c.Response().Status
	}
	if he, ok := err.(*echo.HTTPError); ok { //nolint:errorlint // echo returns it unwrapped
		return he.Code
	}
	return 500
}
