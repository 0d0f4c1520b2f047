// Package handlers implements the HTTP operations of the market-comps API.
package handlers

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/donaldgifford/market-comps/internal/kv"
)

// HealthHandler provides health and readiness endpoints.
type HealthHandler struct {
	store kv.Store
}

// NewHealthHandler creates a new HealthHandler.
func NewHealthHandler(s kv.Store) *HealthHandler {
	return &HealthHandler{store: s}
}

// Healthz returns 200 if the process is running.
func (*HealthHandler) Healthz(c echo.Context) error {
	return c.JSON(http.StatusOK, StatusResponse{Status: "ok"})
}

// Readyz returns 200 if the key-value backend is reachable, 503 otherwise.
func (h *HealthHandler) Readyz(c echo.Context) error {
	if err := kv.Ping(c.Request().Context(), h.store); err != nil {
		return c.JSON(http.StatusServiceUnavailable, StatusResponse{Status: "unavailable"})
	}
	return c.JSON(http.StatusOK, StatusResponse{Status: "ready"})
}
