package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"inbox-gateway/internal/service"
)

// Version is a string type for dependency injection of the build version.
type Version string

// HealthHandler serves the gateway's own health and status endpoints.
type HealthHandler struct {
	forwarder *service.Forwarder
	version   Version
}

// NewHealthHandler creates a HealthHandler.
func NewHealthHandler(f *service.Forwarder, v Version) *HealthHandler {
	return &HealthHandler{forwarder: f, version: v}
}

// Healthz returns a simple OK response for liveness probes. Unlike /health it
// never touches the upstream.
func (h *HealthHandler) Healthz(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{
		"status": "ok",
	})
}

// Status returns gateway status information.
func (h *HealthHandler) Status(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{
		"status":       "ok",
		"version":      string(h.version),
		"upstream_url": h.forwarder.BaseURL(),
	})
}
