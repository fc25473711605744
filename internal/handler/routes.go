package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"inbox-gateway/internal/config"
	"inbox-gateway/internal/metrics"
)

// Route maps one local endpoint 1:1 to an upstream path.
type Route struct {
	Method   string
	Path     string
	Upstream func(c echo.Context) string
}

// ForwardedRoutes is the whitelist of endpoints relayed to the upstream API.
var ForwardedRoutes = []Route{
	{http.MethodGet, "/health", Static("/health")},
	{http.MethodPost, "/logout", Static("/logout")},
	{http.MethodGet, "/accounts", Static("/accounts")},
	{http.MethodDelete, "/accounts/:id", func(c echo.Context) string {
		return "/accounts/" + PathParam(c, "id")
	}},
	{http.MethodGet, "/accounts/:id/messages", func(c echo.Context) string {
		return "/accounts/" + PathParam(c, "id") + "/messages"
	}},
	{http.MethodGet, "/oauth/google/start", Static("/oauth/google/start")},
}

// RegisterRoutes wires all route handlers onto the Echo instance.
// The metrics parameter is optional; the metrics endpoint is only served
// when it is non-nil and enabled in config.
func RegisterRoutes(e *echo.Echo, cfg *config.Config, fwd *ForwardHandler, health *HealthHandler, m *metrics.Metrics) {
	e.GET("/healthz", health.Healthz)
	e.GET("/proxy/status", health.Status)

	if m != nil && cfg.Metrics.Enabled {
		e.GET(cfg.Metrics.Path, echo.WrapHandler(promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{})))
	}

	g := e.Group(cfg.Server.RoutePrefix)
	for _, r := range ForwardedRoutes {
		g.Add(r.Method, r.Path, fwd.To(r.Upstream))
	}
}
