package handler

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"net/url"

	"github.com/labstack/echo/v4"

	"inbox-gateway/internal/model"
	"inbox-gateway/internal/service"
)

// ForwardHandler relays whitelisted routes to the upstream API and streams
// the response back.
type ForwardHandler struct {
	forwarder *service.Forwarder
	logger    *slog.Logger
}

// NewForwardHandler creates a ForwardHandler.
func NewForwardHandler(f *service.Forwarder, logger *slog.Logger) *ForwardHandler {
	return &ForwardHandler{
		forwarder: f,
		logger:    logger.With("component", "forward_handler"),
	}
}

// To returns an echo handler that forwards to the upstream path built by
// upstreamPath from the matched route.
func (h *ForwardHandler) To(upstreamPath func(c echo.Context) string) echo.HandlerFunc {
	return func(c echo.Context) error {
		return h.relay(c, upstreamPath(c))
	}
}

func (h *ForwardHandler) relay(c echo.Context, upstreamPath string) error {
	req := c.Request()

	resp, err := h.forwarder.Forward(req.Context(), model.NewInboundRequest(req), upstreamPath)
	if err != nil {
		return h.mapError(c, err)
	}
	defer func() { _ = resp.Close() }()

	// Upstream headers replace anything middleware already set under the same name.
	header := c.Response().Header()
	for _, name := range resp.Header.Names() {
		header.Del(name)
	}
	for name, value := range resp.Header.All() {
		header.Add(name, value)
	}

	c.Response().WriteHeader(resp.StatusCode)

	// The status is already on the wire, so a failure from here on can only
	// truncate the body; it is logged for observability.
	for chunk, err := range resp.Body.Chunks() {
		if err != nil {
			h.logger.Error("reading upstream body",
				"err", err,
				"path", req.URL.Path,
			)
			break
		}
		if _, err := c.Response().Write(chunk); err != nil {
			h.logger.Warn("writing response body",
				"err", err,
				"path", req.URL.Path,
			)
			break
		}
		c.Response().Flush()
	}

	return nil
}

func (h *ForwardHandler) mapError(c echo.Context, err error) error {
	// Inbound problems (e.g. body over the size limit) keep their own status.
	var he *echo.HTTPError
	if errors.As(err, &he) {
		return he
	}

	h.logger.Error("forward error",
		"err", err,
		"path", c.Request().URL.Path,
	)

	if errors.Is(err, context.Canceled) {
		return c.JSON(http.StatusBadGateway, map[string]string{
			"error": "client disconnected",
		})
	}

	var upErr *service.UpstreamError
	if errors.As(err, &upErr) && upErr.Timeout() {
		return c.JSON(http.StatusGatewayTimeout, map[string]string{
			"error": "upstream request timed out",
		})
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return c.JSON(http.StatusBadGateway, map[string]string{
			"error": "upstream host unreachable",
		})
	}

	if errors.Is(err, service.ErrUpstreamUnreachable) {
		return c.JSON(http.StatusBadGateway, map[string]string{
			"error": "upstream connection failed",
		})
	}

	return c.JSON(http.StatusBadGateway, map[string]string{
		"error": "upstream request failed",
	})
}

// Static returns an upstream path builder for a fixed path.
func Static(path string) func(echo.Context) string {
	return func(echo.Context) string { return path }
}

// PathParam returns the named route parameter escaped as a single path
// segment. A value the router left escaped is unescaped first so it is not
// escaped twice.
func PathParam(c echo.Context, name string) string {
	v := c.Param(name)
	if u, err := url.PathUnescape(v); err == nil {
		v = u
	}
	return url.PathEscape(v)
}
