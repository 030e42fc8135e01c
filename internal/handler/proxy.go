// Package handler adapts the proxy service to Echo.
package handler

import (
	"io"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"cors-proxy/internal/config"
	"cors-proxy/internal/cors"
	"cors-proxy/internal/metrics"
	"cors-proxy/internal/model"
	"cors-proxy/internal/service"
)

// ProxyHandler forwards every inbound request to the upstream and adds CORS headers.
type ProxyHandler struct {
	service      *service.ProxyService
	logger       *slog.Logger
	metrics      *metrics.Metrics
	allowHeaders string
}

// NewProxyHandler creates a ProxyHandler. The metrics parameter may be nil.
func NewProxyHandler(svc *service.ProxyService, cfg *config.Config, logger *slog.Logger, m *metrics.Metrics) *ProxyHandler {
	return &ProxyHandler{
		service:      svc,
		logger:       logger.With("component", "proxy_handler"),
		metrics:      m,
		allowHeaders: cfg.CORS.AllowHeaders,
	}
}

// Handle answers OPTIONS preflights locally and proxies everything else to
// the upstream, streaming the response back.
func (h *ProxyHandler) Handle(c echo.Context) error {
	req := c.Request()

	if req.Method == http.MethodOptions {
		return h.preflight(c)
	}

	pr := &model.ProxyRequest{
		Ctx:           req.Context(),
		Method:        req.Method,
		PathQuery:     req.URL.RequestURI(),
		Header:        req.Header,
		Body:          req.Body,
		ContentLength: req.ContentLength,
	}

	resp, err := h.service.Forward(pr)
	if err != nil {
		return h.mapError(c, err)
	}
	defer func() { _ = resp.Body.Close() }()

	// Upstream headers pass through unchanged, CORS headers are appended.
	for key, vals := range resp.Header {
		for _, v := range vals {
			c.Response().Header().Add(key, v)
		}
	}
	cors.Annotate(c.Response().Header(), h.allowHeaders)
	c.Response().WriteHeader(resp.StatusCode)

	// The status line is already sent, so a copy failure can only truncate
	// the body; it is logged and the connection is left to the server.
	if _, err := io.Copy(c.Response(), resp.Body); err != nil {
		h.logger.Error("streaming response body",
			"err", err,
			"path", req.URL.Path,
		)
	}
	return nil
}

func (h *ProxyHandler) preflight(c echo.Context) error {
	h.logger.Info("answering preflight request", "path", c.Request().URL.Path)
	if h.metrics != nil {
		h.metrics.PreflightTotal.Inc()
	}

	cors.Annotate(c.Response().Header(), h.allowHeaders)
	return c.NoContent(http.StatusOK)
}

// mapError reports every forwarding failure as 400 with the error text.
func (h *ProxyHandler) mapError(c echo.Context, err error) error {
	h.logger.Error("proxy error",
		"err", err,
		"method", c.Request().Method,
		"path", c.Request().URL.Path,
	)
	return c.String(http.StatusBadRequest, err.Error())
}
