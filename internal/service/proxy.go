// Package service implements the core proxy forwarding logic.
package service

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"cors-proxy/internal/client"
	"cors-proxy/internal/config"
	"cors-proxy/internal/model"
)

// ErrInvalidTarget is returned when the inbound path cannot be turned into a
// valid upstream URL.
var ErrInvalidTarget = errors.New("invalid upstream target")

// hopByHopHeaders are connection-scoped and never forwarded in either direction.
var hopByHopHeaders = []string{
	"Connection",
	"Keep-Alive",
	"Proxy-Authenticate",
	"Proxy-Authorization",
	"Proxy-Connection",
	"TE",
	"Trailer",
	"Transfer-Encoding",
	"Upgrade",
}

// ProxyService rewrites inbound requests onto the upstream base URL and
// forwards them through the shared upstream client.
type ProxyService struct {
	client  *client.UpstreamClient
	logger  *slog.Logger
	baseURL string
}

// NewProxyService creates a ProxyService.
func NewProxyService(c *client.UpstreamClient, cfg *config.Config, logger *slog.Logger) (*ProxyService, error) {
	u, err := url.Parse(cfg.Upstream.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse upstream base url: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("upstream base url %q is not absolute", cfg.Upstream.BaseURL)
	}
	return &ProxyService{
		client:  c,
		logger:  logger.With("component", "proxy_service"),
		baseURL: cfg.Upstream.BaseURL,
	}, nil
}

// Forward sends a ProxyRequest to the upstream and returns the response.
// Method, headers and body pass through unchanged; only the target changes.
// The caller is responsible for closing the response body.
func (s *ProxyService) Forward(pr *model.ProxyRequest) (*model.ProxyResponse, error) {
	target, err := BuildUpstreamURL(s.baseURL, pr.PathQuery)
	if err != nil {
		return nil, err
	}

	s.logger.Debug("forwarding request",
		"uri", target.String(),
		"method", pr.Method,
	)

	req, err := http.NewRequestWithContext(pr.Ctx, pr.Method, target.String(), pr.Body)
	if err != nil {
		return nil, fmt.Errorf("build upstream request: %w", err)
	}
	req.Header = stripHopByHop(pr.Header)
	req.ContentLength = pr.ContentLength
	if pr.ContentLength == 0 {
		req.Body = http.NoBody
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("forward to upstream: %w", err)
	}

	resp.Header = stripHopByHop(resp.Header)
	return resp, nil
}

// BuildUpstreamURL joins base and the inbound path+query with exactly one
// slash between them, whether or not pathQuery starts with one. base must not
// end with a slash.
func BuildUpstreamURL(base, pathQuery string) (*url.URL, error) {
	rest := strings.TrimPrefix(pathQuery, "/")

	u, err := url.Parse(base + "/" + rest)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidTarget, err)
	}
	return u, nil
}

// stripHopByHop returns a copy of src without hop-by-hop headers, including
// any named by the Connection header.
func stripHopByHop(src http.Header) http.Header {
	dst := src.Clone()
	if dst == nil {
		return make(http.Header)
	}

	for _, v := range dst.Values("Connection") {
		for _, name := range strings.Split(v, ",") {
			if name = strings.TrimSpace(name); name != "" {
				dst.Del(name)
			}
		}
	}
	for _, h := range hopByHopHeaders {
		dst.Del(h)
	}
	return dst
}
