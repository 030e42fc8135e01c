// Package model defines shared types for the proxy.
package model

import (
	"context"
	"io"
	"net/http"
)

// ProxyRequest represents an inbound request to be forwarded upstream.
type ProxyRequest struct {
	Ctx    context.Context
	Method string
	// PathQuery is the escaped request target as received, e.g. "/foo/bar?x=1".
	PathQuery     string
	Header        http.Header
	Body          io.ReadCloser
	ContentLength int64
}

// ProxyResponse represents the upstream response to be streamed back.
type ProxyResponse struct {
	StatusCode int
	Header     http.Header
	Body       io.ReadCloser
}
