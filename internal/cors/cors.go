// Package cors appends the permissive cross-origin response headers the
// proxy puts on every forwarded and preflight response.
package cors

import "net/http"

// Header names and fixed values.
const (
	HeaderAllowOrigin      = "Access-Control-Allow-Origin"
	HeaderRequestMethod    = "Access-Control-Request-Method"
	HeaderAllowHeaders     = "Access-Control-Allow-Headers"
	HeaderAllowCredentials = "Access-Control-Allow-Credentials"

	AllowOrigin      = "*"
	RequestMethods   = "GET,POST,PUT,DELETE,OPTIONS,HEAD,PATCH"
	AllowCredentials = "true"

	// DefaultAllowHeaders is used when no allow-headers value is configured.
	DefaultAllowHeaders = "Content-Type,Authorization"
)

// Annotate appends the four CORS headers to h. Existing values are kept, so
// calling Annotate twice leaves two values for each header.
// An empty allowHeaders selects DefaultAllowHeaders.
func Annotate(h http.Header, allowHeaders string) {
	if allowHeaders == "" {
		allowHeaders = DefaultAllowHeaders
	}

	h.Add(HeaderAllowOrigin, AllowOrigin)
	h.Add(HeaderRequestMethod, RequestMethods)
	h.Add(HeaderAllowHeaders, allowHeaders)
	h.Add(HeaderAllowCredentials, AllowCredentials)
}
