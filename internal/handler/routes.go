package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// routedMethods are the methods echo's Any registers. Requests with any other
// method would get the router's 405 and are sent to the proxy instead.
var routedMethods = map[string]bool{
	http.MethodConnect: true,
	http.MethodDelete:  true,
	http.MethodGet:     true,
	http.MethodHead:    true,
	http.MethodOptions: true,
	http.MethodPatch:   true,
	http.MethodPost:    true,
	"PROPFIND":         true,
	http.MethodPut:     true,
	http.MethodTrace:   true,
	"REPORT":           true,
}

// RegisterRoutes sends every path and method to the proxy handler.
func RegisterRoutes(e *echo.Echo, proxy *ProxyHandler) {
	e.Use(AnyMethod(proxy.Handle))
	e.Any("/*", proxy.Handle)
}

// AnyMethod returns an Echo middleware that hands requests whose method the
// router does not know to h. It runs inside the router, so middleware added
// earlier with Use still wraps h.
func AnyMethod(h echo.HandlerFunc) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if !routedMethods[c.Request().Method] {
				return h(c)
			}
			return next(c)
		}
	}
}
