// Package middleware provides HTTP middleware for the Scribe Echo server.
// Middleware is applied globally (all routes) or per-route group depending
// on the middleware type. See internal/app/routes.go for registration.
package middleware

import (
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

// RequestIDHeader is the response header carrying the request correlation ID.
const RequestIDHeader = "X-Request-ID"

// requestIDKey is the Echo context key under which the ID is stored.
const requestIDKey = "request_id"

// RequestID returns middleware that assigns each request a UUID correlation
// ID. If the client already sent one in X-Request-ID it is reused, so IDs
// propagate through the host CMS's reverse proxy. The ID is echoed back in
// the response and attached to the request log line.
func RequestID() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			id := c.Request().Header.Get(RequestIDHeader)
			if id == "" {
				id = uuid.NewString()
			}

			c.Set(requestIDKey, id)
			c.Response().Header().Set(RequestIDHeader, id)

			return next(c)
		}
	}
}

// RequestIDFrom returns the correlation ID assigned to this request, or ""
// if the RequestID middleware is not installed.
func RequestIDFrom(c echo.Context) string {
	if id, ok := c.Get(requestIDKey).(string); ok {
		return id
	}
	return ""
}
