package activity

import (
	"github.com/labstack/echo/v4"
)

// RegisterRoutes sets up all activity-log routes on the given Echo instance.
// Access control is the host platform's concern: requests reach this service
// through the host's authenticated admin proxy, which forwards the acting
// user in the X-Scribe-User header.
func RegisterRoutes(e *echo.Echo, h *Handler) {
	g := e.Group("/api/activity")

	g.GET("", h.List)
	g.GET("/:id", h.Get)
	g.POST("", h.Record)
	g.POST("/session", h.Heartbeat)
}
