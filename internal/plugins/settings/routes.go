package settings

import (
	"github.com/labstack/echo/v4"
)

// RegisterRoutes sets up the settings routes on the given Echo instance.
func RegisterRoutes(e *echo.Echo, h *Handler) {
	g := e.Group("/api/settings")

	g.GET("", h.Get)
	g.PUT("", h.Update)
}
