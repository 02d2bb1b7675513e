package retention

import (
	"github.com/labstack/echo/v4"
)

// RegisterRoutes sets up the retention routes on the given Echo instance.
func RegisterRoutes(e *echo.Echo, h *Handler) {
	e.POST("/api/retention/purge", h.Purge)
}
