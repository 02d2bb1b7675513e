package retention

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// Handler handles HTTP requests for retention operations.
type Handler struct {
	service RetentionService
}

// NewHandler creates a new retention handler.
func NewHandler(service RetentionService) *Handler {
	return &Handler{service: service}
}

// Purge runs an on-demand purge of expired events
// (POST /api/retention/purge).
func (h *Handler) Purge(c echo.Context) error {
	deleted, err := h.service.Purge(c.Request().Context())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]int64{"deleted": deleted})
}
