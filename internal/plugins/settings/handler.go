package settings

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/scribeworks/scribe/internal/apperror"
)

// Handler handles HTTP requests for the settings surface.
type Handler struct {
	service SettingsService
}

// NewHandler creates a new settings handler.
func NewHandler(service SettingsService) *Handler {
	return &Handler{service: service}
}

// Get returns the effective settings (GET /api/settings).
func (h *Handler) Get(c echo.Context) error {
	overview, err := h.service.Overview(c.Request().Context())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, overview)
}

// updateRequest is the JSON body for settings updates. Absent fields are
// left unchanged.
type updateRequest struct {
	TrackedRoles    []string `json:"tracked_roles"`
	RetentionMaxAge string   `json:"retention_max_age"`
}

// Update changes one or both settings (PUT /api/settings).
func (h *Handler) Update(c echo.Context) error {
	var req updateRequest
	if err := c.Bind(&req); err != nil {
		return apperror.NewBadRequest("invalid request body")
	}

	ctx := c.Request().Context()
	if req.TrackedRoles != nil {
		if err := h.service.SetTrackedRoles(ctx, req.TrackedRoles); err != nil {
			return err
		}
	}
	if req.RetentionMaxAge != "" {
		d, err := time.ParseDuration(req.RetentionMaxAge)
		if err != nil {
			return apperror.NewValidation("retention_max_age must be a duration like 2160h")
		}
		if err := h.service.SetRetentionMaxAge(ctx, d); err != nil {
			return err
		}
	}

	overview, err := h.service.Overview(ctx)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, overview)
}
