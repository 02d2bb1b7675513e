package activity

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/scribeworks/scribe/internal/apperror"
	"github.com/scribeworks/scribe/internal/middleware"
)

// Handler handles HTTP requests for the activity log. Handlers are thin:
// bind request, call service, render JSON. No business logic lives here.
type Handler struct {
	service ActivityService
}

// NewHandler creates a new activity handler.
func NewHandler(service ActivityService) *Handler {
	return &Handler{service: service}
}

// eventResponse is the JSON shape of one event in list and detail responses.
type eventResponse struct {
	ID         int64        `json:"id"`
	HappenedAt time.Time    `json:"happened_at"`
	Actor      Actor        `json:"actor"`
	Network    Network      `json:"network"`
	EventType  string       `json:"event_type"`
	Subject    Subject      `json:"subject"`
	ObjectTag  string       `json:"object_tag,omitempty"`
	Properties []*Property  `json:"properties,omitempty"`
	Metas      []*Eventmeta `json:"metas,omitempty"`
}

// List returns a filtered, paginated page of events
// (GET /api/activity?from=&to=&types=&q=&page=&per_page=&sort=).
func (h *Handler) List(c echo.Context) error {
	f, err := parseFilter(c)
	if err != nil {
		return err
	}

	ctx := c.Request().Context()
	events, total, err := h.service.List(ctx, f)
	if err != nil {
		return err
	}

	items := make([]eventResponse, 0, len(events))
	for _, ev := range events {
		items = append(items, eventResponse{
			ID:         ev.ID,
			HappenedAt: ev.HappenedAt,
			Actor:      ev.Actor,
			Network:    ev.Network,
			EventType:  ev.Type,
			Subject:    ev.Subject,
			ObjectTag:  h.service.SubjectTag(ctx, ev),
		})
	}

	return c.JSON(http.StatusOK, map[string]any{
		"events":   items,
		"total":    total,
		"offset":   f.Offset,
		"per_page": f.limit(),
	})
}

// Get returns one fully hydrated event (GET /api/activity/:id).
func (h *Handler) Get(c echo.Context) error {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return apperror.NewBadRequest("event id must be an integer")
	}

	ctx := c.Request().Context()
	ev, err := h.service.Get(ctx, id)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, eventResponse{
		ID:         ev.ID,
		HappenedAt: ev.HappenedAt,
		Actor:      ev.Actor,
		Network:    ev.Network,
		EventType:  ev.Type,
		Subject:    ev.Subject,
		ObjectTag:  h.service.SubjectTag(ctx, ev),
		Properties: ev.Properties.All(),
		Metas:      ev.Metas.All(),
	})
}

// recordRequest is the JSON body a host hook posts to log an event.
type recordRequest struct {
	EventType string `json:"event_type"`
	Subject   *struct {
		Type string `json:"type"`
		Key  any    `json:"key"`
	} `json:"subject"`
	Properties []struct {
		Key         string `json:"key"`
		SourceTable string `json:"source_table"`
		Value       any    `json:"value"`
		NewValue    any    `json:"new_value"`
		Changed     bool   `json:"changed"`
	} `json:"properties"`
	Metas map[string]any `json:"metas"`
}

// Record logs one event on behalf of a host hook (POST /api/activity).
// Returns 204 when the action was skipped (anonymous or untracked actor).
func (h *Handler) Record(c echo.Context) error {
	var req recordRequest
	if err := c.Bind(&req); err != nil {
		return apperror.NewBadRequest("invalid request body")
	}
	if req.EventType == "" {
		return apperror.NewValidation("event_type is required")
	}

	b := NewBuilder(req.EventType).Network(requestNetwork(c))
	if req.Subject != nil && req.Subject.Type != "" {
		b.Subject(subjectRef(req.Subject.Type, req.Subject.Key))
	}
	for _, p := range req.Properties {
		if p.Changed {
			b.PropertyChange(p.Key, p.SourceTable, normalizeJSON(p.Value), normalizeJSON(p.NewValue))
		} else {
			b.Property(p.Key, p.SourceTable, normalizeJSON(p.Value))
		}
	}
	for k, v := range req.Metas {
		b.Meta(k, normalizeJSON(v))
	}
	if id := middleware.RequestIDFrom(c); id != "" {
		b.Meta("request_id", id)
	}

	ev, err := b.Record(c.Request().Context(), h.service)
	if err != nil {
		return err
	}
	if ev == nil {
		return c.NoContent(http.StatusNoContent)
	}
	return c.JSON(http.StatusCreated, map[string]int64{"id": ev.ID})
}

// Heartbeat extends the current actor's session event
// (POST /api/activity/session).
func (h *Handler) Heartbeat(c echo.Context) error {
	ev, err := h.service.ExtendSession(c.Request().Context(), requestNetwork(c))
	if err != nil {
		return err
	}
	if ev == nil {
		return c.NoContent(http.StatusNoContent)
	}
	return c.JSON(http.StatusOK, map[string]int64{"id": ev.ID})
}

// parseFilter reads the list query parameters. Date bounds accept a date or
// a full RFC 3339 timestamp.
func parseFilter(c echo.Context) (Filter, error) {
	var f Filter

	if raw := c.QueryParam("from"); raw != "" {
		t, err := parseTimeParam(raw)
		if err != nil {
			return f, apperror.NewBadRequest("from must be a date or RFC 3339 timestamp")
		}
		f.From = t
	}
	if raw := c.QueryParam("to"); raw != "" {
		t, err := parseTimeParam(raw)
		if err != nil {
			return f, apperror.NewBadRequest("to must be a date or RFC 3339 timestamp")
		}
		f.To = t
	}
	if raw := c.QueryParam("types"); raw != "" {
		for _, t := range strings.Split(raw, ",") {
			if t = strings.TrimSpace(t); t != "" {
				f.ObjectTypes = append(f.ObjectTypes, t)
			}
		}
	}
	f.Search = c.QueryParam("q")
	f.Sort = c.QueryParam("sort")

	perPage, _ := strconv.Atoi(c.QueryParam("per_page"))
	f.Limit = perPage
	page, _ := strconv.Atoi(c.QueryParam("page"))
	if page < 1 {
		page = 1
	}
	f.Offset = (page - 1) * f.limit()

	return f, nil
}

func parseTimeParam(raw string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02", raw)
}

// requestNetwork snapshots the request origin for the event.
func requestNetwork(c echo.Context) Network {
	return Network{
		IP:        c.RealIP(),
		Geo:       c.Request().Header.Get("X-Geo-Location"),
		UserAgent: c.Request().UserAgent(),
	}
}

// subjectRef builds the subject handle from the posted type/key pair.
func subjectRef(objectType string, key any) any {
	return refInput{objectType: objectType, key: normalizeJSON(key)}
}

// refInput adapts a posted subject to the service's subject resolution
// without claiming a display name (the service snapshots core properties
// and name through the adapter).
type refInput struct {
	objectType string
	key        any
}

func (r refInput) ObjectType() string { return r.objectType }
func (r refInput) ObjectKey() any     { return r.key }
func (r refInput) ObjectName() string { return "" }

// normalizeJSON collapses JSON numbers to int64 where they are integral, so
// posted ids and counters round-trip as integers.
func normalizeJSON(v any) any {
	switch n := v.(type) {
	case float64:
		if n == float64(int64(n)) {
			return int64(n)
		}
		return n
	case map[string]any:
		for k, item := range n {
			n[k] = normalizeJSON(item)
		}
		return n
	case []any:
		for i, item := range n {
			n[i] = normalizeJSON(item)
		}
		return n
	default:
		return v
	}
}
