package objects

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/scribeworks/scribe/internal/plugins/activity"
)

// ActorHeader is the request header the host platform's admin proxy uses to
// forward the acting user's id. Requests without it are anonymous.
const ActorHeader = "X-Scribe-User"

// actorKey is the context key the middleware stores the forwarded id under.
type actorKey struct{}

// WithActorID returns a context carrying the acting user's id.
func WithActorID(ctx context.Context, id int64) context.Context {
	return context.WithValue(ctx, actorKey{}, id)
}

// ActorIDFrom extracts the acting user's id from the context.
func ActorIDFrom(ctx context.Context) (int64, bool) {
	id, ok := ctx.Value(actorKey{}).(int64)
	return id, ok
}

// ActorMiddleware copies the forwarded actor id from the request header into
// the request context, where the actor source picks it up.
func ActorMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			raw := strings.TrimSpace(c.Request().Header.Get(ActorHeader))
			if raw != "" {
				if id, err := strconv.ParseInt(raw, 10, 64); err == nil {
					req := c.Request()
					c.SetRequest(req.WithContext(WithActorID(req.Context(), id)))
				}
			}
			return next(c)
		}
	}
}

// ActorSource resolves the current actor from the forwarded id against the
// users table. It implements activity.ActorSource.
type ActorSource struct {
	db *sql.DB
}

// NewActorSource creates an actor source backed by the given DB pool.
func NewActorSource(db *sql.DB) *ActorSource {
	return &ActorSource{db: db}
}

// CurrentActor returns the acting user's snapshot, or (nil, nil) when the
// request carries no identity or the id no longer resolves -- both count as
// anonymous and are never logged.
func (s *ActorSource) CurrentActor(ctx context.Context) (*activity.Actor, error) {
	id, ok := ActorIDFrom(ctx)
	if !ok {
		return nil, nil
	}

	var (
		name string
		role string
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT display_name, role FROM users WHERE id = ?`, id).Scan(&name, &role)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("resolving actor %d: %w", id, err)
	}

	return &activity.Actor{ID: id, Name: name, Roles: []string{role}}, nil
}
