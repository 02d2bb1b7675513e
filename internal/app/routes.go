package app

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/scribeworks/scribe/internal/objectref"
	"github.com/scribeworks/scribe/internal/plugins/activity"
	"github.com/scribeworks/scribe/internal/plugins/objects"
	"github.com/scribeworks/scribe/internal/plugins/retention"
	"github.com/scribeworks/scribe/internal/plugins/settings"
)

// RegisterRoutes wires together all plugin dependencies and sets up all
// application routes. This is the single place where the object graph is
// assembled: adapters into the registry, repositories over the DB pool,
// services over repositories, handlers over services.
func (a *App) RegisterRoutes() {
	e := a.Echo
	local := a.Config.Location()

	// Object adapters. Every object type an event can reference is
	// registered here; unregistered types are rejected at record time.
	registry := objectref.NewRegistry()
	registry.Register(objects.TypeUser, objects.NewUserAdapter(a.DB))
	registry.Register(objects.TypeContent, objects.NewContentAdapter(a.DB))

	// Redis-backed name cache for list rendering. Degrades to direct
	// adapter lookups when Redis is absent.
	names := objectref.NewNameCache(a.Redis, registry, a.Config.Redis.NameCacheTTL)

	// settings plugin -- tracked roles and retention window live in the DB
	// with config-provided defaults.
	settingsRepo := settings.NewSettingsRepository(a.DB)
	settingsSvc := settings.NewSettingsService(settingsRepo, settings.Defaults{
		TrackedRoles:    a.Config.Tracking.Roles,
		RetentionMaxAge: a.Config.Retention.MaxAge,
	})

	// activity plugin -- the core event log.
	eventRepo := activity.NewEventRepository(a.DB, local)
	actorSource := objects.NewActorSource(a.DB)
	activitySvc := activity.NewActivityService(eventRepo, actorSource, settingsSvc, registry, names)

	// retention plugin -- purges events past the configured window.
	a.Retention = retention.NewRetentionService(eventRepo, settingsSvc)

	// The acting user is identified by a header set by the host CMS's
	// proxy, resolved once per request into the context.
	e.Use(objects.ActorMiddleware())

	// Health check endpoint for container health monitoring.
	e.GET("/healthz", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})

	activity.RegisterRoutes(e, activity.NewHandler(activitySvc))
	settings.RegisterRoutes(e, settings.NewHandler(settingsSvc))
	retention.RegisterRoutes(e, retention.NewHandler(a.Retention))
}
