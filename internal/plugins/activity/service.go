package activity

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/scribeworks/scribe/internal/apperror"
	"github.com/scribeworks/scribe/internal/objectref"
)

// SessionEventType is the event type used for the long-lived "user is active"
// event that gets extended instead of duplicated.
const SessionEventType = "User Session"

// sessionWindow is how far back ExtendSession looks for an existing session
// event before starting a new one.
const sessionWindow = 24 * time.Hour

// ActorSource resolves the acting user of the current request. A (nil, nil)
// result means the action is anonymous.
type ActorSource interface {
	CurrentActor(ctx context.Context) (*Actor, error)
}

// TrackedRolesSource supplies the set of roles whose actions are logged.
// Backed by the settings plugin with a config default.
type TrackedRolesSource interface {
	TrackedRoles(ctx context.Context) ([]string, error)
}

// RecordInput is everything a tracker hands the service to log one event.
type RecordInput struct {
	// Type is the classification label, e.g. "Content Created".
	Type string

	// Subject is the acted-on object: a *objectref.Ref, a host model
	// implementing objectref.Entity, or nil for subject-less events.
	Subject any

	// Properties are explicit change-set entries. They win over the
	// subject's core-property snapshot on key collision.
	Properties []Property

	// Metas are side-values to attach.
	Metas []Eventmeta

	// Actor overrides actor resolution when the tracker already knows who
	// acted. Nil means "resolve the current actor".
	Actor *Actor

	// Network is the request-origin snapshot, filled by the HTTP layer.
	Network Network
}

// ActivityService creates, persists, and queries activity events. Creation
// follows the skip-not-error contract: actions by unresolvable or untracked
// actors produce no event and no error.
type ActivityService interface {
	// Record builds an event from the input (snapshotting actor, subject,
	// and core properties at this instant) and saves it. Returns (nil, nil)
	// when the action is not tracked.
	Record(ctx context.Context, in RecordInput) (*Event, error)

	// ExtendSession touches the current actor's long-lived session event:
	// an existing recent one gets its last_seen meta updated and re-saved,
	// otherwise a fresh session event is recorded. Returns (nil, nil) when
	// the actor is not tracked.
	ExtendSession(ctx context.Context, net Network) (*Event, error)

	// Get returns the fully hydrated event by id.
	Get(ctx context.Context, id int64) (*Event, error)

	// List returns a page of events plus the total match count.
	List(ctx context.Context, f Filter) ([]*Event, int, error)

	// SubjectTag renders the display reference for an event's subject,
	// degrading to the snapshotted name with a deleted marker. Never fails.
	SubjectTag(ctx context.Context, ev *Event) string
}

// activityService implements ActivityService.
type activityService struct {
	repo     EventRepository
	actors   ActorSource
	roles    TrackedRolesSource
	registry *objectref.Registry
	names    *objectref.NameCache
}

// NewActivityService creates the tracking service. names may be nil, in
// which case tag rendering resolves through the registry directly.
func NewActivityService(repo EventRepository, actors ActorSource, roles TrackedRolesSource,
	registry *objectref.Registry, names *objectref.NameCache) ActivityService {
	return &activityService{repo: repo, actors: actors, roles: roles, registry: registry, names: names}
}

func (s *activityService) Record(ctx context.Context, in RecordInput) (*Event, error) {
	if in.Type == "" {
		return nil, apperror.NewValidation("event type is required")
	}

	actor, err := s.resolveTrackedActor(ctx, in.Actor)
	if err != nil || actor == nil {
		return nil, err
	}

	ev, err := s.buildEvent(ctx, actor, in)
	if err != nil {
		return nil, err
	}

	if err := s.repo.Save(ctx, ev); err != nil {
		slog.Error("failed to save activity event",
			slog.String("event_type", ev.Type),
			slog.Int64("user_id", actor.ID),
			slog.Any("error", err),
		)
		return nil, apperror.NewInternal(fmt.Errorf("saving event: %w", err))
	}
	return ev, nil
}

// resolveTrackedActor applies the skip rules: no resolvable actor or no
// tracked role means (nil, nil).
func (s *activityService) resolveTrackedActor(ctx context.Context, explicit *Actor) (*Actor, error) {
	actor := explicit
	if actor == nil {
		var err error
		actor, err = s.actors.CurrentActor(ctx)
		if err != nil {
			return nil, apperror.NewInternal(fmt.Errorf("resolving actor: %w", err))
		}
	}
	if actor == nil {
		slog.Debug("skipping event: anonymous action")
		return nil, nil
	}

	tracked, err := s.roles.TrackedRoles(ctx)
	if err != nil {
		return nil, apperror.NewInternal(fmt.Errorf("loading tracked roles: %w", err))
	}
	if !hasTrackedRole(actor.Roles, tracked) {
		slog.Debug("skipping event: untracked role",
			slog.Int64("user_id", actor.ID),
			slog.Any("roles", actor.Roles),
		)
		return nil, nil
	}
	return actor, nil
}

func (s *activityService) buildEvent(ctx context.Context, actor *Actor, in RecordInput) (*Event, error) {
	ev := New(in.Type)
	ev.Actor = *actor
	ev.Network = in.Network

	ref, err := resolveSubject(in.Subject)
	if err != nil {
		return nil, err
	}
	if ref != nil {
		adapter, err := s.registry.Adapter(ref.Type)
		if err != nil {
			return nil, apperror.NewValidation(fmt.Sprintf("unknown object type %q", ref.Type))
		}

		// Backfill the display-name snapshot for handles that arrive
		// without one (e.g. posted type/key pairs).
		if ref.Name == "" {
			if name, err := adapter.Name(ctx, ref.Key); err == nil {
				ref.Name = name
			}
		}
		ev.Subject = Subject{Type: ref.Type, Key: ref.Key, Name: ref.Name}
		core, err := adapter.CoreProperties(ctx, ref.Key)
		if err != nil && !errors.Is(err, objectref.ErrNotFound) {
			return nil, apperror.NewInternal(fmt.Errorf("snapshotting %s properties: %w", ref.Type, err))
		}
		for _, cp := range core {
			ev.SetProperty(cp.Key, cp.SourceTable, cp.Value)
		}
	}

	// Explicit properties win over the snapshot on key collision.
	ev.SetProperties(in.Properties)
	for _, m := range in.Metas {
		ev.SetMeta(m.Key, m.Value)
	}
	return ev, nil
}

func (s *activityService) ExtendSession(ctx context.Context, net Network) (*Event, error) {
	actor, err := s.resolveTrackedActor(ctx, nil)
	if err != nil || actor == nil {
		return nil, err
	}

	now := time.Now()
	ev, err := s.repo.FindRecent(ctx, actor.ID, SessionEventType, now.Add(-sessionWindow))
	if err != nil {
		return nil, apperror.NewInternal(fmt.Errorf("finding session event: %w", err))
	}

	if ev == nil {
		return s.Record(ctx, RecordInput{
			Type:  SessionEventType,
			Actor: actor,
			Metas: []Eventmeta{
				{Key: "first_seen", Value: now},
				{Key: "last_seen", Value: now},
			},
			Network: net,
		})
	}

	ev.SetMeta("last_seen", now)
	if err := s.repo.Save(ctx, ev); err != nil {
		slog.Error("failed to extend session event",
			slog.Int64("event_id", ev.ID),
			slog.Any("error", err),
		)
		return nil, apperror.NewInternal(fmt.Errorf("extending session event: %w", err))
	}
	return ev, nil
}

func (s *activityService) Get(ctx context.Context, id int64) (*Event, error) {
	ev, err := s.repo.Load(ctx, id)
	if err != nil {
		var appErr *apperror.AppError
		if errors.As(err, &appErr) {
			return nil, err
		}
		return nil, apperror.NewInternal(fmt.Errorf("loading event %d: %w", id, err))
	}
	return ev, nil
}

func (s *activityService) List(ctx context.Context, f Filter) ([]*Event, int, error) {
	events, total, err := s.repo.List(ctx, f)
	if err != nil {
		return nil, 0, apperror.NewInternal(fmt.Errorf("listing events: %w", err))
	}
	return events, total, nil
}

func (s *activityService) SubjectTag(ctx context.Context, ev *Event) string {
	ref := ev.SubjectRef()
	if ref == nil {
		return ""
	}

	// The cache answers the common case (entity exists, name current)
	// without a host-table query per list row.
	if s.names != nil {
		if _, err := s.names.Name(ctx, ref.Type, ref.Key); errors.Is(err, objectref.ErrNotFound) {
			name := ev.Subject.Name
			if name == "" {
				name = fmt.Sprintf("%s %v", ref.Type, ref.Key)
			}
			return name + " (deleted)"
		}
	}
	return ref.Tag(ctx, s.registry)
}

func resolveSubject(subject any) (*objectref.Ref, error) {
	switch sub := subject.(type) {
	case nil:
		return nil, nil
	case *objectref.Ref:
		return sub, nil
	case objectref.Ref:
		return &sub, nil
	case objectref.Entity:
		return objectref.FromEntity(sub), nil
	default:
		return nil, apperror.NewValidation(fmt.Sprintf("unsupported subject type %T", subject))
	}
}

func hasTrackedRole(actorRoles, tracked []string) bool {
	for _, r := range actorRoles {
		for _, t := range tracked {
			if r == t {
				return true
			}
		}
	}
	return false
}
