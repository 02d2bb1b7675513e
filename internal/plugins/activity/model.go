// Package activity is the core of Scribe: it models logged events (who did
// what to which object, when, from where, and what changed) and persists
// them to relational storage. Events are created by the tracking service,
// carry a property change-set and an eventmeta side-channel, and are saved
// atomically across three tables by the event repository.
package activity

import (
	"context"
	"time"

	"github.com/scribeworks/scribe/internal/codec"
	"github.com/scribeworks/scribe/internal/objectref"
)

// MenuItemType is the subject subtype that gets special-cased in display
// code (navigation menu entries are stored as content but rendered
// differently).
const MenuItemType = "nav_menu_item"

// Actor is the user snapshot taken at event time. It is denormalized on
// purpose: the event keeps showing who acted even if the user record is
// later renamed, demoted, or deleted.
type Actor struct {
	ID    int64    `json:"id"`
	Name  string   `json:"name"`
	Roles []string `json:"roles"`
}

// Network holds the request-origin snapshot for an event. All fields are
// optional.
type Network struct {
	IP        string `json:"ip,omitempty"`
	Geo       string `json:"geo,omitempty"`
	UserAgent string `json:"user_agent,omitempty"`
}

// Subject identifies what the event acted on: a type tag, a key within that
// type, and a display-name snapshot that survives deletion of the entity.
// Key is an int64, a string, or nil.
type Subject struct {
	Type string `json:"type,omitempty"`
	Key  any    `json:"key,omitempty"`
	Name string `json:"name,omitempty"`
}

// Event is the aggregate root: one logged occurrence with its owned property
// and eventmeta sets. Events are created unsaved by the tracking service,
// persisted once, and may later be reloaded, mutated, and re-saved (the
// "active session" pattern extends one event's metas over time).
type Event struct {
	// ID is the storage surrogate key, zero until first persisted.
	ID int64 `json:"id"`

	// HappenedAt is when the event occurred. Immutable after creation
	// except via reload.
	HappenedAt time.Time `json:"happened_at"`

	// Actor is the user snapshot. An event with no resolvable actor is
	// never created -- anonymous actions are not logged.
	Actor Actor `json:"actor"`

	// Network is the request-origin snapshot.
	Network Network `json:"network"`

	// Type is the free-text classification label, e.g. "Content Created".
	// The set of values grows with the adapter registry; it is not an enum.
	Type string `json:"event_type"`

	// Subject is the optional acted-on object snapshot.
	Subject Subject `json:"subject"`

	// Properties is the owned change-set, keyed by property name.
	Properties *PropertySet `json:"-"`

	// Metas is the owned side-channel, keyed by meta name.
	Metas *EventmetaSet `json:"-"`

	// subjectRef memoizes the lazy handle to the live subject.
	subjectRef *objectref.Ref
}

// New creates an empty unsaved event of the given type. Most callers go
// through ActivityService.Record instead, which snapshots actor and subject
// state; New exists for reconstitution and tests.
func New(eventType string) *Event {
	return &Event{
		Type:       eventType,
		HappenedAt: time.Now(),
		Properties: NewPropertySet(),
		Metas:      NewEventmetaSet(),
	}
}

// SetProperty records an unchanged current value on the event.
func (e *Event) SetProperty(key, sourceTable string, value any) {
	e.Properties.Set(key, sourceTable, value)
}

// SetPropertyChange records a before/after pair on the event.
func (e *Event) SetPropertyChange(key, sourceTable string, value, newValue any) {
	e.Properties.SetChange(key, sourceTable, value, newValue)
}

// SetProperties merges a batch of properties into the event, overwriting on
// key collision.
func (e *Event) SetProperties(props []Property) {
	for _, p := range props {
		e.Properties.put(p.Key, p.SourceTable, p.Value, p.NewValue, p.NewValueSet)
	}
}

// SetMeta records a side-value on the event.
func (e *Event) SetMeta(key string, value any) {
	e.Metas.Set(key, value)
}

// MetaValue returns the value of a meta, with a presence flag.
func (e *Event) MetaValue(key string) (any, bool) {
	m, ok := e.Metas.Get(key)
	if !ok {
		return nil, false
	}
	return m.Value, true
}

// SubjectRef returns the lazy handle to the live subject, or nil when the
// event has no subject. The handle is memoized so repeated display calls
// resolve the live entity at most once.
func (e *Event) SubjectRef() *objectref.Ref {
	if e.Subject.Type == "" {
		return nil
	}
	if e.subjectRef == nil {
		e.subjectRef = objectref.NewNamed(e.Subject.Type, e.Subject.Key, e.Subject.Name)
	}
	return e.subjectRef
}

// ObjectTag renders a display reference for the subject: a rich tag while
// the entity exists, the snapshotted name with a deleted marker once it is
// gone. Never fails; an event without a subject renders empty.
func (e *Event) ObjectTag(ctx context.Context, reg *objectref.Registry) string {
	ref := e.SubjectRef()
	if ref == nil {
		return ""
	}
	return ref.Tag(ctx, reg)
}

// IsMenuItem reports whether the subject is a navigation menu entry, a
// one-off display special case. The live subject is checked when it can
// still be loaded; once deleted, the snapshotted post_type property is the
// fallback. This fallback-on-deletion pattern applies to all display logic
// touching a possibly-deleted subject.
func (e *Event) IsMenuItem(ctx context.Context, reg *objectref.Registry) bool {
	ref := e.SubjectRef()
	if ref == nil {
		return false
	}

	if obj, err := ref.Object(ctx, reg); err == nil {
		if st, ok := obj.(interface{ ObjectSubtype() string }); ok {
			return st.ObjectSubtype() == MenuItemType
		}
	}

	p, ok := e.Properties.Get("post_type")
	if !ok {
		return false
	}
	return codec.Equal(p.Value, MenuItemType)
}
