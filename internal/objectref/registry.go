// Package objectref provides lightweight, lazily-resolved references to the
// platform entities an activity event points at (users, content items, and so
// on). A Ref carries the type tag, the key within that type, and a display
// name snapshotted at event time so the event stays renderable after the
// underlying entity is deleted.
//
// Resolution of the live entity goes through an explicit Registry of
// per-type adapters that are wired at startup. An unregistered type tag is a
// programming error, distinct from "the entity no longer exists".
package objectref

import (
	"context"
	"errors"
	"sync"
)

var (
	// ErrUnknownType is returned when no adapter is registered for a type
	// tag. This indicates a wiring bug, not missing data.
	ErrUnknownType = errors.New("objectref: no adapter registered for type")

	// ErrNotFound is returned by adapters when the referenced entity does
	// not exist (typically because it has since been deleted).
	ErrNotFound = errors.New("objectref: entity not found")
)

// CoreProperty is one of the key attributes an adapter snapshots for its
// entity type when an event is created (e.g. title/slug/status for content).
type CoreProperty struct {
	// Key is the property name, unique within the snapshot.
	Key string

	// SourceTable names the storage origin of the value. Used for display
	// grouping only, never in logic.
	SourceTable string

	// Value is the property value at snapshot time.
	Value any
}

// Adapter knows how to work with one entity type. Implementations live next
// to the host tables they query (see internal/plugins/objects).
type Adapter interface {
	// Exists reports whether the entity identified by key still exists.
	Exists(ctx context.Context, key any) (bool, error)

	// Load returns the live entity, or ErrNotFound.
	Load(ctx context.Context, key any) (any, error)

	// Name returns the current display name of the entity, or ErrNotFound.
	Name(ctx context.Context, key any) (string, error)

	// CoreProperties returns the type-specific set of key attributes used
	// as the initial property snapshot of a new event.
	CoreProperties(ctx context.Context, key any) ([]CoreProperty, error)

	// Tag renders a rich display reference (e.g. an anchor) for a live
	// entity. fallback is the snapshotted name to use in the link text.
	// Tag is display code: it must not fail.
	Tag(ctx context.Context, key any, fallback string) string
}

// Entity is implemented by host models that can be turned into a Ref
// directly, without going through an adapter lookup.
type Entity interface {
	ObjectType() string
	ObjectKey() any
	ObjectName() string
}

// Registry maps type tags to adapters. Adapters are registered once during
// startup wiring; lookups after that are read-only and safe for concurrent
// use.
type Registry struct {
	mu       sync.RWMutex
	adapters map[string]Adapter
}

// NewRegistry creates an empty adapter registry.
func NewRegistry() *Registry {
	return &Registry{adapters: make(map[string]Adapter)}
}

// Register binds an adapter to a type tag, replacing any previous binding.
func (r *Registry) Register(objectType string, a Adapter) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.adapters[objectType] = a
}

// Adapter returns the adapter for a type tag, or ErrUnknownType.
func (r *Registry) Adapter(objectType string) (Adapter, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.adapters[objectType]
	if !ok {
		return nil, ErrUnknownType
	}
	return a, nil
}

// Types returns the registered type tags. Order is not specified.
func (r *Registry) Types() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	types := make([]string, 0, len(r.adapters))
	for t := range r.adapters {
		types = append(types, t)
	}
	return types
}
