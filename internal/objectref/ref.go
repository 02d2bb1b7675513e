package objectref

import (
	"context"
	"fmt"
)

// Ref is a reference to a platform entity: a type tag, a key within that
// type, and a display name snapshot. Refs are value objects -- they are
// embedded into an event's subject columns and may appear inside property
// values. Resolution of the live entity is lazy and memoized per instance,
// including a memoized "not found" outcome.
type Ref struct {
	Type string `json:"type"`
	Key  any    `json:"key"`
	Name string `json:"name"`

	resolved bool
	found    bool
	obj      any
}

// New builds a Ref and resolves its display name eagerly from the live
// entity. If the entity cannot be found the Ref is still returned with an
// empty name, so callers can log events about already-deleted objects.
func New(ctx context.Context, reg *Registry, objectType string, key any) (*Ref, error) {
	a, err := reg.Adapter(objectType)
	if err != nil {
		return nil, err
	}
	r := &Ref{Type: objectType, Key: key}
	name, err := a.Name(ctx, key)
	if err == nil {
		r.Name = name
	}
	return r, nil
}

// NewNamed builds a Ref with an explicit display name, deferring any contact
// with the live entity. Used when reconstituting events from storage.
func NewNamed(objectType string, key any, name string) *Ref {
	return &Ref{Type: objectType, Key: key, Name: name}
}

// FromEntity builds a Ref from a host model that carries its own identity.
func FromEntity(e Entity) *Ref {
	return &Ref{Type: e.ObjectType(), Key: e.ObjectKey(), Name: e.ObjectName()}
}

// Object returns the live entity behind the reference. The first call loads
// it through the type's adapter; the outcome (found or not) is cached and
// later calls do not retry. An unregistered type tag returns ErrUnknownType
// and is never cached.
func (r *Ref) Object(ctx context.Context, reg *Registry) (any, error) {
	if r.resolved {
		if !r.found {
			return nil, ErrNotFound
		}
		return r.obj, nil
	}

	a, err := reg.Adapter(r.Type)
	if err != nil {
		return nil, err
	}

	obj, err := a.Load(ctx, r.Key)
	switch {
	case err == nil:
		r.resolved, r.found, r.obj = true, true, obj
		return obj, nil
	case err == ErrNotFound:
		r.resolved, r.found = true, false
		return nil, ErrNotFound
	default:
		// Transient storage errors are not memoized: the next call may succeed.
		return nil, err
	}
}

// Exists reports whether the live entity is still present, using the same
// memoized resolution as Object.
func (r *Ref) Exists(ctx context.Context, reg *Registry) bool {
	_, err := r.Object(ctx, reg)
	return err == nil
}

// Tag renders a display reference for the entity. Live entities get the
// adapter's rich tag; deleted ones degrade to the snapshotted name marked as
// deleted. Tag is display code and never fails -- any resolution problem
// degrades to the snapshot.
func (r *Ref) Tag(ctx context.Context, reg *Registry) string {
	a, err := reg.Adapter(r.Type)
	if err != nil {
		return r.deletedTag()
	}
	if !r.Exists(ctx, reg) {
		return r.deletedTag()
	}
	return a.Tag(ctx, r.Key, r.Name)
}

func (r *Ref) deletedTag() string {
	name := r.Name
	if name == "" {
		name = fmt.Sprintf("%s %v", r.Type, r.Key)
	}
	return name + " (deleted)"
}
