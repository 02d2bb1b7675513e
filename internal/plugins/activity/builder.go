package activity

import "context"

// Builder accumulates the pieces of one event across several tracker
// callbacks before a single Record call. Trackers that learn about a change
// in stages (one hook sees the old value, a later one the new) collect into
// a Builder scoped to that logical operation instead of a process-wide
// remembered-state singleton, so concurrent requests cannot leak data into
// each other's events.
type Builder struct {
	input RecordInput
}

// NewBuilder starts accumulating an event of the given type.
func NewBuilder(eventType string) *Builder {
	return &Builder{input: RecordInput{Type: eventType}}
}

// Subject sets the acted-on object (a *objectref.Ref or an objectref.Entity).
func (b *Builder) Subject(subject any) *Builder {
	b.input.Subject = subject
	return b
}

// Actor overrides actor resolution with a known actor.
func (b *Builder) Actor(a *Actor) *Builder {
	b.input.Actor = a
	return b
}

// Network sets the request-origin snapshot.
func (b *Builder) Network(n Network) *Builder {
	b.input.Network = n
	return b
}

// Property accumulates an unchanged current value. Later calls with the same
// key overwrite earlier ones.
func (b *Builder) Property(key, sourceTable string, value any) *Builder {
	b.put(Property{Key: key, SourceTable: sourceTable, Value: value})
	return b
}

// PropertyChange accumulates a before/after pair.
func (b *Builder) PropertyChange(key, sourceTable string, value, newValue any) *Builder {
	b.put(Property{Key: key, SourceTable: sourceTable, Value: value, NewValue: newValue, NewValueSet: true})
	return b
}

// Meta accumulates a side-value.
func (b *Builder) Meta(key string, value any) *Builder {
	for i, m := range b.input.Metas {
		if m.Key == key {
			b.input.Metas[i].Value = value
			return b
		}
	}
	b.input.Metas = append(b.input.Metas, Eventmeta{Key: key, Value: value})
	return b
}

func (b *Builder) put(p Property) {
	for i, existing := range b.input.Properties {
		if existing.Key == p.Key {
			b.input.Properties[i] = p
			return
		}
	}
	b.input.Properties = append(b.input.Properties, p)
}

// Input returns the accumulated RecordInput, e.g. for inspection in tests.
func (b *Builder) Input() RecordInput {
	return b.input
}

// Record flushes the accumulated event through the service. The builder can
// be discarded afterwards; it is not reusable.
func (b *Builder) Record(ctx context.Context, svc ActivityService) (*Event, error) {
	return svc.Record(ctx, b.input)
}
