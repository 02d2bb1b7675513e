package activity

// Property is a named before/after value pair attached to an event,
// describing what changed on the subject. Values may be any type the codec
// accepts: scalars, nil, ordered lists, keyed dicts, timestamps, and object
// references, nested freely.
//
// The new value is a tri-state: NewValueSet false means "unchanged"
// (persisted as a database NULL); NewValueSet true with a nil NewValue means
// "explicitly changed to null" (persisted as a codec null envelope). The two
// are never conflated.
type Property struct {
	// ID is the storage row id, zero until first persisted. Managed by the
	// repositories; trackers never set it.
	ID int64 `json:"-"`

	// Key is the property name, unique within the parent event.
	Key string `json:"key"`

	// SourceTable names the storage origin of the value, for display
	// grouping only.
	SourceTable string `json:"source_table,omitempty"`

	// Value is the old/current value.
	Value any `json:"value"`

	// NewValue is the changed-to value; meaningful only when NewValueSet.
	// Serialized without omitempty so a changed-to-null property is visibly
	// "new_value": null in API responses.
	NewValue any `json:"new_value"`

	// NewValueSet distinguishes "changed to NewValue" from "unchanged".
	NewValueSet bool `json:"changed"`
}

// PropertySet is a keyed collection of properties owned by one event. Keys
// are unique; setting an existing key overwrites in place rather than
// duplicating. Insertion order is preserved for deterministic display.
type PropertySet struct {
	order []string
	items map[string]*Property
}

// NewPropertySet creates an empty property set.
func NewPropertySet() *PropertySet {
	return &PropertySet{items: make(map[string]*Property)}
}

// Set records an unchanged current value for key, overwriting any existing
// entry's fields in place (the storage row id survives the overwrite).
func (s *PropertySet) Set(key, sourceTable string, value any) *Property {
	return s.put(key, sourceTable, value, nil, false)
}

// SetChange records a before/after pair for key.
func (s *PropertySet) SetChange(key, sourceTable string, value, newValue any) *Property {
	return s.put(key, sourceTable, value, newValue, true)
}

func (s *PropertySet) put(key, sourceTable string, value, newValue any, changed bool) *Property {
	// An empty key never joins the set; the caller gets a detached value so
	// chained assignments stay safe.
	if key == "" {
		return &Property{SourceTable: sourceTable, Value: value, NewValue: newValue, NewValueSet: changed}
	}
	if p, ok := s.items[key]; ok {
		p.SourceTable = sourceTable
		p.Value = value
		p.NewValue = newValue
		p.NewValueSet = changed
		return p
	}
	p := &Property{Key: key, SourceTable: sourceTable, Value: value, NewValue: newValue, NewValueSet: changed}
	s.items[key] = p
	s.order = append(s.order, key)
	return p
}

// Get returns the property for key, with a presence flag.
func (s *PropertySet) Get(key string) (*Property, bool) {
	p, ok := s.items[key]
	return p, ok
}

// Has reports whether key is present.
func (s *PropertySet) Has(key string) bool {
	_, ok := s.items[key]
	return ok
}

// Remove deletes key from the set. Removing an absent key is a no-op.
func (s *PropertySet) Remove(key string) {
	if _, ok := s.items[key]; !ok {
		return
	}
	delete(s.items, key)
	for i, k := range s.order {
		if k == key {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
}

// Len returns the number of properties in the set.
func (s *PropertySet) Len() int {
	return len(s.items)
}

// All returns the properties in insertion order.
func (s *PropertySet) All() []*Property {
	out := make([]*Property, 0, len(s.order))
	for _, k := range s.order {
		out = append(out, s.items[k])
	}
	return out
}
