package activity

// Eventmeta is a named side-value attached to an event: session timestamps,
// request ids, anything a tracker wants to remember that does not model a
// before/after change. Values share the codec's accepted domain with
// Property values.
type Eventmeta struct {
	// ID is the storage row id, zero until first persisted.
	ID int64 `json:"-"`

	// Key is the meta name, unique within the parent event.
	Key string `json:"key"`

	// Value is the stored value.
	Value any `json:"value"`
}

// EventmetaSet is a keyed collection of eventmetas owned by one event, with
// the same uniqueness and ordering behavior as PropertySet.
type EventmetaSet struct {
	order []string
	items map[string]*Eventmeta
}

// NewEventmetaSet creates an empty eventmeta set.
func NewEventmetaSet() *EventmetaSet {
	return &EventmetaSet{items: make(map[string]*Eventmeta)}
}

// Set stores a value for key, overwriting in place if the key exists. An
// empty key is not stored; the returned value is detached from the set.
func (s *EventmetaSet) Set(key string, value any) *Eventmeta {
	if key == "" {
		return &Eventmeta{Value: value}
	}
	if m, ok := s.items[key]; ok {
		m.Value = value
		return m
	}
	m := &Eventmeta{Key: key, Value: value}
	s.items[key] = m
	s.order = append(s.order, key)
	return m
}

// Get returns the eventmeta for key, with a presence flag.
func (s *EventmetaSet) Get(key string) (*Eventmeta, bool) {
	m, ok := s.items[key]
	return m, ok
}

// Has reports whether key is present.
func (s *EventmetaSet) Has(key string) bool {
	_, ok := s.items[key]
	return ok
}

// Remove deletes key from the set. Removing an absent key is a no-op.
func (s *EventmetaSet) Remove(key string) {
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

// Len returns the number of eventmetas in the set.
func (s *EventmetaSet) Len() int {
	return len(s.items)
}

// All returns the eventmetas in insertion order.
func (s *EventmetaSet) All() []*Eventmeta {
	out := make([]*Eventmeta, 0, len(s.order))
	for _, k := range s.order {
		out = append(out, s.items[k])
	}
	return out
}
