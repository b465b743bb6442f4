package world

// Multimap maps a lowercase noun to zero or more Objects, duplicates
// allowed, with deterministic key-iteration order (insertion order) so
// rendering a room or an inventory never depends on Go's randomized map
// iteration order.
type Multimap struct {
	byKey map[string][]*Object
	order []string
}

// NewMultimap returns an empty Multimap.
func NewMultimap() *Multimap {
	return &Multimap{byKey: make(map[string][]*Object)}
}

// Insert adds obj under key, appending if the key already has entries.
func (m *Multimap) Insert(key string, obj *Object) {
	if _, ok := m.byKey[key]; !ok {
		m.order = append(m.order, key)
	}
	m.byKey[key] = append(m.byKey[key], obj)
}

// Lookup returns every object under key (nil if none) and the count.
func (m *Multimap) Lookup(key string) ([]*Object, int) {
	list := m.byKey[key]
	return list, len(list)
}

// DeleteByPointer removes the exact obj instance (identity, not value
// equality) from key's list. Reports whether it was found.
func (m *Multimap) DeleteByPointer(key string, obj *Object) bool {
	list := m.byKey[key]
	for i, o := range list {
		if o == obj {
			m.byKey[key] = append(list[:i:i], list[i+1:]...)
			if len(m.byKey[key]) == 0 {
				delete(m.byKey, key)
				m.removeFromOrder(key)
			}
			return true
		}
	}
	return false
}

func (m *Multimap) removeFromOrder(key string) {
	for i, k := range m.order {
		if k == key {
			m.order = append(m.order[:i], m.order[i+1:]...)
			return
		}
	}
}

// Keys returns the distinct keys in first-insertion order.
func (m *Multimap) Keys() []string {
	out := make([]string, len(m.order))
	copy(out, m.order)
	return out
}

// Len returns the total number of objects across all keys.
func (m *Multimap) Len() int {
	n := 0
	for _, list := range m.byKey {
		n += len(list)
	}
	return n
}
