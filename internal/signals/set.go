// Package signals extracts typed facts (emails, phones, profile links,
// technology hints, canonical domains) from raw page text. Every function in
// this package is pure.
package signals

// OrderedSet is a string set that remembers first-insertion order.
type OrderedSet struct {
	seen  map[string]struct{}
	items []string
}

// NewOrderedSet returns an empty set.
func NewOrderedSet() *OrderedSet {
	return &OrderedSet{seen: make(map[string]struct{})}
}

// Add inserts v unless it is empty or already present. It reports whether v
// was inserted.
func (s *OrderedSet) Add(v string) bool {
	if v == "" {
		return false
	}
	if _, ok := s.seen[v]; ok {
		return false
	}
	s.seen[v] = struct{}{}
	s.items = append(s.items, v)
	return true
}

// AddAll inserts every value in vs.
func (s *OrderedSet) AddAll(vs []string) {
	for _, v := range vs {
		s.Add(v)
	}
}

// Has reports whether v is in the set.
func (s *OrderedSet) Has(v string) bool {
	_, ok := s.seen[v]
	return ok
}

// Len returns the number of items.
func (s *OrderedSet) Len() int { return len(s.items) }

// Items returns the items in insertion order. The result is never nil.
func (s *OrderedSet) Items() []string {
	out := make([]string, len(s.items))
	copy(out, s.items)
	return out
}

// Unique returns vs without empties or duplicates, keeping first occurrences.
func Unique(vs []string) []string {
	s := NewOrderedSet()
	s.AddAll(vs)
	return s.Items()
}
