package cellgraph

import (
	"encoding/json"
	"sort"
)

// NameSet is a set of variable or function names. It encodes as a sorted
// JSON array so snapshots are stable.
type NameSet map[string]struct{}

// NewNameSet returns a set holding names.
func NewNameSet(names ...string) NameSet {
	s := make(NameSet, len(names))
	for _, n := range names {
		s[n] = struct{}{}
	}
	return s
}

func (s NameSet) Add(names ...string) {
	for _, n := range names {
		s[n] = struct{}{}
	}
}

func (s NameSet) Remove(name string) { delete(s, name) }

func (s NameSet) Has(name string) bool {
	_, ok := s[name]
	return ok
}

func (s NameSet) Len() int { return len(s) }

// Sorted returns the names in lexical order.
func (s NameSet) Sorted() []string {
	out := make([]string, 0, len(s))
	for n := range s {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

// Clone returns an independent copy. A nil set clones to an empty one.
func (s NameSet) Clone() NameSet {
	out := make(NameSet, len(s))
	for n := range s {
		out[n] = struct{}{}
	}
	return out
}

// Union returns the names in s or other.
func (s NameSet) Union(other NameSet) NameSet {
	out := s.Clone()
	for n := range other {
		out[n] = struct{}{}
	}
	return out
}

// Minus returns the names in s that are not in other.
func (s NameSet) Minus(other NameSet) NameSet {
	out := make(NameSet, len(s))
	for n := range s {
		if !other.Has(n) {
			out[n] = struct{}{}
		}
	}
	return out
}

// Intersect returns the names in both s and other.
func (s NameSet) Intersect(other NameSet) NameSet {
	out := make(NameSet)
	for n := range s {
		if other.Has(n) {
			out[n] = struct{}{}
		}
	}
	return out
}

func (s NameSet) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.Sorted())
}

func (s *NameSet) UnmarshalJSON(data []byte) error {
	var names []string
	if err := json.Unmarshal(data, &names); err != nil {
		return err
	}
	*s = NewNameSet(names...)
	return nil
}
