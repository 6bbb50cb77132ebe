// Package sets provides small generic set types used by the file graph and
// the index synthesizer.
package sets

// Set is a simple generic hash set for comparable keys.
// Usage: s := sets.New[string]("a","b"); s.Add("c"); if s.Has("b") {...}
type Set[T comparable] map[T]struct{}

// New creates a set pre-populated with the provided values.
func New[T comparable](vals ...T) Set[T] {
	s := make(Set[T], len(vals))
	for _, v := range vals {
		s[v] = struct{}{}
	}
	return s
}

// Add inserts value into the set.
func (s Set[T]) Add(v T) { s[v] = struct{}{} }

// Has returns true if v is present.
func (s Set[T]) Has(v T) bool {
	_, ok := s[v]
	return ok
}

// Delete removes v if present.
func (s Set[T]) Delete(v T) { delete(s, v) }

// Ordered is a set that remembers first-insertion order.
type Ordered[T comparable] struct {
	index  Set[T]
	values []T
}

// NewOrdered creates an ordered set pre-populated with vals.
func NewOrdered[T comparable](vals ...T) *Ordered[T] {
	o := &Ordered[T]{index: make(Set[T], len(vals))}
	for _, v := range vals {
		o.Add(v)
	}
	return o
}

// Add inserts v and reports whether it was new. Re-adding keeps the original position.
func (o *Ordered[T]) Add(v T) bool {
	if o.index == nil {
		o.index = Set[T]{}
	}
	if o.index.Has(v) {
		return false
	}
	o.index.Add(v)
	o.values = append(o.values, v)
	return true
}

// Has returns true if v is present.
func (o *Ordered[T]) Has(v T) bool { return o.index.Has(v) }

// Len returns the number of values.
func (o *Ordered[T]) Len() int { return len(o.values) }

// Values returns the values in insertion order.
func (o *Ordered[T]) Values() []T {
	out := make([]T, len(o.values))
	copy(out, o.values)
	return out
}
