package txn

import "github.com/benbjohnson/immutable"

// Set is a persistent keyed collection. Every mutating method returns a new Set
// and leaves the receiver untouched.
//
// A nil *Set behaves as an empty set.
type Set[K comparable, V any] struct {
	m *immutable.Map[K, V]
}

// NewSet returns an empty Set. K must be a type supported by the default
// immutable hasher (integers, strings, byte slices).
func NewSet[K comparable, V any]() *Set[K, V] {
	return &Set[K, V]{m: immutable.NewMap[K, V](nil)}
}

func (s *Set[K, V]) inner() *immutable.Map[K, V] {
	if s == nil || s.m == nil {
		return immutable.NewMap[K, V](nil)
	}
	return s.m
}

// Len returns the number of entries.
func (s *Set[K, V]) Len() int {
	if s == nil || s.m == nil {
		return 0
	}
	return s.m.Len()
}

// Get returns the value stored under k.
func (s *Set[K, V]) Get(k K) (V, bool) {
	return s.inner().Get(k)
}

// Put returns a new Set with k mapped to v.
func (s *Set[K, V]) Put(k K, v V) *Set[K, V] {
	return &Set[K, V]{m: s.inner().Set(k, v)}
}

// Delete returns a new Set without k.
func (s *Set[K, V]) Delete(k K) *Set[K, V] {
	if _, ok := s.Get(k); !ok {
		return s
	}
	return &Set[K, V]{m: s.inner().Delete(k)}
}

// Values returns the stored values in unspecified order.
func (s *Set[K, V]) Values() []V {
	if s.Len() == 0 {
		return nil
	}
	out := make([]V, 0, s.Len())
	itr := s.m.Iterator()
	for !itr.Done() {
		_, v, ok := itr.Next()
		if !ok {
			break
		}
		out = append(out, v)
	}
	return out
}
