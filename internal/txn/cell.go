package txn

import "sync/atomic"

// Cell is a shared mutable reference to an immutable value of type T.
//
// T should be a persistent collection or another value that is never mutated
// in place once published; the Cell only guarantees that every reader observes
// one complete published version.
type Cell[T any] struct {
	p atomic.Pointer[box[T]]
}

// box gives every published version its own address so CAS compares versions,
// not values.
type box[T any] struct {
	v T
}

// NewCell returns a Cell initialised with v.
func NewCell[T any](v T) *Cell[T] {
	c := &Cell[T]{}
	c.p.Store(&box[T]{v: v})
	return c
}

// Load returns the current version.
func (c *Cell[T]) Load() T {
	if b := c.p.Load(); b != nil {
		return b.v
	}
	var zero T
	return zero
}

// Update atomically replaces the current version with fn(current) and returns
// the version it published.
//
// fn may be called several times under contention and must be a pure function
// of its argument.
func (c *Cell[T]) Update(fn func(T) T) T {
	for {
		old := c.p.Load()
		var cur T
		if old != nil {
			cur = old.v
		}
		next := &box[T]{v: fn(cur)}
		if c.p.CompareAndSwap(old, next) {
			return next.v
		}
	}
}

// Swap publishes v unconditionally and returns the previous version.
func (c *Cell[T]) Swap(v T) T {
	old := c.p.Swap(&box[T]{v: v})
	if old == nil {
		var zero T
		return zero
	}
	return old.v
}
