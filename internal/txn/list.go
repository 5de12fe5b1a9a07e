package txn

import "github.com/benbjohnson/immutable"

// List is a persistent ordered sequence. Every mutating method returns a new
// List and leaves the receiver untouched.
//
// A nil *List behaves as an empty list.
type List[T any] struct {
	l *immutable.List[T]
}

// NewList returns a List holding values in order.
func NewList[T any](values ...T) *List[T] {
	return &List[T]{l: immutable.NewList[T](values...)}
}

func (l *List[T]) inner() *immutable.List[T] {
	if l == nil || l.l == nil {
		return immutable.NewList[T]()
	}
	return l.l
}

// Len returns the number of elements.
func (l *List[T]) Len() int {
	if l == nil || l.l == nil {
		return 0
	}
	return l.l.Len()
}

// Get returns the element at index i. It panics when i is out of range.
func (l *List[T]) Get(i int) T {
	return l.inner().Get(i)
}

// Append returns a new List with v added at the end.
func (l *List[T]) Append(v T) *List[T] {
	return &List[T]{l: l.inner().Append(v)}
}

// RemoveFunc returns a new List without the first element for which match
// reports true. The receiver is returned unchanged when nothing matches.
func (l *List[T]) RemoveFunc(match func(T) bool) *List[T] {
	src := l.inner()
	idx := -1
	itr := src.Iterator()
	for !itr.Done() {
		i, v := itr.Next()
		if match(v) {
			idx = i
			break
		}
	}
	if idx < 0 {
		return l
	}

	out := src.Slice(0, idx)
	for i := idx + 1; i < src.Len(); i++ {
		out = out.Append(src.Get(i))
	}
	return &List[T]{l: out}
}

// All returns the elements as a slice, in order. The slice is a copy.
func (l *List[T]) All() []T {
	if l.Len() == 0 {
		return nil
	}
	out := make([]T, 0, l.Len())
	itr := l.l.Iterator()
	for !itr.Done() {
		_, v := itr.Next()
		out = append(out, v)
	}
	return out
}
