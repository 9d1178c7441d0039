// Package mru implements an insertion-ordered collection with a "front"
// (index 0) that holds the most recently used element.
//
// A List is not safe for concurrent use. Owners serialize access.
package mru

import "slices"

// Matcher selects a single element of a List. It is either an exact value
// (compared with ==) or a predicate. Build one with ByValue or ByPredicate.
type Matcher[T comparable] struct {
	value    T
	hasValue bool
	pred     func(T) bool
}

// ByValue matches the element identical to v. For pointer element types this
// is identity, never field equality.
func ByValue[T comparable](v T) Matcher[T] {
	return Matcher[T]{value: v, hasValue: true}
}

// ByPredicate matches the first element (nearest the front) for which fn
// returns true.
func ByPredicate[T comparable](fn func(T) bool) Matcher[T] {
	return Matcher[T]{pred: fn}
}

// WithPredicate returns a copy of m that also carries fn. The exact value, if
// present, still wins.
func (m Matcher[T]) WithPredicate(fn func(T) bool) Matcher[T] {
	m.pred = fn
	return m
}

// indexIn resolves the matcher against items. Exact value wins over the
// predicate; ties go to the element closest to the front.
func (m Matcher[T]) indexIn(items []T) int {
	if m.hasValue {
		return slices.Index(items, m.value)
	}
	if m.pred == nil {
		return -1
	}
	return slices.IndexFunc(items, m.pred)
}

// Patch merges partial field values into an element.
type Patch[T any] interface {
	// Empty reports whether the patch sets no field at all.
	Empty() bool
	// Apply returns v with the patch's fields merged in.
	Apply(v T) T
}

// List is an ordered sequence with a most-recently-used front.
type List[T comparable] struct {
	items []T
}

// New returns an empty list.
func New[T comparable]() *List[T] {
	return &List[T]{}
}

// Add appends v at the end (least recently used position). Callers must not
// add an element that is already present.
func (l *List[T]) Add(v T) {
	l.items = append(l.items, v)
}

// MoveToFront moves the matched element to index 0. No-op when nothing
// matches.
func (l *List[T]) MoveToFront(m Matcher[T]) bool {
	i := m.indexIn(l.items)
	if i < 0 {
		return false
	}
	if i == 0 {
		return true
	}
	v := l.items[i]
	copy(l.items[1:i+1], l.items[:i])
	l.items[0] = v
	return true
}

// Remove deletes the first matching element. No-op when nothing matches.
func (l *List[T]) Remove(m Matcher[T]) bool {
	i := m.indexIn(l.items)
	if i < 0 {
		return false
	}
	l.items = slices.Delete(l.items, i, i+1)
	return true
}

// Update merges p into the first matching element without moving it.
// No-op when nothing matches or p is nil or empty.
func (l *List[T]) Update(m Matcher[T], p Patch[T]) bool {
	if p == nil || p.Empty() {
		return false
	}
	i := m.indexIn(l.items)
	if i < 0 {
		return false
	}
	l.items[i] = p.Apply(l.items[i])
	return true
}

// Find returns the first matching element.
func (l *List[T]) Find(m Matcher[T]) (T, bool) {
	i := m.indexIn(l.items)
	if i < 0 {
		var zero T
		return zero, false
	}
	return l.items[i], true
}

// Index returns the position of the first matching element, or -1.
func (l *List[T]) Index(m Matcher[T]) int {
	return m.indexIn(l.items)
}

// Len returns the number of elements.
func (l *List[T]) Len() int {
	return len(l.items)
}

// Snapshot returns an order-preserving copy of the elements.
func (l *List[T]) Snapshot() []T {
	return slices.Clone(l.items)
}
