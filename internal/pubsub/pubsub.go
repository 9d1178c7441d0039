// Package pubsub is a minimal typed publish/subscribe bus.
package pubsub

import "sync"

// Bus delivers values of type T to every registered handler.
// The zero value is ready to use.
type Bus[T any] struct {
	mu       sync.Mutex
	next     uint64
	handlers map[uint64]func(T)
	order    []uint64
}

// Subscribe registers fn and returns a function that unregisters it.
// The returned function is safe to call more than once.
func (b *Bus[T]) Subscribe(fn func(T)) (unsubscribe func()) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.handlers == nil {
		b.handlers = make(map[uint64]func(T))
	}
	id := b.next
	b.next++
	b.handlers[id] = fn
	b.order = append(b.order, id)

	var once sync.Once
	return func() {
		once.Do(func() { b.remove(id) })
	}
}

func (b *Bus[T]) remove(id uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.handlers, id)
	for i, v := range b.order {
		if v == id {
			b.order = append(b.order[:i], b.order[i+1:]...)
			break
		}
	}
}

// Emit calls every handler registered at the time of the call, in
// registration order. Handlers may subscribe or unsubscribe while being
// called; such changes apply from the next Emit.
func (b *Bus[T]) Emit(v T) {
	for _, fn := range b.snapshot() {
		fn(v)
	}
}

func (b *Bus[T]) snapshot() []func(T) {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]func(T), 0, len(b.order))
	for _, id := range b.order {
		out = append(out, b.handlers[id])
	}
	return out
}

// Len returns the number of registered handlers.
func (b *Bus[T]) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.order)
}

// Clear unregisters every handler.
func (b *Bus[T]) Clear() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers = nil
	b.order = nil
}
