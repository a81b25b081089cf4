package state

import "sync"

// Value is a minimal observable holder: Get, Set, Subscribe. Subscribers are
// notified synchronously on the mutating call's goroutine, in registration
// order. It replaces framework-specific signal types with an explicit
// read/update/notify contract.
type Value[T any] struct {
	mu      sync.RWMutex
	current T
	initial T
	nextID  int
	subs    map[int]func(T)
}

// NewValue constructs a holder seeded with initial. Reset restores this value.
func NewValue[T any](initial T) *Value[T] {
	return &Value[T]{
		current: initial,
		initial: initial,
		subs:    make(map[int]func(T)),
	}
}

// Get returns the current value.
func (v *Value[T]) Get() T {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.current
}

// Set replaces the current value and notifies subscribers.
func (v *Value[T]) Set(value T) {
	v.mu.Lock()
	v.current = value
	listeners := make([]func(T), 0, len(v.subs))
	for _, fn := range v.subs {
		listeners = append(listeners, fn)
	}
	v.mu.Unlock()

	for _, fn := range listeners {
		fn(value)
	}
}

// Update applies fn to the current value under the lock and notifies
// subscribers with the result.
func (v *Value[T]) Update(fn func(T) T) T {
	v.mu.Lock()
	v.current = fn(v.current)
	value := v.current
	listeners := make([]func(T), 0, len(v.subs))
	for _, sub := range v.subs {
		listeners = append(listeners, sub)
	}
	v.mu.Unlock()

	for _, sub := range listeners {
		sub(value)
	}
	return value
}

// Subscribe registers fn for change notifications and returns an unsubscribe
// function. fn is not called with the current value at registration.
func (v *Value[T]) Subscribe(fn func(T)) func() {
	v.mu.Lock()
	defer v.mu.Unlock()

	id := v.nextID
	v.nextID++
	v.subs[id] = fn

	return func() {
		v.mu.Lock()
		defer v.mu.Unlock()
		delete(v.subs, id)
	}
}

// Reset restores the initial value and notifies subscribers.
func (v *Value[T]) Reset() {
	v.Set(v.initial)
}
