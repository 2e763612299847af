package store

import (
	"sync"
	"sync/atomic"
)

// Listener receives a snapshot after each state change.
type Listener[T any] func(T)

// Store holds a value of type T and notifies subscribers on every change.
// The value must be treated as immutable: updaters return a new value
// instead of mutating the previous one.
type Store[T any] struct {
	mu        sync.Mutex
	state     T
	version   uint64
	listeners map[uint64]Listener[T]
	order     []uint64

	// queue holds produced snapshots not yet delivered.
	queue    []T
	flushing bool
}

var idCounter uint64

func nextID() uint64 {
	return atomic.AddUint64(&idCounter, 1)
}

// New creates a store with an initial value.
func New[T any](initial T) *Store[T] {
	return &Store[T]{
		state:     initial,
		listeners: make(map[uint64]Listener[T]),
	}
}

// Get returns the current snapshot.
func (s *Store[T]) Get() T {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Version returns the number of changes applied so far.
func (s *Store[T]) Version() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.version
}

// Subscribe registers fn and returns a function that removes it.
// Listeners are called in subscription order.
func (s *Store[T]) Subscribe(fn Listener[T]) (unsubscribe func()) {
	id := nextID()

	s.mu.Lock()
	s.listeners[id] = fn
	s.order = append(s.order, id)
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.listeners, id)
			for i, oid := range s.order {
				if oid == id {
					s.order = append(s.order[:i:i], s.order[i+1:]...)
					break
				}
			}
			s.mu.Unlock()
		})
	}
}

// Set replaces the state with fn(prev) and notifies subscribers.
func (s *Store[T]) Set(fn func(prev T) T) {
	s.Update(func(prev T) (T, bool) {
		return fn(prev), true
	})
}

// Update applies fn under the store lock. When fn reports false the state
// is left untouched and nobody is notified. It reports whether a change
// was applied.
//
// Snapshots are delivered by whichever goroutine is already delivering.
// When that is another goroutine, or a listener further up this one's
// stack, Update returns once the snapshot is queued and before listeners
// have seen it; Get already reflects the change.
//
// fn runs while the store is locked: it must not call back into the store.
func (s *Store[T]) Update(fn func(prev T) (T, bool)) bool {
	s.mu.Lock()
	next, changed := fn(s.state)
	if !changed {
		s.mu.Unlock()
		return false
	}
	s.state = next
	s.version++
	s.queue = append(s.queue, next)

	if s.flushing {
		// The goroutine currently flushing will deliver this snapshot.
		s.mu.Unlock()
		return true
	}
	s.flushing = true
	s.flushLocked()
	s.mu.Unlock()
	return true
}

// flushLocked delivers queued snapshots in order. Called with s.mu held;
// the lock is released around listener calls.
func (s *Store[T]) flushLocked() {
	for len(s.queue) > 0 {
		snap := s.queue[0]
		var zero T
		s.queue[0] = zero
		s.queue = s.queue[1:]

		listeners := make([]Listener[T], 0, len(s.order))
		for _, id := range s.order {
			listeners = append(listeners, s.listeners[id])
		}

		s.mu.Unlock()
		for _, l := range listeners {
			l(snap)
		}
		s.mu.Lock()
	}
	s.flushing = false
}
