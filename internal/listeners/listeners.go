// Package listeners is a small callback registry used by the in-process
// event sources (device notifications, URL opens).
package listeners

import "sync"

type entry[T any] struct {
	id int
	fn func(T)
}

// Set holds callbacks for values of type T. Emit calls them in
// registration order.
type Set[T any] struct {
	mu     sync.RWMutex
	nextID int
	fns    []entry[T]
}

// Add registers fn and returns a function that removes it. The remover is
// safe to call more than once.
func (s *Set[T]) Add(fn func(T)) func() {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.nextID
	s.nextID++
	s.fns = append(s.fns, entry[T]{id: id, fn: fn})

	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		for i := range s.fns {
			if s.fns[i].id == id {
				s.fns = append(s.fns[:i:i], s.fns[i+1:]...)
				return
			}
		}
	}
}

// Emit calls every registered callback with v and returns how many ran.
// Callbacks run outside the lock, so they may add or remove listeners.
func (s *Set[T]) Emit(v T) int {
	s.mu.RLock()
	fns := make([]func(T), len(s.fns))
	for i := range s.fns {
		fns[i] = s.fns[i].fn
	}
	s.mu.RUnlock()

	for _, fn := range fns {
		fn(v)
	}
	return len(fns)
}

// Len returns the number of registered callbacks.
func (s *Set[T]) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.fns)
}
