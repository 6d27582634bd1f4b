package gpu

import (
	"sync"
)

// Shared is a reference-counted owner. When the last reference is released
// the value is handed to the release function, which normally pushes it on a
// ReclaimQueue rather than destroying it inline.
type Shared[T Destroyer] struct {
	mu      sync.Mutex
	value   T
	refs    int
	release func(Destroyer)
}

// NewShared returns a Shared holding one reference to v. A nil release
// destroys the value directly.
func NewShared[T Destroyer](v T, release func(Destroyer)) *Shared[T] {
	if release == nil {
		release = func(d Destroyer) { d.Destroy() }
	}
	return &Shared[T]{value: v, refs: 1, release: release}
}

func (s *Shared[T]) Get() T { return s.value }

// Refs returns the current reference count.
func (s *Shared[T]) Refs() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.refs
}

// Retain adds a reference and returns s.
func (s *Shared[T]) Retain() *Shared[T] {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.refs <= 0 {
		panic("gpu: retain of released object")
	}
	s.refs++
	return s
}

// Release drops a reference. It reports whether this was the last one.
func (s *Shared[T]) Release() bool {
	s.mu.Lock()
	s.refs--
	last := s.refs == 0
	if s.refs < 0 {
		s.mu.Unlock()
		panic("gpu: release of released object")
	}
	s.mu.Unlock()
	if last {
		s.release(s.value)
	}
	return last
}
