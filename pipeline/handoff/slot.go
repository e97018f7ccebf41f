package handoff

import "sync"

/*
Slot is a single-slot mailbox for handing a selected media item from
the flow that picked it to the flow that analyzes it. Peek reads
without consuming (for previews), Take consumes: after a Take the slot
is empty until the next Set. A Set overwrites any unconsumed value.
*/
type Slot[T any] struct {
	mu   sync.Mutex
	val  T
	full bool
}

func (s *Slot[T]) Set(v T) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.val = v
	s.full = true
}

func (s *Slot[T]) Peek() (T, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.val, s.full
}

func (s *Slot[T]) Take() (T, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.val, s.full
	var zero T
	s.val = zero
	s.full = false
	return v, ok
}
