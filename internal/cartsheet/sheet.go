// Package cartsheet holds whether the cart drawer is open. It knows nothing
// about cart contents.
package cartsheet

import "sync"

type Store struct {
	mu   sync.Mutex
	open bool

	subs   map[int]func(bool)
	nextID int
}

func New() *Store {
	return &Store{subs: make(map[int]func(bool))}
}

func (s *Store) Open() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.open
}

// SetOpen records the drawer state. Subscribers are only told about changes.
func (s *Store) SetOpen(open bool) {
	s.mu.Lock()
	if s.open == open {
		s.mu.Unlock()
		return
	}
	s.open = open
	subs := make([]func(bool), 0, len(s.subs))
	for _, fn := range s.subs {
		subs = append(subs, fn)
	}
	s.mu.Unlock()

	for _, fn := range subs {
		fn(open)
	}
}

func (s *Store) Subscribe(fn func(bool)) (unsubscribe func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.nextID
	s.nextID++
	s.subs[id] = fn
	return func() {
		s.mu.Lock()
		delete(s.subs, id)
		s.mu.Unlock()
	}
}
