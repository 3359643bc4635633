package validation

import "sync"

// StatusStore is the shared position-id to status map constructed once at
// startup and handed explicitly to both the resolution path (writes) and the
// export writer's enrichment step (reads). It exists so the two sides never
// have to share ambient global state.
type StatusStore struct {
	mu sync.RWMutex
	m  map[string]string
}

func NewStatusStore() *StatusStore {
	return &StatusStore{m: make(map[string]string)}
}

func (s *StatusStore) Set(id, status string) {
	s.mu.Lock()
	s.m[id] = status
	s.mu.Unlock()
}

func (s *StatusStore) Get(id string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.m[id]
	return v, ok
}

func (s *StatusStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.m)
}
