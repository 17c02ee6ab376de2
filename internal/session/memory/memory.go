package memory

import (
	"context"
	"sync"
)

// Store keeps sessions in process memory. Used for local runs and tests.
type Store struct {
	mu       sync.RWMutex
	sessions map[string]map[string][]byte
}

func NewStore() *Store {
	return &Store{sessions: make(map[string]map[string][]byte)}
}

// Load returns a copy of the stored values.
func (s *Store) Load(ctx context.Context, id string) (map[string][]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[string][]byte, len(s.sessions[id]))
	for k, v := range s.sessions[id] {
		out[k] = append([]byte(nil), v...)
	}
	return out, nil
}

func (s *Store) Save(ctx context.Context, id string, set map[string][]byte, deleted []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	values, ok := s.sessions[id]
	if !ok {
		values = make(map[string][]byte, len(set))
		s.sessions[id] = values
	}
	for k, v := range set {
		values[k] = append([]byte(nil), v...)
	}
	for _, k := range deleted {
		delete(values, k)
	}
	if len(values) == 0 {
		delete(s.sessions, id)
	}
	return nil
}
