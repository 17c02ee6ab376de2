package session

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
)

// Store persists the values of a session between requests.
type Store interface {
	// Load returns every stored value of the session. Unknown ids yield an empty map.
	Load(ctx context.Context, id string) (map[string][]byte, error)
	// Save writes set and removes deleted in one step.
	Save(ctx context.Context, id string, set map[string][]byte, deleted []string) error
}

// Session is the per-request view of a stored session. Values are JSON encoded.
// Changes stay in memory until Save.
type Session struct {
	id    string
	store Store

	mu      sync.Mutex
	values  map[string][]byte
	dirty   map[string]struct{}
	deleted map[string]struct{}
}

// Open loads session id from store.
func Open(ctx context.Context, store Store, id string) (*Session, error) {
	values, err := store.Load(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load session: %w", err)
	}
	s := New(store, id)
	for k, v := range values {
		s.values[k] = v
	}
	return s, nil
}

// New returns an empty session bound to store without loading it.
func New(store Store, id string) *Session {
	return &Session{
		id:      id,
		store:   store,
		values:  make(map[string][]byte),
		dirty:   make(map[string]struct{}),
		deleted: make(map[string]struct{}),
	}
}

func (s *Session) ID() string { return s.id }

// Get decodes the value under key into dst and reports whether it existed.
func (s *Session) Get(key string, dst any) (bool, error) {
	s.mu.Lock()
	raw, ok := s.values[key]
	s.mu.Unlock()
	if !ok {
		return false, nil
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return true, fmt.Errorf("failed to decode session value %s: %w", key, err)
	}
	return true, nil
}

// Has reports whether key holds a value.
func (s *Session) Has(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.values[key]
	return ok
}

// Set encodes value under key.
func (s *Session) Set(key string, value any) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to encode session value %s: %w", key, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[key] = raw
	s.dirty[key] = struct{}{}
	delete(s.deleted, key)
	return nil
}

// Remove clears key.
func (s *Session) Remove(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.values, key)
	delete(s.dirty, key)
	s.deleted[key] = struct{}{}
}

// Keys lists the keys currently holding values.
func (s *Session) Keys() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	keys := make([]string, 0, len(s.values))
	for k := range s.values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Save flushes pending changes to the store. Without pending changes it does nothing.
func (s *Session) Save(ctx context.Context) error {
	s.mu.Lock()
	if len(s.dirty) == 0 && len(s.deleted) == 0 {
		s.mu.Unlock()
		return nil
	}
	set := make(map[string][]byte, len(s.dirty))
	for k := range s.dirty {
		set[k] = s.values[k]
	}
	deleted := make([]string, 0, len(s.deleted))
	for k := range s.deleted {
		deleted = append(deleted, k)
	}
	sort.Strings(deleted)
	s.mu.Unlock()

	if err := s.store.Save(ctx, s.id, set, deleted); err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}

	s.mu.Lock()
	for k := range set {
		if string(s.values[k]) == string(set[k]) {
			delete(s.dirty, k)
		}
	}
	for _, k := range deleted {
		if _, ok := s.values[k]; !ok {
			delete(s.deleted, k)
		}
	}
	s.mu.Unlock()
	return nil
}
