// Package memory is the in-process registry.Store.
package memory

import (
	"context"
	"sync"

	"github.com/ggoodman/dialog-session-go/registry"
)

// Store keeps entries in a map guarded by a mutex.
type Store struct {
	mu      sync.Mutex
	entries map[string]bool // id -> ready
	pending map[string]struct{}
}

// New returns an empty Store.
func New() *Store {
	return &Store{
		entries: make(map[string]bool),
		pending: make(map[string]struct{}),
	}
}

func (s *Store) Insert(_ context.Context, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.entries[id]; ok {
		return false, nil
	}
	s.entries[id] = false
	return true, nil
}

func (s *Store) Confirm(_ context.Context, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, pending := s.pending[id]
	delete(s.pending, id)
	s.entries[id] = true
	return pending, nil
}

func (s *Store) DeferDismiss(_ context.Context, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ready, ok := s.entries[id]
	if !ok || ready {
		return false, nil
	}
	s.pending[id] = struct{}{}
	return true, nil
}

func (s *Store) Remove(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, id)
	delete(s.pending, id)
	return nil
}

func (s *Store) Get(_ context.Context, id string) (registry.Entry, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ready, ok := s.entries[id]
	if !ok {
		return registry.Entry{}, false, nil
	}
	_, pending := s.pending[id]
	return registry.Entry{Ready: ready, DismissPending: pending}, true, nil
}

// Len reports the number of registered identifiers.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

var _ registry.Store = (*Store)(nil)
