// Package storage provides durable key-value persistence for whole JSON
// documents. Documents are always rewritten in full; there are no partial
// updates.
package storage

import (
	"context"
	"errors"
	"sync"
)

// Document keys used by the automation engine
const (
	// KeyPendingEvents holds the pending-events document
	KeyPendingEvents = "pending-events"
	// KeyAutomationState holds the per-profile automation counters
	KeyAutomationState = "automation-state"
	// KeyProfiles holds the profile catalog loaded by the daemon
	KeyProfiles = "profiles"
)

// ErrNotFound is returned when a document does not exist
var ErrNotFound = errors.New("document not found")

// DocumentStore persists whole documents under string keys
type DocumentStore interface {
	// Load returns the document stored under key, or ErrNotFound
	Load(ctx context.Context, key string) ([]byte, error)
	// Save overwrites the document stored under key
	Save(ctx context.Context, key string, data []byte) error
	// Close releases the underlying resources
	Close() error
}

// MemoryStore is an in-process DocumentStore for tests and ephemeral runs
type MemoryStore struct {
	mu   sync.RWMutex
	docs map[string][]byte
}

// NewMemoryStore returns an empty in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{docs: make(map[string][]byte)}
}

// Load returns the document stored under key, or ErrNotFound
func (s *MemoryStore) Load(_ context.Context, key string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	data, ok := s.docs[key]
	if !ok {
		return nil, ErrNotFound
	}
	out := make([]byte, len(data))
	copy(out, data)
	return out, nil
}

// Save overwrites the document stored under key
func (s *MemoryStore) Save(_ context.Context, key string, data []byte) error {
	stored := make([]byte, len(data))
	copy(stored, data)

	s.mu.Lock()
	s.docs[key] = stored
	s.mu.Unlock()
	return nil
}

// Close is a no-op for the in-memory store
func (s *MemoryStore) Close() error { return nil }
