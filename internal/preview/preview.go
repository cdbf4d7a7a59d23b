// Package preview manages the revocable display handles attached to
// transform results. A handle is acquired when a result is created and must
// be released exactly once: when its job leaves a terminal state, when the
// batch is replaced, or on teardown.
package preview

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/dunamismax/batchpix/internal/id"
)

var ErrHandleNotFound = errors.New("preview handle not found")

type Store interface {
	// Put stages encoded bytes for display and returns an opaque handle.
	Put(ctx context.Context, jobID string, data []byte, contentType string) (string, error)
	// Open resolves a handle back to its bytes.
	Open(ctx context.Context, handle string) ([]byte, error)
	// Release revokes a handle. Releasing an unknown handle is an error so
	// double releases surface in tests.
	Release(ctx context.Context, handle string) error
}

// MemoryStore keeps previews in process memory.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string][]byte
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		entries: make(map[string][]byte),
	}
}

func (s *MemoryStore) Put(_ context.Context, jobID string, data []byte, _ string) (string, error) {
	handle := fmt.Sprintf("%s/%s", jobID, id.New())

	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[handle] = data
	return handle, nil
}

func (s *MemoryStore) Open(_ context.Context, handle string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	data, ok := s.entries[handle]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrHandleNotFound, handle)
	}
	return data, nil
}

func (s *MemoryStore) Release(_ context.Context, handle string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.entries[handle]; !ok {
		return fmt.Errorf("%w: %s", ErrHandleNotFound, handle)
	}
	delete(s.entries, handle)
	return nil
}

// Len reports the number of live handles.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}
