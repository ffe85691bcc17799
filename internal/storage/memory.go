package storage

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
)

// MemoryStore is a map-backed store for tests and dry runs
type MemoryStore struct {
	mu     sync.RWMutex
	blobs  map[string][]byte
	writes int

	// FailWrite, when set, is consulted before every write
	FailWrite func(path string) error
}

// NewMemoryStore creates an empty store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{blobs: map[string][]byte{}}
}

// Write stores a copy of payload, replacing any previous blob
func (s *MemoryStore) Write(ctx context.Context, path string, payload []byte) error {
	if s.FailWrite != nil {
		if err := s.FailWrite(path); err != nil {
			return fmt.Errorf("%w: %s: %v", ErrWrite, path, err)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.blobs[path] = append([]byte(nil), payload...)
	s.writes++
	return nil
}

// Read returns a copy of the blob at path
func (s *MemoryStore) Read(ctx context.Context, path string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	data, ok := s.blobs[path]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
	}
	return append([]byte(nil), data...), nil
}

// Paths lists stored paths with the given prefix, sorted
func (s *MemoryStore) Paths(prefix string) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]string, 0, len(s.blobs))
	for p := range s.blobs {
		if strings.HasPrefix(p, prefix) {
			out = append(out, p)
		}
	}
	sort.Strings(out)
	return out
}

// Writes returns the number of successful writes
func (s *MemoryStore) Writes() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.writes
}
