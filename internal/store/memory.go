package store

import (
	"context"
	"sort"
	"sync"
	"time"
)

type memoryKey struct {
	env string
	key string
}

// MemoryStore is an in-memory implementation of the Store interface.
// It uses a map for storage and RWMutex for thread-safe concurrent access.
// This implementation is suitable for development, testing, or single-instance deployments.
type MemoryStore struct {
	mu     sync.RWMutex
	splits map[memoryKey]Split
}

// NewMemoryStore creates a new in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		splits: make(map[memoryKey]Split),
	}
}

// ListSplits retrieves all splits for the given environment, ordered by key.
func (m *MemoryStore) ListSplits(ctx context.Context, env string) ([]Split, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]Split, 0, len(m.splits))
	for k, s := range m.splits {
		if k.env == env {
			s.Groups = copyGroups(s.Groups)
			result = append(result, s)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Key < result[j].Key })
	return result, nil
}

// GetSplit retrieves a single split.
func (m *MemoryStore) GetSplit(ctx context.Context, env, key string) (*Split, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s, exists := m.splits[memoryKey{env: env, key: key}]
	if !exists {
		return nil, ErrNotFound
	}
	s.Groups = copyGroups(s.Groups)
	return &s, nil
}

// UpsertSplit creates or updates a split in memory.
func (m *MemoryStore) UpsertSplit(ctx context.Context, params UpsertParams) (*Split, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s := Split{
		Key:             params.Key,
		Description:     params.Description,
		Alphabet:        params.Alphabet,
		CaseInsensitive: params.CaseInsensitive,
		Salt:            params.Salt,
		Groups:          copyGroups(params.Groups),
		Env:             params.Env,
		UpdatedAt:       time.Now().UTC(),
	}
	m.splits[memoryKey{env: params.Env, key: params.Key}] = s

	out := s
	out.Groups = copyGroups(s.Groups)
	return &out, nil
}

// DeleteSplit removes a split from memory.
func (m *MemoryStore) DeleteSplit(ctx context.Context, env, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	// Idempotent: no error if split doesn't exist
	delete(m.splits, memoryKey{env: env, key: key})
	return nil
}

// Close is a no-op for MemoryStore as there are no resources to release.
func (m *MemoryStore) Close() error {
	return nil
}
