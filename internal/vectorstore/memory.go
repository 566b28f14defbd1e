package vectorstore

import (
	"context"
	"sort"
	"sync"

	"github.com/starford/vaultvec/internal/models"
)

// Memory is an exact brute-force store. It backs tests and the "memory"
// backend for throwaway runs.
type Memory struct {
	mu      sync.RWMutex
	dims    int
	entries map[string]models.IndexEntry
}

// NewMemory creates an empty store for vectors of size dims.
func NewMemory(dims int) *Memory {
	return &Memory{dims: dims, entries: make(map[string]models.IndexEntry)}
}

// Upsert stores copies of entries.
func (m *Memory) Upsert(_ context.Context, entries []models.IndexEntry) error {
	for _, e := range entries {
		if len(e.Vector) != m.dims {
			return dimensionError(m.dims, len(e.Vector))
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, e := range entries {
		vec := make([]float32, len(e.Vector))
		copy(vec, e.Vector)
		e.Vector = vec
		m.entries[e.ID] = e
	}
	return nil
}

// Query scores every entry and returns the best topK.
func (m *Memory) Query(_ context.Context, vector []float32, topK int) ([]models.Match, error) {
	if len(vector) != m.dims {
		return nil, dimensionError(m.dims, len(vector))
	}
	m.mu.RLock()
	matches := make([]models.Match, 0, len(m.entries))
	for id, e := range m.entries {
		matches = append(matches, models.Match{ID: id, Score: cosine(vector, e.Vector), Metadata: e.Metadata})
	}
	m.mu.RUnlock()

	sort.Slice(matches, func(i, j int) bool {
		if matches[i].Score != matches[j].Score {
			return matches[i].Score > matches[j].Score
		}
		return matches[i].ID < matches[j].ID
	})
	if topK >= 0 && len(matches) > topK {
		matches = matches[:topK]
	}
	return matches, nil
}

// DeleteByIDs removes entries.
func (m *Memory) DeleteByIDs(_ context.Context, ids []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, id := range ids {
		delete(m.entries, id)
	}
	return nil
}

// Count returns the number of entries.
func (m *Memory) Count(context.Context) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries), nil
}

// Get returns a stored entry. It is used by tests and diagnostics.
func (m *Memory) Get(id string) (models.IndexEntry, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.entries[id]
	return e, ok
}

// Close is a no-op.
func (m *Memory) Close() error { return nil }
