package contentstore

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/starford/vaultvec/internal/apperr"
	"github.com/starford/vaultvec/internal/models"
)

// Memory keeps records in a map. The page size is configurable so tests
// can exercise multi-page listings.
type Memory struct {
	mu       sync.RWMutex
	records  map[string]models.ContentRecord
	pageSize int
	puts     int
}

// NewMemory creates an empty store.
func NewMemory(pageSize int) *Memory {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	return &Memory{records: make(map[string]models.ContentRecord), pageSize: pageSize}
}

func (m *Memory) Get(_ context.Context, key string) (*models.ContentRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rec, ok := m.records[key]
	if !ok {
		return nil, fmt.Errorf("contentstore: get %s: %w", key, apperr.ErrNotFound)
	}
	val := make([]byte, len(rec.Value))
	copy(val, rec.Value)
	rec.Value = val
	return &rec, nil
}

func (m *Memory) Head(_ context.Context, key string) (*models.ObjectInfo, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rec, ok := m.records[key]
	if !ok {
		return nil, fmt.Errorf("contentstore: head %s: %w", key, apperr.ErrNotFound)
	}
	return &models.ObjectInfo{Key: key, Checksum: rec.Checksum, Size: rec.Size}, nil
}

func (m *Memory) Put(_ context.Context, key string, value []byte, checksum string) error {
	val := make([]byte, len(value))
	copy(val, value)
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records[key] = models.ContentRecord{Key: key, Value: val, Checksum: checksum, Size: int64(len(val))}
	m.puts++
	return nil
}

func (m *Memory) List(_ context.Context, prefix, pageToken string) (*models.ListPage, error) {
	after, err := decodeToken(pageToken)
	if err != nil {
		return nil, err
	}
	m.mu.RLock()
	keys := make([]string, 0, len(m.records))
	for k := range m.records {
		if strings.HasPrefix(k, prefix) && (after == "" || k > after) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	page := &models.ListPage{Items: []models.ObjectInfo{}}
	for i, k := range keys {
		if i == m.pageSize {
			page.NextPageToken = encodeToken(keys[i-1])
			break
		}
		rec := m.records[k]
		page.Items = append(page.Items, models.ObjectInfo{Key: k, Checksum: rec.Checksum, Size: rec.Size})
	}
	m.mu.RUnlock()
	return page, nil
}

func (m *Memory) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.records, key)
	return nil
}

// Puts reports how many writes the store has accepted.
func (m *Memory) Puts() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.puts
}

func (m *Memory) Close() error { return nil }
