package cache

import (
	"sync"
	"time"

	"github.com/mealscan/mealscan-api/internal/models"
)

type memoryKey struct {
	fingerprint string
	category    models.CacheCategory
}

// MemoryStore is an in-process Store used in tests and single-node setups.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[memoryKey]models.CacheEntry
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: make(map[memoryKey]models.CacheEntry)}
}

func (m *MemoryStore) Get(fingerprint string, category models.CacheCategory) (*models.CacheEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	entry, ok := m.entries[memoryKey{fingerprint, category}]
	if !ok {
		return nil, nil
	}
	cp := entry
	return &cp, nil
}

func (m *MemoryStore) Put(entry *models.CacheEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[memoryKey{entry.Fingerprint, entry.Category}] = *entry
	return nil
}

func (m *MemoryStore) Delete(fingerprint string, category models.CacheCategory) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entries, memoryKey{fingerprint, category})
	return nil
}

func (m *MemoryStore) DeleteExpired(now time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var removed int64
	for k, e := range m.entries {
		if e.Expired(now) {
			delete(m.entries, k)
			removed++
		}
	}
	return removed, nil
}

var _ Store = (*MemoryStore)(nil)
