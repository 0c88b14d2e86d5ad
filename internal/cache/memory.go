package cache

import (
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// MemoryStore keeps entries in process memory
type MemoryStore struct {
	cache *gocache.Cache
}

// NewMemoryStore creates a memory store; expired entries are swept every cleanupInterval
func NewMemoryStore(defaultTTL, cleanupInterval time.Duration) *MemoryStore {
	return &MemoryStore{cache: gocache.New(defaultTTL, cleanupInterval)}
}

func (m *MemoryStore) Get(key string) ([]byte, bool) {
	v, ok := m.cache.Get(key)
	if !ok {
		return nil, false
	}
	b, ok := v.([]byte)
	return b, ok
}

// Set stores value; a zero ttl uses the store default
func (m *MemoryStore) Set(key string, value []byte, ttl time.Duration) error {
	m.cache.Set(key, value, ttl)
	return nil
}

func (m *MemoryStore) Delete(key string) error {
	m.cache.Delete(key)
	return nil
}

func (m *MemoryStore) Clear() error {
	m.cache.Flush()
	return nil
}
