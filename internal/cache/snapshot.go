package cache

import (
	"encoding/json"
	"time"

	"github.com/ppiankov/concordia/internal/model"
)

// Snapshots caches record lists by endpoint URL
type Snapshots struct {
	store Store
	ttl   time.Duration
}

// NewSnapshots wraps a store
func NewSnapshots(store Store, ttl time.Duration) *Snapshots {
	return &Snapshots{store: store, ttl: ttl}
}

// Get returns the cached records for endpoint, if fresh
func (s *Snapshots) Get(endpoint string) ([]model.CanonicalRecord, bool) {
	raw, ok := s.store.Get(Key(endpoint))
	if !ok {
		return nil, false
	}
	var records []model.CanonicalRecord
	if err := json.Unmarshal(raw, &records); err != nil {
		return nil, false
	}
	return records, true
}

// Put stores records for endpoint. Empty lists are not cached.
func (s *Snapshots) Put(endpoint string, records []model.CanonicalRecord) error {
	if len(records) == 0 {
		return nil
	}
	raw, err := json.Marshal(records)
	if err != nil {
		return err
	}
	return s.store.Set(Key(endpoint), raw, s.ttl)
}

// Invalidate drops the cached records for endpoint
func (s *Snapshots) Invalidate(endpoint string) error {
	return s.store.Delete(Key(endpoint))
}
