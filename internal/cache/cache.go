package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"time"
)

// Store is a byte-oriented cache with per-entry TTLs
type Store interface {
	Get(key string) ([]byte, bool)
	Set(key string, value []byte, ttl time.Duration) error
	Delete(key string) error
	Clear() error
}

// Key derives a filesystem-safe cache key for a record endpoint
func Key(endpoint string) string {
	sum := sha256.Sum256([]byte(endpoint))
	return "records-v1-" + hex.EncodeToString(sum[:])
}
