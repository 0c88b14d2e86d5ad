package cache

import (
	"errors"
	"time"
)

// Layered reads memory first, then disk, and writes to both.
// A disk hit is promoted to memory.
type Layered struct {
	memory Store
	disk   Store
}

// NewLayered builds a memory+disk store
func NewLayered(ttl time.Duration, dir string) *Layered {
	return &Layered{
		memory: NewMemoryStore(ttl, 10*time.Minute),
		disk:   NewDiskStore(dir, ttl),
	}
}

func (l *Layered) Get(key string) ([]byte, bool) {
	if v, ok := l.memory.Get(key); ok {
		return v, true
	}
	v, ok := l.disk.Get(key)
	if !ok {
		return nil, false
	}
	_ = l.memory.Set(key, v, 0)
	return v, true
}

func (l *Layered) Set(key string, value []byte, ttl time.Duration) error {
	if err := l.memory.Set(key, value, ttl); err != nil {
		return err
	}
	return l.disk.Set(key, value, ttl)
}

func (l *Layered) Delete(key string) error {
	return errors.Join(l.memory.Delete(key), l.disk.Delete(key))
}

func (l *Layered) Clear() error {
	return errors.Join(l.memory.Clear(), l.disk.Clear())
}
