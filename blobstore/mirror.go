package blobstore

import (
	"context"
	"slices"
	"sync"
)

// Mirror is an offsite copy of the sealed objects, addressed by MirrorKey.
// Objects are stored exactly as on disk, already encrypted.
type Mirror interface {
	Put(ctx context.Context, key string, data []byte) error
	// Get returns an error satisfying errors.Is(err, ErrNotFound) for a missing key.
	Get(ctx context.Context, key string) ([]byte, error)
	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error
}

// MemoryMirror is an in-memory Mirror for tests.
// Thread-safe for concurrent reads and writes.
type MemoryMirror struct {
	mu      sync.RWMutex
	objects map[string][]byte
}

// NewMemoryMirror creates an empty in-memory mirror.
func NewMemoryMirror() *MemoryMirror {
	return &MemoryMirror{objects: make(map[string][]byte)}
}

// Put stores a copy of data.
func (m *MemoryMirror) Put(_ context.Context, key string, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[key] = slices.Clone(data)
	return nil
}

// Get returns a copy of the stored object.
func (m *MemoryMirror) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	data, ok := m.objects[key]
	if !ok {
		return nil, ErrNotFound
	}
	return slices.Clone(data), nil
}

// Delete removes key.
func (m *MemoryMirror) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.objects, key)
	return nil
}

// Keys returns the stored keys in sorted order.
func (m *MemoryMirror) Keys() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	keys := make([]string, 0, len(m.objects))
	for k := range m.objects {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
