package auth

import (
	"errors"
	"sync"
)

// ErrNotFound is returned by Storage.Load when nothing is stored under the key
var ErrNotFound = errors.New("not found")

// Storage is a durable key/value store for client state that must survive
// restarts. Each store persists its state under a single key.
// Implementations exist for the OS keyring, a local JSON file, Redis and
// memory.
type Storage interface {
	Load(key string) ([]byte, error)
	Save(key string, data []byte) error
	// Delete removes key. Deleting a missing key is not an error.
	Delete(key string) error
}

// MemoryStorage keeps state in process memory
type MemoryStorage struct {
	mu   sync.RWMutex
	data map[string][]byte
}

// NewMemoryStorage returns an empty MemoryStorage
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{data: make(map[string][]byte)}
}

func (m *MemoryStorage) Load(key string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.data[key]
	if !ok {
		return nil, ErrNotFound
	}
	out := make([]byte, len(v))
	copy(out, v)
	return out, nil
}

func (m *MemoryStorage) Save(key string, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	v := make([]byte, len(data))
	copy(v, data)
	m.data[key] = v
	return nil
}

func (m *MemoryStorage) Delete(key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, key)
	return nil
}
