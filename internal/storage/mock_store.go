package storage

import (
	"context"
	"sync"
	"time"
)

// MemoryStore is an in-memory Store used for dry runs and tests.
type MemoryStore struct {
	mu      sync.RWMutex
	objects map[string]memoryObject
	calls   MemoryCalls
}

type memoryObject struct {
	data []byte
	meta Metadata
}

// MemoryCalls tracks method invocations for test verification.
type MemoryCalls struct {
	Put    int
	Get    int
	Exists int
	Delete int
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{objects: make(map[string]memoryObject)}
}

func (m *MemoryStore) Put(ctx context.Context, name string, data []byte, meta Metadata) (string, error) {
	clean, err := cleanName(name)
	if err != nil {
		return "", err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls.Put++

	meta.Size = int64(len(data))
	if meta.CreatedAt.IsZero() {
		meta.CreatedAt = time.Now().UTC()
	}
	m.objects[clean] = memoryObject{data: append([]byte(nil), data...), meta: meta}
	return "mem://" + clean, nil
}

func (m *MemoryStore) Get(ctx context.Context, name string) ([]byte, error) {
	clean, err := cleanName(name)
	if err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls.Get++

	obj, ok := m.objects[clean]
	if !ok {
		return nil, ErrNotFound{Name: name}
	}
	return append([]byte(nil), obj.data...), nil
}

// Metadata returns what Put recorded for name.
func (m *MemoryStore) Metadata(name string) (Metadata, bool) {
	clean, err := cleanName(name)
	if err != nil {
		return Metadata{}, false
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	obj, ok := m.objects[clean]
	return obj.meta, ok
}

func (m *MemoryStore) Exists(ctx context.Context, name string) (bool, error) {
	clean, err := cleanName(name)
	if err != nil {
		return false, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls.Exists++
	_, ok := m.objects[clean]
	return ok, nil
}

func (m *MemoryStore) Delete(ctx context.Context, name string) error {
	clean, err := cleanName(name)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls.Delete++
	delete(m.objects, clean)
	return nil
}

func (m *MemoryStore) Close() error { return nil }

// Calls returns a snapshot of the invocation counters.
func (m *MemoryStore) Calls() MemoryCalls {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.calls
}

// Len returns the number of stored objects.
func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.objects)
}

var _ Store = (*MemoryStore)(nil)
