package store

import (
	"context"
	"sync"
)

// MemoryBackend is an in-process Backend. Nothing survives a restart; it
// exists for tests and for ephemeral environments. FailOn forces an error
// for a given key on any operation, which tests use to exercise the
// swallow-and-log policy.
type MemoryBackend struct {
	mu     sync.Mutex
	items  map[string]string
	failOn map[string]error
}

var _ Backend = (*MemoryBackend)(nil)

// NewMemoryBackend creates an empty in-memory Backend.
func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{
		items:  map[string]string{},
		failOn: map[string]error{},
	}
}

// FailOn makes every operation on key return err. Passing nil clears the
// injection.
func (m *MemoryBackend) FailOn(key string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err == nil {
		delete(m.failOn, key)
		return
	}
	m.failOn[key] = err
}

// Len reports the number of stored items.
func (m *MemoryBackend) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.items)
}

func (m *MemoryBackend) GetItem(_ context.Context, key string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err, ok := m.failOn[key]; ok {
		return "", err
	}

	value, ok := m.items[key]
	if !ok {
		return "", errNotFound
	}
	return value, nil
}

func (m *MemoryBackend) SetItem(_ context.Context, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err, ok := m.failOn[key]; ok {
		return err
	}

	m.items[key] = value
	return nil
}

func (m *MemoryBackend) RemoveItem(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err, ok := m.failOn[key]; ok {
		return err
	}

	delete(m.items, key)
	return nil
}
