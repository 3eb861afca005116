package storage

import "sync"

// MemoryStorage - хранилище в памяти (тесты, запуск без сохранения)
type MemoryStorage struct {
	mu     sync.RWMutex
	values map[string]string
}

// NewMemoryStorage создает пустое хранилище в памяти
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{values: make(map[string]string)}
}

func (m *MemoryStorage) Get(key string) (string, bool, error) {
	if key == "" {
		return "", false, ErrEmptyKey
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.values[key]
	return v, ok, nil
}

func (m *MemoryStorage) Set(key, value string) error {
	if key == "" {
		return ErrEmptyKey
	}
	m.mu.Lock()
	m.values[key] = value
	m.mu.Unlock()
	return nil
}

func (m *MemoryStorage) Delete(key string) error {
	if key == "" {
		return ErrEmptyKey
	}
	m.mu.Lock()
	delete(m.values, key)
	m.mu.Unlock()
	return nil
}

func (m *MemoryStorage) Close() error { return nil }
