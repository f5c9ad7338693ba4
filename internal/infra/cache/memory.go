package cache

import (
	"context"
	"sync"

	"qissati/internal/domain"
)

// MemorySettings keeps settings for the life of the process. Used when no
// Redis address is configured.
type MemorySettings struct {
	mu     sync.RWMutex
	values map[string]string
}

func NewMemory() *MemorySettings {
	return &MemorySettings{values: make(map[string]string)}
}

func (m *MemorySettings) Get(_ context.Context, key string) (string, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.values[key]
	return v, ok, nil
}

func (m *MemorySettings) Set(_ context.Context, key, value string) error {
	m.mu.Lock()
	m.values[key] = value
	m.mu.Unlock()
	return nil
}

var _ domain.SettingsRepo = (*MemorySettings)(nil)
