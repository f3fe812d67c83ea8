// Package store remembers the last stream URL and resolution across restarts.
package store

import (
	"context"
	"sync"
)

// Settings is what the viewer restores on boot.
type Settings struct {
	URL        string `json:"url"`
	Resolution string `json:"resolution"`
}

// Store persists Settings.
type Store interface {
	Load(ctx context.Context) (Settings, error)
	Save(ctx context.Context, s Settings) error
	Close() error
}

// MemoryStore keeps Settings for the lifetime of the process.
type MemoryStore struct {
	mu sync.RWMutex
	s  Settings
}

var _ Store = (*MemoryStore)(nil)

func NewMemoryStore() *MemoryStore { return &MemoryStore{} }

func (m *MemoryStore) Load(context.Context) (Settings, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.s, nil
}

func (m *MemoryStore) Save(_ context.Context, s Settings) error {
	m.mu.Lock()
	m.s = s
	m.mu.Unlock()
	return nil
}

func (m *MemoryStore) Close() error { return nil }
