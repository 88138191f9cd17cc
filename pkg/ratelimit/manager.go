package ratelimit

import (
	"fmt"
	"sync"
)

// Manager holds the process's named limiters.
type Manager struct {
	mu       sync.RWMutex
	limiters map[string]*Limiter
}

// NewManager creates an empty limiter manager.
func NewManager() *Manager {
	return &Manager{
		limiters: make(map[string]*Limiter),
	}
}

// Configure creates and registers a limiter under the given name.
// Reconfiguring an existing name replaces the limiter with fresh buckets.
func (m *Manager) Configure(name string, limits Limits) (*Limiter, error) {
	limiter, err := New(name, limits)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.limiters[name] = limiter
	return limiter, nil
}

// Get returns the limiter registered under name.
func (m *Manager) Get(name string) (*Limiter, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	limiter, ok := m.limiters[name]
	if !ok {
		return nil, fmt.Errorf("no limiter named %q", name)
	}
	return limiter, nil
}

// Snapshot reports bucket levels for every registered limiter.
func (m *Manager) Snapshot() map[string][]Usage {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make(map[string][]Usage, len(m.limiters))
	for name, limiter := range m.limiters {
		out[name] = limiter.Snapshot()
	}
	return out
}
