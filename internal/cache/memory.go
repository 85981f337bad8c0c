package cache

import (
	"context"
	"sync"
	"time"
)

type memoryEntry struct {
	value     string
	expiresAt time.Time
}

// Memory is an in-process Store used when Redis is not configured.
type Memory struct {
	mu    sync.RWMutex
	items map[string]memoryEntry
	now   func() time.Time
}

// NewMemory returns an empty store; now defaults to time.Now.
func NewMemory(now func() time.Time) *Memory {
	if now == nil {
		now = time.Now
	}
	return &Memory{items: map[string]memoryEntry{}, now: now}
}

func (m *Memory) Get(_ context.Context, key string) (string, bool, error) {
	m.mu.RLock()
	e, ok := m.items[key]
	m.mu.RUnlock()
	if !ok {
		return "", false, nil
	}
	if !m.now().Before(e.expiresAt) {
		m.mu.Lock()
		// Re-check: a concurrent Set may have refreshed the entry.
		if cur, ok := m.items[key]; ok && !m.now().Before(cur.expiresAt) {
			delete(m.items, key)
		}
		m.mu.Unlock()
		return "", false, nil
	}
	return e.value, true, nil
}

func (m *Memory) Set(_ context.Context, key, value string, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items[key] = memoryEntry{value: value, expiresAt: m.now().Add(ttl)}
	return nil
}

// Len counts stored entries, expired ones included until next read.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.items)
}
