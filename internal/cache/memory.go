package cache

import (
	"context"
	"sync"
	"time"
)

// MemoryCache is the in-process fallback used when Redis is disabled
type MemoryCache struct {
	mu      sync.Mutex
	items   map[string]memoryItem
	windows map[string]*rateWindow
}

type memoryItem struct {
	payload    []byte
	expiration time.Time
}

type rateWindow struct {
	start time.Time
	count int
}

// NewMemoryCache creates an in-process cache
func NewMemoryCache() *MemoryCache {
	return &MemoryCache{
		items:   make(map[string]memoryItem),
		windows: make(map[string]*rateWindow),
	}
}

// Get retrieves a cached payload
func (m *MemoryCache) Get(_ context.Context, key string) ([]byte, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	item, ok := m.items[key]
	if !ok {
		return nil, false, nil
	}
	if !item.expiration.IsZero() && time.Now().After(item.expiration) {
		delete(m.items, key)
		return nil, false, nil
	}
	return item.payload, true, nil
}

// Set stores a payload with an expiration
func (m *MemoryCache) Set(_ context.Context, key string, payload []byte, expiration time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	item := memoryItem{payload: payload}
	if expiration > 0 {
		item.expiration = time.Now().Add(expiration)
	}
	m.items[key] = item
	return nil
}

// Del removes keys
func (m *MemoryCache) Del(_ context.Context, keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, key := range keys {
		delete(m.items, key)
	}
	return nil
}

// CheckRateLimit implements a fixed-window counter per provider
func (m *MemoryCache) CheckRateLimit(_ context.Context, provider string, limit int, window time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now()
	w, ok := m.windows[provider]
	if !ok || now.Sub(w.start) >= window {
		w = &rateWindow{start: now}
		m.windows[provider] = w
	}
	w.count++
	return w.count <= limit, nil
}

// Close is a no-op for the memory backend
func (m *MemoryCache) Close() error {
	return nil
}
