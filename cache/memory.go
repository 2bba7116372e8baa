package cache

import (
	"context"
	"sync"
	"time"
)

type entry struct {
	val     []byte
	counter int64
	expires time.Time
}

// Memory is an in-process Store. It is safe for concurrent use.
type Memory struct {
	mu      sync.Mutex
	entries map[string]entry
	now     func() time.Time
}

// NewMemory returns an empty in-process store.
func NewMemory(opts ...Option) *Memory {
	o := buildOptions(opts)
	return &Memory{entries: make(map[string]entry), now: o.now}
}

func (m *Memory) Get(_ context.Context, key string) ([]byte, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.live(key)
	if !ok || e.val == nil {
		return nil, false, nil
	}
	return append([]byte(nil), e.val...), true, nil
}

func (m *Memory) Put(_ context.Context, key string, val []byte, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.entries[key] = entry{val: append([]byte{}, val...), expires: m.now().Add(ttl)}
	return nil
}

func (m *Memory) Increment(_ context.Context, key string, ttl time.Duration) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.live(key)
	if !ok {
		e = entry{expires: m.now().Add(ttl)}
	}
	e.counter++
	m.entries[key] = e
	return e.counter, nil
}

// live returns the unexpired entry for key, dropping it if it has expired.
func (m *Memory) live(key string) (entry, bool) {
	e, ok := m.entries[key]
	if !ok {
		return entry{}, false
	}
	if !m.now().Before(e.expires) {
		delete(m.entries, key)
		return entry{}, false
	}
	return e, true
}
