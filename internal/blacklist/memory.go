package blacklist

import (
	"sync"

	"github.com/dresos/duckbot/internal/metrics"
)

// Memory is a mutex-guarded in-memory blacklist. It preserves insertion
// order for List and keeps each id at most once.
type Memory struct {
	mu    sync.Mutex
	set   map[int64]struct{}
	order []int64
}

// NewMemory creates an empty in-memory blacklist.
func NewMemory() *Memory {
	return &Memory{set: make(map[int64]struct{})}
}

// Add inserts id. Adding an already-present id is a no-op.
func (m *Memory) Add(id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.set[id]; ok {
		return nil
	}
	m.set[id] = struct{}{}
	m.order = append(m.order, id)
	metrics.BlacklistSize.Set(float64(len(m.set)))
	return nil
}

// Remove deletes id. Removing an absent id is a no-op.
func (m *Memory) Remove(id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.set[id]; !ok {
		return nil
	}
	delete(m.set, id)
	for i, v := range m.order {
		if v == id {
			m.order = append(m.order[:i], m.order[i+1:]...)
			break
		}
	}
	metrics.BlacklistSize.Set(float64(len(m.set)))
	return nil
}

// Contains reports whether id is blacklisted.
func (m *Memory) Contains(id int64) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.set[id]
	return ok, nil
}

// List returns all blacklisted ids in insertion order.
func (m *Memory) List() ([]int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]int64, len(m.order))
	copy(out, m.order)
	return out, nil
}

// Close is a no-op for the in-memory store.
func (m *Memory) Close() error { return nil }
