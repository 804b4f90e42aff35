package kvclient

import (
	"context"
	"sort"
	"strings"
	"sync"
)

// Memory is an in-process Client backed by a map, used by backup/
// restore tests so they never need a real network endpoint.
type Memory struct {
	mu            sync.Mutex
	data          map[string][]byte
	optimizeCalls int
}

func NewMemory() *Memory { return &Memory{data: make(map[string][]byte)} }

func (m *Memory) Connect(ctx context.Context, addr string) error { return nil }

func (m *Memory) Put(ctx context.Context, key string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	buf := make([]byte, len(value))
	copy(buf, value)
	m.data[key] = buf
	return nil
}

func (m *Memory) Get(ctx context.Context, key string) ([]byte, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.data[key]
	if !ok {
		return nil, false, nil
	}
	buf := make([]byte, len(v))
	copy(buf, v)
	return buf, true, nil
}

func (m *Memory) Out(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, key)
	return nil
}

func (m *Memory) GetForwardMatchKeys(ctx context.Context, prefix string, limit int, sink func(key string) bool) error {
	m.mu.Lock()
	keys := make([]string, 0)
	for k := range m.data {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	m.mu.Unlock()
	sort.Strings(keys)
	if limit > 0 && len(keys) > limit {
		keys = keys[:limit]
	}
	for _, k := range keys {
		if !sink(k) {
			break
		}
	}
	return nil
}

func (m *Memory) Optimize(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.optimizeCalls++
	return nil
}

func (m *Memory) Close() error { return nil }

// Dump returns a copy of every key/value currently stored, for tests
// that need to assert on the exact set of keys a backup attempt wrote.
func (m *Memory) Dump() map[string][]byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string][]byte, len(m.data))
	for k, v := range m.data {
		buf := make([]byte, len(v))
		copy(buf, v)
		out[k] = buf
	}
	return out
}

// OptimizeCalls reports how many times Optimize has been invoked.
func (m *Memory) OptimizeCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.optimizeCalls
}
