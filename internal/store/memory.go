package store

import (
	"context"
	"sort"
	"strings"
	"sync"
)

// Memory is an in-process backend for tests and ephemeral servers.
type Memory struct {
	mu   sync.RWMutex
	data map[string][]byte
}

func NewMemory() *Memory {
	return &Memory{data: make(map[string][]byte)}
}

func (m *Memory) Name() string {
	return "memory"
}

func (m *Memory) Put(_ context.Context, key string, value []byte) error {
	cp := append([]byte(nil), value...)
	m.mu.Lock()
	m.data[key] = cp
	m.mu.Unlock()
	return nil
}

func (m *Memory) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.RLock()
	v, ok := m.data[key]
	m.mu.RUnlock()
	if !ok {
		return nil, ErrNotFound
	}
	return append([]byte(nil), v...), nil
}

func (m *Memory) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	delete(m.data, key)
	m.mu.Unlock()
	return nil
}

func (m *Memory) Keys(_ context.Context, prefix string) ([]string, error) {
	m.mu.RLock()
	keys := make([]string, 0, len(m.data))
	for k := range m.data {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	m.mu.RUnlock()
	sort.Strings(keys)
	return keys, nil
}

func (m *Memory) Close() error {
	return nil
}
