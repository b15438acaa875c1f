package mirror

import (
	"context"
	"fmt"
	"sync"
)

// Mem is an in-memory Store for tests. Version tags are a write counter
// per key, so every rewrite changes the tag.
type Mem struct {
	mu      sync.Mutex
	objects map[string][]byte
	tags    map[string]string
	writes  int
	// FailReads makes Read return an error, simulating a flaky mirror.
	FailReads bool
}

func NewMem() *Mem {
	return &Mem{
		objects: make(map[string][]byte),
		tags:    make(map[string]string),
	}
}

func (m *Mem) Head(ctx context.Context, key string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	tag, ok := m.tags[key]
	if !ok {
		return "", ErrNotFound
	}
	return tag, nil
}

func (m *Mem) Read(ctx context.Context, key string) ([]byte, string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailReads {
		return nil, "", fmt.Errorf("mirror read failed")
	}
	data, ok := m.objects[key]
	if !ok {
		return nil, "", ErrNotFound
	}
	return data, m.tags[key], nil
}

func (m *Mem) Write(ctx context.Context, key string, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.writes++
	m.objects[key] = data
	m.tags[key] = fmt.Sprintf("\"v%d\"", m.writes)
	return nil
}

func (m *Mem) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.objects, key)
	delete(m.tags, key)
	return nil
}
