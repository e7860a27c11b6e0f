package store

import (
	"context"
	"encoding/json"
	"sync"
)

// Memory is an in-process Tree. Values are stored encoded so that reads
// behave like the SQL backend.
type Memory struct {
	mu    sync.RWMutex
	nodes map[string]map[string]string

	// FailWrites makes every write return this error. Used by tests.
	FailWrites error
}

var _ Tree = (*Memory)(nil)

func NewMemory() *Memory {
	return &Memory{nodes: map[string]map[string]string{}}
}

func (m *Memory) Get(ctx context.Context, path string) (map[string]json.RawMessage, error) {
	parent, err := datasetPath(path)
	if err != nil {
		return nil, storageErr("get", path, err)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make(map[string]json.RawMessage, len(m.nodes[parent]))
	for k, v := range m.nodes[parent] {
		out[k] = json.RawMessage(v)
	}
	return out, nil
}

func (m *Memory) Update(ctx context.Context, path string, children map[string]any) error {
	return storageErr("update", path, m.write(path, children, false))
}

func (m *Memory) Set(ctx context.Context, path string, children map[string]any) error {
	return storageErr("set", path, m.write(path, children, true))
}

func (m *Memory) write(path string, children map[string]any, replace bool) error {
	if m.FailWrites != nil {
		return m.FailWrites
	}
	parent, err := datasetPath(path)
	if err != nil {
		return err
	}
	enc, err := encodeChildren(children)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	node := m.nodes[parent]
	if node == nil || replace {
		node = map[string]string{}
		m.nodes[parent] = node
	}
	for k, v := range enc {
		node[k] = v
	}
	if len(node) == 0 {
		delete(m.nodes, parent)
	}
	return nil
}

// Put stores a raw encoded value, bypassing encoding. Used by tests to seed
// malformed data.
func (m *Memory) Put(parent, key, raw string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.nodes[parent] == nil {
		m.nodes[parent] = map[string]string{}
	}
	m.nodes[parent][key] = raw
}

func (m *Memory) Delete(ctx context.Context, path string) error {
	parent, key, err := splitPath(path)
	if err != nil {
		return storageErr("delete", path, err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if key == "" {
		delete(m.nodes, parent)
		return nil
	}
	delete(m.nodes[parent], key)
	if len(m.nodes[parent]) == 0 {
		delete(m.nodes, parent)
	}
	return nil
}

func (m *Memory) DeleteAll(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nodes = map[string]map[string]string{}
	return nil
}

func (m *Memory) Datasets(ctx context.Context) (map[string]int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[string]int, len(m.nodes))
	for p, n := range m.nodes {
		out[p] = len(n)
	}
	return out, nil
}
