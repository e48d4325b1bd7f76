package store

import (
	"context"
	"sort"
	"sync"
)

type memCollection struct {
	docs map[int64][]byte
	last int64
}

// Memory is a process-local Backend. Contents are lost on exit.
type Memory struct {
	mu          sync.RWMutex
	collections map[string]*memCollection
}

// NewMemory creates an empty in-memory backend.
func NewMemory() *Memory {
	return &Memory{collections: make(map[string]*memCollection)}
}

func (m *Memory) coll(name string) *memCollection {
	c, ok := m.collections[name]
	if !ok {
		c = &memCollection{docs: make(map[int64][]byte)}
		m.collections[name] = c
	}
	return c
}

func (m *Memory) List(_ context.Context, collection string) ([]Document, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.collections[collection]
	if !ok {
		return nil, nil
	}
	out := make([]Document, 0, len(c.docs))
	for id, data := range c.docs {
		out = append(out, Document{ID: id, Data: clone(data)})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *Memory) Get(_ context.Context, collection string, id int64) (Document, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if c, ok := m.collections[collection]; ok {
		if data, ok := c.docs[id]; ok {
			return Document{ID: id, Data: clone(data)}, nil
		}
	}
	return Document{}, ErrNotFound
}

func (m *Memory) Insert(_ context.Context, collection string, data []byte) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c := m.coll(collection)
	c.last++
	c.docs[c.last] = clone(data)
	return c.last, nil
}

func (m *Memory) Update(_ context.Context, collection string, id int64, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c := m.coll(collection)
	if _, ok := c.docs[id]; !ok {
		return ErrNotFound
	}
	c.docs[id] = clone(data)
	return nil
}

func (m *Memory) Delete(_ context.Context, collection string, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c := m.coll(collection)
	if _, ok := c.docs[id]; !ok {
		return ErrNotFound
	}
	delete(c.docs, id)
	return nil
}

func (m *Memory) Replace(_ context.Context, collection string, docs []Document) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c := m.coll(collection)
	c.docs = make(map[int64][]byte, len(docs))
	for _, d := range docs {
		if d.ID > c.last {
			c.last = d.ID
		}
	}
	for _, d := range docs {
		id := d.ID
		if id <= 0 {
			c.last++
			id = c.last
		}
		c.docs[id] = clone(d.Data)
	}
	return nil
}

func (m *Memory) Close() error { return nil }

func clone(b []byte) []byte {
	return append([]byte(nil), b...)
}
