package cache

import (
	"context"
	"sync"

	"github.com/video-analitics/queuesorter/pkg/models"
)

type Memory struct {
	mu      sync.RWMutex
	entries map[string]models.Fields
}

func NewMemory() *Memory {
	return &Memory{entries: make(map[string]models.Fields)}
}

func (m *Memory) Get(_ context.Context, id string) (models.Fields, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	e, ok := m.entries[id]
	if !ok {
		return nil, false, nil
	}
	out := make(models.Fields, len(e))
	for k, v := range e {
		out[k] = v
	}
	return out, true, nil
}

func (m *Memory) Merge(_ context.Context, id string, fields models.Fields) error {
	fields = persistable(fields)
	if len(fields) == 0 {
		return nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.entries[id]
	if !ok {
		e = make(models.Fields, len(fields))
		m.entries[id] = e
	}
	for k, v := range fields {
		e[k] = v
	}
	return nil
}

func (m *Memory) Invalidate(_ context.Context, id string) error {
	m.mu.Lock()
	delete(m.entries, id)
	m.mu.Unlock()
	return nil
}

func (m *Memory) Clear(_ context.Context) error {
	m.mu.Lock()
	m.entries = make(map[string]models.Fields)
	m.mu.Unlock()
	return nil
}

func (m *Memory) IDs(_ context.Context) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	ids := make([]string, 0, len(m.entries))
	for id := range m.entries {
		ids = append(ids, id)
	}
	return ids, nil
}
