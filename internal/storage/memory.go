package storage

import (
	"context"
	"sort"
	"sync"
)

// MemoryStore is an in-memory CheckpointStore for development/testing.
type MemoryStore struct {
	mu          sync.RWMutex
	checkpoints map[string]Checkpoint
}

// NewMemoryStore constructs a MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{checkpoints: make(map[string]Checkpoint)}
}

// Save stores a copy of the checkpoint, replacing any with the same name.
func (m *MemoryStore) Save(_ context.Context, cp Checkpoint) error {
	cp, err := normalize(cp)
	if err != nil {
		return err
	}
	cp.Data = append([]byte(nil), cp.Data...)
	m.mu.Lock()
	defer m.mu.Unlock()
	m.checkpoints[cp.Name] = cp
	return nil
}

// Load fetches a checkpoint by name.
func (m *MemoryStore) Load(_ context.Context, name string) (Checkpoint, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	cp, ok := m.checkpoints[name]
	if !ok {
		return Checkpoint{}, ErrNotFound
	}
	cp.Data = append([]byte(nil), cp.Data...)
	return cp, nil
}

func (m *MemoryStore) List(_ context.Context) ([]Checkpoint, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Checkpoint, 0, len(m.checkpoints))
	for _, cp := range m.checkpoints {
		cp.Data = nil
		out = append(out, cp)
	}
	sortCheckpoints(out)
	return out, nil
}

func sortCheckpoints(cps []Checkpoint) {
	sort.Slice(cps, func(i, j int) bool {
		if !cps[i].CreatedAt.Equal(cps[j].CreatedAt) {
			return cps[i].CreatedAt.Before(cps[j].CreatedAt)
		}
		return cps[i].Name < cps[j].Name
	})
}
