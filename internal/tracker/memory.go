package tracker

import (
	"context"
	"sync"

	"ppt2video/internal/entity"
)

// Memory is the in-process tracker used with the memory store backend
// and in tests.
type Memory struct {
	mu    sync.RWMutex
	snaps map[string]entity.Snapshot
}

func NewMemory() *Memory {
	return &Memory{snaps: make(map[string]entity.Snapshot)}
}

func (t *Memory) Set(ctx context.Context, jobID string, snap entity.Snapshot) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.snaps[jobID] = snap
	return nil
}

func (t *Memory) Get(ctx context.Context, jobID string) (*entity.Snapshot, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	snap, ok := t.snaps[jobID]
	if !ok {
		return nil, nil
	}
	return &snap, nil
}

func (t *Memory) Clear(ctx context.Context, jobID string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.snaps, jobID)
	return nil
}
