package checkpointstore

import (
	"context"
	"sync"

	"github.com/smilemakc/chainflow/pkg/models"
)

var _ Store = (*MemoryStore)(nil)

// MemoryStore is an in-process Store used by scheduler tests and by
// callers that don't need cross-process durability.
type MemoryStore struct {
	mu          sync.RWMutex
	checkpoints map[string]*models.EngineCheckpoint
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{checkpoints: make(map[string]*models.EngineCheckpoint)}
}

// Save stores a deep-enough copy of the checkpoint (by value assignment of
// the top-level struct; callers must not mutate nested maps after Save).
func (m *MemoryStore) Save(_ context.Context, runID string, cp *models.EngineCheckpoint) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	clone := *cp
	m.checkpoints[runID] = &clone
	return nil
}

// Load returns the stored checkpoint, or (nil, nil) if none exists.
func (m *MemoryStore) Load(_ context.Context, runID string) (*models.EngineCheckpoint, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	cp, ok := m.checkpoints[runID]
	if !ok {
		return nil, nil
	}
	clone := *cp
	return &clone, nil
}

// Delete removes a run's checkpoint. Deleting a missing run is a no-op.
func (m *MemoryStore) Delete(_ context.Context, runID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.checkpoints, runID)
	return nil
}
