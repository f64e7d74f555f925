// Package checkpointstore persists and retrieves scheduler EngineCheckpoints
// so a run can be resumed after a process restart or an explicit pause.
package checkpointstore

import (
	"context"

	"github.com/smilemakc/chainflow/pkg/models"
)

// Store is the persistence boundary the scheduler depends on. It is kept
// narrow on purpose: the scheduler never queries checkpoints by anything
// other than run id, since every other dimension (status, time range) is
// an operational concern of whatever service embeds the engine.
type Store interface {
	// Save writes (or overwrites) the checkpoint for a run.
	Save(ctx context.Context, runID string, cp *models.EngineCheckpoint) error
	// Load returns the most recently saved checkpoint for a run, or
	// (nil, nil) if none exists.
	Load(ctx context.Context, runID string) (*models.EngineCheckpoint, error)
	// Delete removes a run's checkpoint, e.g. after successful completion.
	Delete(ctx context.Context, runID string) error
}
