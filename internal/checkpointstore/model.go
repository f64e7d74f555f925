package checkpointstore

import (
	"time"

	"github.com/uptrace/bun"
)

// checkpointRow is the Bun-mapped row for a persisted EngineCheckpoint.
// The checkpoint body is stored as a single tagged-JSON blob (via
// pkg/codec) rather than normalized columns: a checkpoint is always
// read and written whole, never queried by its internal fields, so
// normalization would only add migration churn for no query benefit.
type checkpointRow struct {
	bun.BaseModel `bun:"table:engine_checkpoints,alias:cp"`

	RunID     string    `bun:"run_id,pk"`
	Schema    int       `bun:"schema,notnull"`
	Body      []byte    `bun:"body,notnull"`
	CreatedAt time.Time `bun:"created_at,notnull"`
	UpdatedAt time.Time `bun:"updated_at,notnull"`
}
