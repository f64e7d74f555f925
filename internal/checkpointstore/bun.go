package checkpointstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/uptrace/bun"

	"github.com/smilemakc/chainflow/pkg/codec"
	"github.com/smilemakc/chainflow/pkg/models"
)

var _ Store = (*BunStore)(nil)

// BunStore implements Store against Postgres via Bun ORM.
type BunStore struct {
	db *bun.DB
}

// NewBunStore creates a new BunStore.
func NewBunStore(db *bun.DB) *BunStore {
	return &BunStore{db: db}
}

// Save writes (or overwrites) the checkpoint for a run inside a
// transaction, matching the teacher's RunInTx convention for
// multi-statement writes.
func (s *BunStore) Save(ctx context.Context, runID string, cp *models.EngineCheckpoint) error {
	body, err := codec.MarshalTagged(cp)
	if err != nil {
		return fmt.Errorf("checkpointstore: marshal checkpoint: %w", err)
	}

	now := time.Now()
	row := &checkpointRow{
		RunID:     runID,
		Schema:    cp.Schema,
		Body:      body,
		CreatedAt: now,
		UpdatedAt: now,
	}

	return s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		_, err := tx.NewInsert().
			Model(row).
			On("CONFLICT (run_id) DO UPDATE").
			Set("schema = EXCLUDED.schema").
			Set("body = EXCLUDED.body").
			Set("updated_at = EXCLUDED.updated_at").
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("checkpointstore: upsert: %w", err)
		}
		return nil
	})
}

// Load returns the most recently saved checkpoint for a run.
func (s *BunStore) Load(ctx context.Context, runID string) (*models.EngineCheckpoint, error) {
	row := &checkpointRow{}
	err := s.db.NewSelect().
		Model(row).
		Where("run_id = ?", runID).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("checkpointstore: load: %w", err)
	}

	var cp models.EngineCheckpoint
	if err := codec.UnmarshalTagged(row.Body, &cp); err != nil {
		return nil, fmt.Errorf("checkpointstore: unmarshal checkpoint: %w", err)
	}
	return &cp, nil
}

// Delete removes a run's checkpoint.
func (s *BunStore) Delete(ctx context.Context, runID string) error {
	_, err := s.db.NewDelete().
		Model((*checkpointRow)(nil)).
		Where("run_id = ?", runID).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("checkpointstore: delete: %w", err)
	}
	return nil
}
