package tracesink

import (
	"context"

	"github.com/smilemakc/chainflow/internal/logger"
	"github.com/smilemakc/chainflow/pkg/models"
)

// LogSink writes every record through a Logger, matching the teacher
// always wiring at least one log-backed observer by default.
type LogSink struct {
	logger *logger.Logger
}

// NewLogSink builds a LogSink. A nil logger falls back to the package
// default.
func NewLogSink(l *logger.Logger) *LogSink {
	if l == nil {
		l = logger.Default()
	}
	return &LogSink{logger: l}
}

func (s *LogSink) Name() string { return "log" }

func (s *LogSink) Write(ctx context.Context, record models.TraceRecord) error {
	args := []interface{}{
		"kind", string(record.Kind),
		"id", record.ID,
		"run_id", record.RunID,
		"seq", record.Seq,
	}
	if record.NodeID != nil {
		args = append(args, "node_id", *record.NodeID)
	}
	if record.ParentID != nil {
		args = append(args, "parent_id", *record.ParentID)
	}
	if record.Data != nil {
		args = append(args, "data", record.Data)
	}
	s.logger.Info("trace", args...)
	return nil
}
