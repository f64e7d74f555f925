// Package tracesink fans TraceRecords out to zero or more out-of-band
// recorders without blocking the scheduler that produces them.
package tracesink

import (
	"context"

	"github.com/smilemakc/chainflow/pkg/models"
)

// Sink receives trace records. Implementations must not block for
// long: the manager dispatches to each sink on its own goroutine, but
// a slow sink still delays its own backlog draining.
type Sink interface {
	Name() string
	Write(ctx context.Context, record models.TraceRecord) error
}

// Filter narrows which records a sink receives. A nil filter passes
// every record.
type Filter interface {
	ShouldWrite(record models.TraceRecord) bool
}

// KindFilter passes only records of the given kinds.
type KindFilter struct {
	kinds map[models.TraceKind]bool
}

// NewKindFilter builds a Filter over the given TraceKinds. Returns nil
// (pass everything) if no kinds are given.
func NewKindFilter(kinds ...models.TraceKind) Filter {
	if len(kinds) == 0 {
		return nil
	}
	m := make(map[models.TraceKind]bool, len(kinds))
	for _, k := range kinds {
		m[k] = true
	}
	return &KindFilter{kinds: m}
}

func (f *KindFilter) ShouldWrite(record models.TraceRecord) bool {
	if f == nil || len(f.kinds) == 0 {
		return true
	}
	return f.kinds[record.Kind]
}
