package scheduler

import (
	"context"

	"github.com/google/uuid"

	"github.com/smilemakc/chainflow/pkg/models"
)

// run carries the mutable bookkeeping for a single Scheduler.Run call:
// the sequence counter, accumulated event log, and trace-span ids, kept
// off the Scheduler itself so one Scheduler can drive concurrent runs.
type run struct {
	id  string
	seq int64

	events []models.Event
	rootID string
}

func newRun(runID string) *run {
	return &run{id: runID, rootID: uuid.New().String()}
}

func (r *run) nextSeq() int64 {
	r.seq++
	return r.seq
}

// emit appends a scheduler event to the in-memory log and, if sched has
// a trace sink attached, fans out a best-effort TraceRecord. Trace
// delivery is fire-and-forget: Append never blocks the caller and a
// missing/slow sink must never change what emit returns.
func (s *Scheduler) emit(ctx context.Context, r *run, eventType string, nodeID string, payload map[string]interface{}) models.Event {
	ev := models.Event{
		ID:        uuid.New().String(),
		RunID:     r.id,
		EventType: eventType,
		Sequence:  r.nextSeq(),
		Payload:   payload,
	}
	r.events = append(r.events, ev)

	if s.Trace != nil {
		var parentID *string
		root := r.rootID
		parentID = &root
		var nodeIDPtr *string
		if nodeID != "" {
			id := nodeID
			nodeIDPtr = &id
		}
		s.Trace.Append(ctx, models.TraceRecord{
			Kind:     models.TraceKindEvent,
			ID:       ev.ID,
			ParentID: parentID,
			RunID:    r.id,
			Seq:      ev.Sequence,
			NodeID:   nodeIDPtr,
			Data:     map[string]interface{}{"event_type": eventType, "payload": payload},
		})
	}

	return ev
}

func nodePayload(node *models.PlanNode, extra map[string]interface{}) map[string]interface{} {
	payload := map[string]interface{}{"node_id": node.ID}
	for k, v := range extra {
		payload[k] = v
	}
	return payload
}
