package models

import "time"

// Event is an immutable entry in a run's event log, used for observability,
// checkpoint replay, and trace sink fan-out.
type Event struct {
	ID        string                 `json:"id"`
	RunID     string                 `json:"run_id"`
	EventType string                 `json:"event_type"`
	Sequence  int64                  `json:"sequence"`
	Payload   map[string]interface{} `json:"payload,omitempty"`
	CreatedAt time.Time              `json:"created_at"`
}

// Event type constants (dot notation for hierarchical categorization).
//
// These map onto the scheduler's public event-stream union: plan_ready,
// node_ready, node_blocked, solver_applied, query_result, tx_sent,
// tx_confirmed, need_user_confirm, node_waiting, node_paused, skipped,
// engine_paused, error, checkpoint_saved. Each constant below carries a
// node id (and other fields) in Payload rather than a dedicated struct
// field, since Event is shared storage/replay shape, not the in-memory
// union itself.
const (
	EventTypeRunStarted   = "run.started"
	EventTypeRunCompleted = "run.completed"
	EventTypeRunFailed    = "run.failed"
	EventTypeRunCancelled = "run.cancelled"
	EventTypeRunPaused    = "run.paused"
	EventTypeRunResumed   = "run.resumed"

	// EventTypePlanReady fires once, before the scheduler begins
	// dispatching any node, once the plan has been validated and a
	// runtime context attached.
	EventTypePlanReady = "plan.ready"

	EventTypeNodeReady     = "node.ready"
	EventTypeNodeBlocked   = "node.blocked"
	EventTypeNodeStarted   = "node.started"
	EventTypeNodePolling   = "node.polling"
	EventTypeNodeCompleted = "node.completed"
	EventTypeNodeFailed    = "node.failed"
	EventTypeNodeSkipped   = "node.skipped"
	EventTypeNodeRetrying  = "node.retrying"
	EventTypeNodeWaiting   = "node.waiting"
	EventTypeNodePaused    = "node.paused"

	// EventTypeSolverApplied fires when the solver patches runtime state
	// for a blocked node (calculated fields, detected values).
	EventTypeSolverApplied = "solver.applied"

	// EventTypeQueryResult fires once per completed read node with its
	// resolved outputs.
	EventTypeQueryResult = "query.result"

	// EventTypeTxSent/EventTypeTxConfirmed bracket a write node's
	// lifecycle on both EVM (tx_hash/receipt) and Solana
	// (signature/confirmation) chains.
	EventTypeTxSent      = "tx.sent"
	EventTypeTxConfirmed = "tx.confirmed"

	EventTypeGateConfirmRequired = "gate.confirm_required"
	EventTypeGateApproved        = "gate.approved"
	EventTypeGateBlocked         = "gate.blocked"

	// EventTypeNeedUserConfirm fires whenever the solver or policy gate
	// cannot proceed without an explicit human decision.
	EventTypeNeedUserConfirm = "node.need_user_confirm"

	// EventTypeEnginePaused fires when the scheduler has no runnable
	// node and nothing in flight but at least one node is paused; its
	// payload carries the full paused list.
	EventTypeEnginePaused = "engine.paused"

	// EventTypeError is the global/fatal error event; node is optional
	// (absent for deadlock and other plan-level failures).
	EventTypeError = "error"

	EventTypeCheckpointSaved = "checkpoint.saved"
)

// IsRunEvent reports whether the event is a run-level event.
func (e *Event) IsRunEvent() bool {
	switch e.EventType {
	case EventTypeRunStarted, EventTypeRunCompleted, EventTypeRunFailed,
		EventTypeRunCancelled, EventTypeRunPaused, EventTypeRunResumed:
		return true
	}
	return false
}

// IsNodeEvent reports whether the event is a node-level event.
func (e *Event) IsNodeEvent() bool {
	switch e.EventType {
	case EventTypeNodeReady, EventTypeNodeBlocked, EventTypeNodeStarted, EventTypeNodePolling,
		EventTypeNodeCompleted, EventTypeNodeFailed, EventTypeNodeSkipped, EventTypeNodeRetrying,
		EventTypeNodeWaiting, EventTypeNodePaused, EventTypeNeedUserConfirm,
		EventTypeSolverApplied, EventTypeQueryResult, EventTypeTxSent, EventTypeTxConfirmed:
		return true
	}
	return false
}

// Validate validates the event structure.
func (e *Event) Validate() error {
	if e.RunID == "" {
		return &ValidationError{Field: "run_id", Message: "run ID is required"}
	}
	if e.EventType == "" {
		return &ValidationError{Field: "event_type", Message: "event type is required"}
	}
	return nil
}

// NodeID extracts the node id from the event payload, if present.
func (e *Event) NodeID() string {
	if e.Payload == nil {
		return ""
	}
	if id, ok := e.Payload["node_id"].(string); ok {
		return id
	}
	return ""
}

// ErrorMessage extracts the error message from the event payload, if present.
func (e *Event) ErrorMessage() string {
	if e.Payload == nil {
		return ""
	}
	if msg, ok := e.Payload["error"].(string); ok {
		return msg
	}
	return ""
}
