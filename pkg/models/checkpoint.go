package models

import "time"

// CheckpointSchema versions the EngineCheckpoint wire shape; a stored
// checkpoint whose Schema does not match the running engine's is ignored.
const CheckpointSchema = 1

// EngineCheckpoint is the full resumable state of a scheduler run. Two
// checkpoints are compatible if their Schema and plan-node id sequence
// match; an incompatible checkpoint is ignored rather than rejected.
type EngineCheckpoint struct {
	Schema            int                    `json:"schema"`
	CreatedAt         time.Time              `json:"created_at"`
	Plan              ExecutionPlan          `json:"plan"`
	RuntimeSnapshot   map[string]interface{} `json:"runtime_snapshot"`
	CompletedNodeIDs  []string               `json:"completed_node_ids"`
	PollStateByNodeID map[string]PollState   `json:"poll_state_by_node_id,omitempty"`
	PausedByNodeID    map[string]PauseState  `json:"paused_by_node_id,omitempty"`
	Events            []Event                `json:"events,omitempty"`
	Extensions        map[string]interface{} `json:"extensions,omitempty"`
}

// PollState records progress of a node's `until` retry loop.
type PollState struct {
	Attempts   int       `json:"attempts"`
	LastPollAt time.Time `json:"last_poll_at"`
	LastError  string    `json:"last_error,omitempty"`
}

// PauseState records why a node is paused awaiting user confirmation or
// solver resolution, keyed by node id in EngineCheckpoint so a resumed run
// can reconstruct the engine_paused event's paused list without replaying
// the full event log.
type PauseState struct {
	Reason  string                 `json:"reason"`
	Details map[string]interface{} `json:"details,omitempty"`
}

// CompatibleWith reports whether other can be resumed in place of c: equal
// schema and an identical sequence of plan-node ids.
func (c *EngineCheckpoint) CompatibleWith(other *EngineCheckpoint) bool {
	if c.Schema != other.Schema {
		return false
	}
	if len(c.Plan.Nodes) != len(other.Plan.Nodes) {
		return false
	}
	for i := range c.Plan.Nodes {
		if c.Plan.Nodes[i].ID != other.Plan.Nodes[i].ID {
			return false
		}
	}
	return true
}
