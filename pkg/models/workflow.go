package models

import (
	"encoding/json"
	"fmt"
	"time"
)

// WorkflowDefinition is the user-authored DAG of protocol action/query
// references that the compiler expands into an ExecutionPlan. It is the
// input to compilation, not the runtime-executed artifact.
type WorkflowDefinition struct {
	ID          string                 `json:"id"`
	Meta        WorkflowMeta           `json:"meta"`
	Nodes       []*WorkflowNode        `json:"nodes"`
	Edges       []*WorkflowEdge        `json:"edges"`
	Inputs      map[string]interface{} `json:"inputs,omitempty"`
	CreatedAt   time.Time              `json:"created_at"`
	UpdatedAt   time.Time              `json:"updated_at"`
}

// WorkflowNode references a protocol action or query by id, with per-node
// param overrides resolved at compile/readiness time.
type WorkflowNode struct {
	ID        string                 `json:"id"`
	Name      string                 `json:"name"`
	Protocol  string                 `json:"protocol"`
	Chain     string                 `json:"chain"`
	Kind      NodeKind               `json:"kind"`
	ActionRef string                 `json:"action_ref,omitempty"`
	QueryRef  string                 `json:"query_ref,omitempty"`
	Params    map[string]interface{} `json:"params,omitempty"`
}

// WorkflowEdge is an explicit dependency between two workflow nodes,
// optionally gated by a CEL condition evaluated against the runtime tree.
type WorkflowEdge struct {
	ID        string `json:"id"`
	From      string `json:"from"`
	To        string `json:"to"`
	Condition string `json:"condition,omitempty"`
}

// Validate validates the workflow node.
func (n *WorkflowNode) Validate() error {
	if n.ID == "" {
		return &ValidationError{Field: "id", Message: "node ID is required"}
	}
	if n.Chain == "" {
		return &ValidationError{Field: "chain", Message: "chain is required"}
	}
	switch n.Kind {
	case NodeKindExecution, NodeKindActionRef, NodeKindQueryRef:
	default:
		return &ValidationError{Field: "kind", Message: "kind must be execution, action_ref, or query_ref"}
	}
	if n.Kind == NodeKindActionRef && n.ActionRef == "" {
		return &ValidationError{Field: "action_ref", Message: "action_ref is required for kind=action_ref"}
	}
	if n.Kind == NodeKindQueryRef && n.QueryRef == "" {
		return &ValidationError{Field: "query_ref", Message: "query_ref is required for kind=query_ref"}
	}
	return nil
}

// Validate validates the workflow edge.
func (e *WorkflowEdge) Validate() error {
	if e.ID == "" {
		return &ValidationError{Field: "id", Message: "edge ID is required"}
	}
	if e.From == "" || e.To == "" {
		return &ValidationError{Field: "edge", Message: "from and to are required"}
	}
	if e.From == e.To {
		return &ValidationError{Field: "edge", Message: "self-loop edges are not allowed"}
	}
	return nil
}

// Validate validates the workflow structure: node/edge shape, duplicate
// ids, and dangling edge references. It does not check for DAG cycles —
// that is the compiler's and solver's job, since cycles are only
// meaningful once calculated-field dependencies are known.
func (w *WorkflowDefinition) Validate() error {
	if w.Meta.Name == "" {
		return &ValidationError{Field: "meta.name", Message: "name is required"}
	}
	if len(w.Nodes) == 0 {
		return &ValidationError{Field: "nodes", Message: "at least one node is required"}
	}

	nodeIDs := make(map[string]bool, len(w.Nodes))
	for _, node := range w.Nodes {
		if err := node.Validate(); err != nil {
			return err
		}
		if nodeIDs[node.ID] {
			return &ValidationError{Field: "nodes", Message: fmt.Sprintf("duplicate node ID: %s", node.ID)}
		}
		nodeIDs[node.ID] = true
	}

	for _, edge := range w.Edges {
		if err := edge.Validate(); err != nil {
			return err
		}
		if !nodeIDs[edge.From] {
			return &ValidationError{Field: "edges", Message: fmt.Sprintf("edge references non-existent source node: %s", edge.From)}
		}
		if !nodeIDs[edge.To] {
			return &ValidationError{Field: "edges", Message: fmt.Sprintf("edge references non-existent target node: %s", edge.To)}
		}
	}

	return nil
}

// NodeByID returns a workflow node by id.
func (w *WorkflowDefinition) NodeByID(id string) (*WorkflowNode, error) {
	for _, node := range w.Nodes {
		if node.ID == id {
			return node, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrNodeNotFound, id)
}

// Clone creates a deep copy of the workflow definition via JSON round-trip,
// matching the teacher's shallow-correctness-by-serialization convention.
func (w *WorkflowDefinition) Clone() (*WorkflowDefinition, error) {
	data, err := json.Marshal(w)
	if err != nil {
		return nil, err
	}
	var clone WorkflowDefinition
	if err := json.Unmarshal(data, &clone); err != nil {
		return nil, err
	}
	return &clone, nil
}
