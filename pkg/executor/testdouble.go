package executor

import (
	"context"

	"github.com/smilemakc/chainflow/pkg/models"
)

// StaticExecutor is a test double that always supports a fixed
// execution kind and returns a fixed Result (or error), for exercising
// pkg/scheduler without a real compiler/client pair.
type StaticExecutor struct {
	Kind   models.ExecutionSpecKind
	Result *Result
	Err    error

	// Calls records every node ID Execute was invoked with, in order.
	Calls []string
}

// NewStaticExecutor builds a StaticExecutor bound to kind.
func NewStaticExecutor(kind models.ExecutionSpecKind, result *Result, err error) *StaticExecutor {
	return &StaticExecutor{Kind: kind, Result: result, Err: err}
}

// Supports matches nodes whose Execution.Kind equals s.Kind.
func (s *StaticExecutor) Supports(node *models.PlanNode) bool {
	return node != nil && node.Execution.Kind == s.Kind
}

// Execute records the call and returns the configured Result/Err.
func (s *StaticExecutor) Execute(ctx context.Context, node *models.PlanNode, view map[string]interface{}, in Input) (*Result, error) {
	s.Calls = append(s.Calls, node.ID)
	if s.Err != nil {
		return nil, s.Err
	}
	return s.Result, nil
}
