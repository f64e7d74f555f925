// Package solver classifies plan nodes as ready, blocked, or skipped
// against a runtime snapshot, and computes a workflow's calculated fields
// in dependency order. It sits between pkg/valueref (single-ref
// resolution) and pkg/scheduler (the node-execution loop), grounded on
// pkg/engine's condition-gating (shouldExecuteNode) and topological-sort
// helpers, generalized from wave-based DAG scheduling to a readiness
// predicate the scheduler polls per node.
package solver

import (
	"context"
	"fmt"

	"github.com/smilemakc/chainflow/pkg/models"
	"github.com/smilemakc/chainflow/pkg/runtime"
	"github.com/smilemakc/chainflow/pkg/valueref"
)

// InnerResolver evaluates a node's ValueRefs and condition against the
// runtime, without any knowledge of calculated fields.
type InnerResolver struct {
	Eval *valueref.Evaluator
}

// NewInnerResolver builds an InnerResolver over the given ValueRef
// evaluator.
func NewInnerResolver(eval *valueref.Evaluator) *InnerResolver {
	return &InnerResolver{Eval: eval}
}

// Resolve computes readiness for a single node against tree's current
// snapshot. Missing dependency node IDs (not yet completed) are reported
// as blocked without even attempting ValueRef resolution.
func (r *InnerResolver) Resolve(ctx context.Context, node *models.PlanNode, tree *runtime.Tree, completed map[string]bool) models.Readiness {
	for _, dep := range node.Deps {
		if !completed[dep] {
			return models.Readiness{
				State:       models.ReadinessBlocked,
				MissingRefs: []string{"nodes." + dep + ".outputs"},
			}
		}
	}

	snapshot := tree.Snapshot()

	if node.Condition != nil {
		ok, err := r.evalCondition(ctx, *node.Condition, snapshot)
		if err != nil {
			return models.Readiness{
				State:  models.ReadinessBlocked,
				Errors: []string{fmt.Sprintf("condition: %v", err)},
			}
		}
		if !ok {
			return models.Readiness{State: models.ReadinessSkipped}
		}
	}

	named := node.NamedValueRefs()
	var missing []string
	for _, nv := range named {
		missing = append(missing, r.Eval.MissingPaths(nv.Ref, snapshot)...)
	}
	if len(missing) > 0 {
		return models.Readiness{State: models.ReadinessBlocked, MissingRefs: dedupe(missing)}
	}

	resolved := make(map[string]interface{}, len(named))
	var errs []string
	for _, nv := range named {
		v, err := r.Eval.EvalSnapshot(ctx, nv.Ref, snapshot)
		if err != nil {
			errs = append(errs, fmt.Sprintf("%s: %v", nv.Name, err))
			continue
		}
		resolved[nv.Name] = v
	}
	if len(errs) > 0 {
		return models.Readiness{State: models.ReadinessBlocked, Errors: errs}
	}

	return models.Readiness{State: models.ReadinessReady, ResolvedParams: resolved}
}

func (r *InnerResolver) evalCondition(ctx context.Context, ref models.ValueRef, snapshot map[string]interface{}) (bool, error) {
	v, err := r.Eval.EvalSnapshot(ctx, ref, snapshot)
	if err != nil {
		return false, err
	}
	b, ok := v.(bool)
	if !ok {
		return false, fmt.Errorf("condition did not evaluate to a boolean, got %T", v)
	}
	return b, nil
}

func dedupe(in []string) []string {
	seen := make(map[string]bool, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	return out
}
