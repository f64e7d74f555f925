package solver

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/smilemakc/chainflow/pkg/cel"
	"github.com/smilemakc/chainflow/pkg/models"
	"github.com/smilemakc/chainflow/pkg/runtime"
)

// Solver wraps an InnerResolver with calculated-field computation: when
// any of a blocked node's missing paths is a `calculated.*` path, it
// computes the node's declared calculated_fields in dependency order and
// retries.
type Solver struct {
	Inner *InnerResolver
}

// New builds a calculated-field Solver over inner.
func New(inner *InnerResolver) *Solver {
	return &Solver{Inner: inner}
}

// Resolve runs the full solve loop for a single node: inner resolution,
// conditional calculated-field computation, and a final readiness
// re-check. It returns the readiness outcome, the runtime patches it
// already applied to tree (the `calculated` and `nodes.<id>.calculated`
// merges), and a
// SolveOutcome describing terminal non-ready states.
func (s *Solver) Resolve(ctx context.Context, node *models.PlanNode, tree *runtime.Tree, completed map[string]bool) (models.Readiness, []models.Patch, *models.SolveOutcome) {
	if missing := requiredQueriesMissing(node, tree); len(missing) > 0 {
		return models.Readiness{State: models.ReadinessBlocked}, nil, &models.SolveOutcome{
			Kind:   models.SolveOutcomeNeedUserConfirm,
			Reason: "missing required queries",
			Details: map[string]interface{}{
				"missing_queries": missing,
			},
		}
	}

	readiness := s.Inner.Resolve(ctx, node, tree, completed)
	if readiness.Ready() || readiness.State == models.ReadinessSkipped {
		return readiness, nil, nil
	}
	if len(readiness.Errors) > 0 {
		return readiness, nil, &models.SolveOutcome{
			Kind:   models.SolveOutcomeNeedUserConfirm,
			Reason: "readiness errors remain",
			Details: map[string]interface{}{"errors": readiness.Errors},
		}
	}
	if !needsCalculated(readiness.MissingRefs) || len(node.CalculatedFields) == 0 {
		return readiness, nil, &models.SolveOutcome{
			Kind:   models.SolveOutcomeNeedUserConfirm,
			Reason: "missing runtime inputs",
			Details: map[string]interface{}{"missing_refs": readiness.MissingRefs},
		}
	}

	order, cycle, err := topoSortCalculatedFields(node.CalculatedFields)
	if err != nil {
		return readiness, nil, &models.SolveOutcome{
			Kind:   models.SolveOutcomeCannotSolve,
			Reason: "calculated field cycle",
			Details: map[string]interface{}{"cycle": cycle},
		}
	}

	shadowedSnapshot := shadow(tree.Snapshot(), readiness.ResolvedParams)
	computed := make(map[string]interface{}, len(order))
	for _, name := range order {
		def := node.CalculatedFields[name]
		env := withCalculated(shadowedSnapshot, computed)
		v, err := cel.Eval(def.Expr, env)
		if err != nil {
			return readiness, nil, &models.SolveOutcome{
				Kind:   models.SolveOutcomeNeedUserConfirm,
				Reason: "calculated_fields evaluation failed",
				Details: map[string]interface{}{"field": name, "error": err.Error()},
			}
		}
		computed[name] = v
	}

	patches := []models.Patch{
		models.MergePatch(models.RuntimeCalculated, computed),
		models.MergePatch(fmt.Sprintf("%s.%s.calculated", models.RuntimeNodes, node.ID), computed),
	}

	for _, p := range patches {
		if err := tree.Apply([]models.Patch{p}, nil); err != nil {
			return readiness, nil, &models.SolveOutcome{
				Kind:   models.SolveOutcomeCannotSolve,
				Reason: fmt.Sprintf("failed to apply calculated field patch: %v", err),
			}
		}
	}

	final := s.Inner.Resolve(ctx, node, tree, completed)
	if final.Ready() || final.State == models.ReadinessSkipped {
		return final, patches, nil
	}
	if len(final.Errors) > 0 {
		return final, patches, &models.SolveOutcome{
			Kind:   models.SolveOutcomeNeedUserConfirm,
			Reason: "readiness errors remain",
			Details: map[string]interface{}{"errors": final.Errors},
		}
	}
	return final, patches, &models.SolveOutcome{
		Kind:   models.SolveOutcomeNeedUserConfirm,
		Reason: "missing runtime inputs",
		Details: map[string]interface{}{"missing_refs": final.MissingRefs},
	}
}

func requiredQueriesMissing(node *models.PlanNode, tree *runtime.Tree) []string {
	if len(node.RequiresQueries) == 0 {
		return nil
	}
	var missing []string
	for _, q := range node.RequiresQueries {
		if _, ok := tree.Get(models.RuntimeQuery + "." + q); !ok {
			missing = append(missing, q)
		}
	}
	return missing
}

func needsCalculated(missingRefs []string) bool {
	for _, m := range missingRefs {
		if strings.HasPrefix(m, models.RuntimeCalculated+".") || m == models.RuntimeCalculated {
			return true
		}
	}
	return false
}

// topoSortCalculatedFields orders fields by their calculated.* inputs,
// breaking ties lexicographically (Go map iteration order is randomized,
// so field names stand in for the "original declaration order" tiebreak
// spec.md names). On a cycle it returns the names that could not be
// ordered, per the recorded decision to surface cycles as cannot_solve
// rather than silently falling back to declaration order.
func topoSortCalculatedFields(fields map[string]models.CalculatedFieldDef) (order []string, cycle []string, err error) {
	names := originalOrder(fields)

	inDegree := make(map[string]int, len(names))
	dependents := make(map[string][]string, len(names))
	for _, name := range names {
		inDegree[name] = 0
	}
	for _, name := range names {
		for _, in := range fields[name].Inputs {
			dep := strings.TrimPrefix(in, models.RuntimeCalculated+".")
			if dep == in {
				continue // not a calculated.* input; doesn't order this field
			}
			if _, ok := fields[dep]; !ok {
				continue
			}
			inDegree[name]++
			dependents[dep] = append(dependents[dep], name)
		}
	}

	ready := make([]string, 0, len(names))
	for _, name := range names {
		if inDegree[name] == 0 {
			ready = append(ready, name)
		}
	}

	for len(ready) > 0 {
		sort.Strings(ready)
		next := ready[0]
		ready = ready[1:]
		order = append(order, next)

		for _, dep := range dependents[next] {
			inDegree[dep]--
			if inDegree[dep] == 0 {
				ready = append(ready, dep)
			}
		}
	}

	if len(order) != len(names) {
		ordered := make(map[string]bool, len(order))
		for _, n := range order {
			ordered[n] = true
		}
		for _, n := range names {
			if !ordered[n] {
				cycle = append(cycle, n)
			}
		}
		return nil, cycle, fmt.Errorf("%w: %v", models.ErrCalcFieldCycle, cycle)
	}
	return order, nil, nil
}

func originalOrder(fields map[string]models.CalculatedFieldDef) []string {
	names := make([]string, 0, len(fields))
	for name := range fields {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func shadow(snapshot map[string]interface{}, resolvedParams map[string]interface{}) map[string]interface{} {
	if len(resolvedParams) == 0 {
		return snapshot
	}
	out := make(map[string]interface{}, len(snapshot)+1)
	for k, v := range snapshot {
		out[k] = v
	}
	params, _ := out[models.RuntimeParams].(map[string]interface{})
	merged := make(map[string]interface{}, len(params)+len(resolvedParams))
	for k, v := range params {
		merged[k] = v
	}
	for k, v := range resolvedParams {
		merged[k] = v
	}
	out[models.RuntimeParams] = merged
	return out
}

func withCalculated(snapshot map[string]interface{}, computed map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(snapshot))
	for k, v := range snapshot {
		out[k] = v
	}
	existing, _ := out[models.RuntimeCalculated].(map[string]interface{})
	merged := make(map[string]interface{}, len(existing)+len(computed))
	for k, v := range existing {
		merged[k] = v
	}
	for k, v := range computed {
		merged[k] = v
	}
	out[models.RuntimeCalculated] = merged
	return out
}
