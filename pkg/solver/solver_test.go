package solver

import (
	"context"
	"testing"

	"github.com/smilemakc/chainflow/pkg/cel"
	"github.com/smilemakc/chainflow/pkg/models"
	"github.com/smilemakc/chainflow/pkg/runtime"
	"github.com/smilemakc/chainflow/pkg/valueref"
)

func newEvalTree() (*valueref.Evaluator, *runtime.Tree) {
	return valueref.New(cel.Evaluator{}, nil), runtime.New()
}

func TestInnerResolver_ReadyWhenNoRefs(t *testing.T) {
	eval, tree := newEvalTree()
	inner := NewInnerResolver(eval)

	node := &models.PlanNode{
		ID: "n1",
		Execution: models.ExecutionSpec{
			Kind: models.ExecKindEVMRPC,
			EVMRPC: &models.EVMRPCSpec{
				Method: models.Lit("eth_gasPrice"),
			},
		},
	}

	r := inner.Resolve(context.Background(), node, tree, nil)
	if !r.Ready() {
		t.Fatalf("expected ready, got %+v", r)
	}
	if r.ResolvedParams["method"] != "eth_gasPrice" {
		t.Fatalf("unexpected resolved params: %v", r.ResolvedParams)
	}
}

func TestInnerResolver_BlockedOnMissingRef(t *testing.T) {
	eval, tree := newEvalTree()
	inner := NewInnerResolver(eval)

	node := &models.PlanNode{
		ID: "n1",
		Execution: models.ExecutionSpec{
			Kind: models.ExecKindEVMRPC,
			EVMRPC: &models.EVMRPCSpec{
				Method: models.Ref("inputs.method"),
			},
		},
	}

	r := inner.Resolve(context.Background(), node, tree, nil)
	if r.State != models.ReadinessBlocked {
		t.Fatalf("expected blocked, got %+v", r)
	}
	if len(r.MissingRefs) != 1 || r.MissingRefs[0] != "inputs.method" {
		t.Fatalf("unexpected missing refs: %v", r.MissingRefs)
	}
}

func TestInnerResolver_BlockedOnUnfinishedDep(t *testing.T) {
	eval, tree := newEvalTree()
	inner := NewInnerResolver(eval)
	node := &models.PlanNode{ID: "n2", Deps: []string{"n1"}}

	r := inner.Resolve(context.Background(), node, tree, map[string]bool{})
	if r.State != models.ReadinessBlocked {
		t.Fatalf("expected blocked on dep, got %+v", r)
	}
}

func TestInnerResolver_SkippedOnFalseCondition(t *testing.T) {
	eval, tree := newEvalTree()
	inner := NewInnerResolver(eval)
	cond := models.Lit(false)
	node := &models.PlanNode{ID: "n1", Condition: &cond}

	r := inner.Resolve(context.Background(), node, tree, nil)
	if r.State != models.ReadinessSkipped {
		t.Fatalf("expected skipped, got %+v", r)
	}
}

func TestSolver_CalculatedFieldsComputedInOrder(t *testing.T) {
	eval, tree := newEvalTree()
	tree.Apply([]models.Patch{models.SetPatch("inputs.base", "2")}, nil)

	inner := NewInnerResolver(eval)
	s := New(inner)

	node := &models.PlanNode{
		ID: "n1",
		Execution: models.ExecutionSpec{
			Kind: models.ExecKindEVMRPC,
			EVMRPC: &models.EVMRPCSpec{
				Method: models.Ref("calculated.c"),
			},
		},
		CalculatedFields: map[string]models.CalculatedFieldDef{
			"a": {Expr: "inputs.base"},
			"b": {Expr: "calculated.a + 1", Inputs: []string{"calculated.a"}},
			"c": {Expr: "calculated.b + 1", Inputs: []string{"calculated.b"}},
		},
	}

	r, patches, outcome := s.Resolve(context.Background(), node, tree, nil)
	if outcome != nil {
		t.Fatalf("unexpected outcome: %+v", outcome)
	}
	if !r.Ready() {
		t.Fatalf("expected ready after calculated fields solved, got %+v", r)
	}
	if len(patches) != 2 {
		t.Fatalf("expected 2 patches, got %d", len(patches))
	}
	v, _ := tree.Get("calculated.c")
	if v != "4" {
		t.Fatalf("expected calculated.c == 4, got %v", v)
	}
}

func TestSolver_CalculatedFieldCycleReportsCannotSolve(t *testing.T) {
	eval, tree := newEvalTree()
	inner := NewInnerResolver(eval)
	s := New(inner)

	node := &models.PlanNode{
		ID: "n1",
		Execution: models.ExecutionSpec{
			Kind:   models.ExecKindEVMRPC,
			EVMRPC: &models.EVMRPCSpec{Method: models.Ref("calculated.a")},
		},
		CalculatedFields: map[string]models.CalculatedFieldDef{
			"a": {Expr: "calculated.b + 1", Inputs: []string{"calculated.b"}},
			"b": {Expr: "calculated.a + 1", Inputs: []string{"calculated.a"}},
		},
	}

	// A genuine dependency cycle must surface as cannot_solve rather than
	// silently falling back to declaration order and evaluating garbage.
	_, _, outcome := s.Resolve(context.Background(), node, tree, nil)
	if outcome == nil || outcome.Kind != models.SolveOutcomeCannotSolve {
		t.Fatalf("expected cannot_solve outcome, got %+v", outcome)
	}
}

func TestSolver_RequiredQueriesMissing(t *testing.T) {
	eval, tree := newEvalTree()
	inner := NewInnerResolver(eval)
	s := New(inner)

	node := &models.PlanNode{ID: "n1", RequiresQueries: []string{"balance"}}

	_, _, outcome := s.Resolve(context.Background(), node, tree, nil)
	if outcome == nil || outcome.Kind != models.SolveOutcomeNeedUserConfirm || outcome.Reason != "missing required queries" {
		t.Fatalf("unexpected outcome: %+v", outcome)
	}
}
