package executor

import (
	"context"
	"testing"

	"github.com/smilemakc/chainflow/pkg/models"
)

func supportsAll(node *models.PlanNode) bool { return true }

func noopExec(ctx context.Context, node *models.PlanNode, view map[string]interface{}, in Input) (*Result, error) {
	return &Result{}, nil
}

func TestRegistry_RegisterGetHasListUnregister(t *testing.T) {
	r := NewRegistry()
	readExec := NewExecutorFunc(func(n *models.PlanNode) bool { return n.Execution.Kind == models.ExecKindEVMRead }, noopExec)
	callExec := NewExecutorFunc(func(n *models.PlanNode) bool { return n.Execution.Kind == models.ExecKindEVMCall }, noopExec)

	if err := r.Register("evm_read", readExec); err != nil {
		t.Fatal(err)
	}
	if err := r.Register("evm_call", callExec); err != nil {
		t.Fatal(err)
	}

	if !r.Has("evm_read") || !r.Has("evm_call") {
		t.Fatal("expected both registered")
	}
	if got := r.List(); len(got) != 2 || got[0] != "evm_read" || got[1] != "evm_call" {
		t.Fatalf("unexpected list order: %v", got)
	}

	got, err := r.Get(&models.PlanNode{ID: "n1", Execution: models.ExecutionSpec{Kind: models.ExecKindEVMCall}})
	if err != nil {
		t.Fatal(err)
	}
	if got != callExec {
		t.Fatal("expected the evm_call executor to match")
	}

	if _, err := r.Get(&models.PlanNode{ID: "n2", Execution: models.ExecutionSpec{Kind: models.ExecKindSolanaRead}}); err == nil {
		t.Fatal("expected ErrExecutorNotFound for an unsupported kind")
	}

	if err := r.Unregister("evm_read"); err != nil {
		t.Fatal(err)
	}
	if r.Has("evm_read") {
		t.Fatal("expected evm_read gone after unregister")
	}
	if err := r.Unregister("missing"); err == nil {
		t.Fatal("expected error unregistering an unknown name")
	}
}

func TestRegistry_RegisterRejectsEmptyNameOrNilExecutor(t *testing.T) {
	r := NewRegistry()
	if err := r.Register("", NewExecutorFunc(supportsAll, noopExec)); err == nil {
		t.Fatal("expected error for empty name")
	}
	if err := r.Register("x", nil); err == nil {
		t.Fatal("expected error for nil executor")
	}
}

func TestRegistry_FirstSupportingExecutorWins(t *testing.T) {
	r := NewRegistry()
	first := NewExecutorFunc(supportsAll, noopExec)
	second := NewExecutorFunc(supportsAll, noopExec)
	r.Register("first", first)
	r.Register("second", second)

	got, err := r.Get(&models.PlanNode{ID: "n1"})
	if err != nil {
		t.Fatal(err)
	}
	if got != first {
		t.Fatal("expected registration-order scan to return the first match")
	}
}
