package scheduler

import (
	"context"
	"testing"

	"github.com/smilemakc/chainflow/internal/checkpointstore"
	"github.com/smilemakc/chainflow/pkg/executor"
	"github.com/smilemakc/chainflow/pkg/models"
	"github.com/smilemakc/chainflow/pkg/runtime"
	"github.com/smilemakc/chainflow/pkg/solver"
	"github.com/smilemakc/chainflow/pkg/valueref"
)

func newTestScheduler(store checkpointstore.Store, execs executor.Manager) (*Scheduler, *valueref.Evaluator) {
	eval := valueref.New(nil, nil)
	inner := solver.NewInnerResolver(eval)
	sv := solver.New(inner)
	sched := New(
		WithEvaluator(eval),
		WithSolver(sv),
		WithExecutors(execs),
		WithCheckpointStore(store),
	)
	return sched, eval
}

func TestScheduler_SingleReadNodeCompletes(t *testing.T) {
	node := models.PlanNode{
		ID:    "read-balance",
		Chain: "ethereum",
		Kind:  models.NodeKindExecution,
		Execution: models.ExecutionSpec{
			Kind: models.ExecKindEVMRead,
			EVMRead: &models.EVMReadSpec{
				To:     models.Lit("0xToken"),
				ABI:    models.Lit("erc20"),
				Method: models.Lit("balanceOf"),
			},
		},
	}
	plan := &models.ExecutionPlan{ID: "plan-1", Nodes: []models.PlanNode{node}}

	registry := executor.NewRegistry()
	static := executor.NewStaticExecutor(models.ExecKindEVMRead, &executor.Result{
		Outputs: map[string]interface{}{"balance": "100"},
	}, nil)
	if err := registry.Register("evm_read", static); err != nil {
		t.Fatalf("register executor: %v", err)
	}

	sched, _ := newTestScheduler(checkpointstore.NewMemoryStore(), registry)

	cp, err := sched.Run(context.Background(), "run-1", plan, runtime.New())
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if len(cp.CompletedNodeIDs) != 1 || cp.CompletedNodeIDs[0] != "read-balance" {
		t.Fatalf("expected read-balance completed, got %v", cp.CompletedNodeIDs)
	}
	if len(static.Calls) != 1 {
		t.Fatalf("expected executor called once, got %d", len(static.Calls))
	}

	var sawQueryResult, sawPlanReady bool
	for _, ev := range cp.Events {
		switch ev.EventType {
		case models.EventTypeQueryResult:
			sawQueryResult = true
		case models.EventTypePlanReady:
			sawPlanReady = true
		}
	}
	if !sawPlanReady || !sawQueryResult {
		t.Fatalf("expected plan.ready and query.result events, got %+v", cp.Events)
	}
}

func TestScheduler_BlockedNodeSolvesViaCalculatedField(t *testing.T) {
	node := models.PlanNode{
		ID:    "swap",
		Chain: "ethereum",
		Kind:  models.NodeKindExecution,
		Execution: models.ExecutionSpec{
			Kind: models.ExecKindEVMCall,
			EVMCall: &models.EVMCallSpec{
				To:     models.Lit("0xRouter"),
				ABI:    models.Lit("router"),
				Method: models.Lit("swap"),
				Args:   []models.ValueRef{models.Ref("calculated.min_out")},
			},
		},
		CalculatedFields: map[string]models.CalculatedFieldDef{
			"min_out": {Expr: "100"},
		},
	}
	plan := &models.ExecutionPlan{ID: "plan-2", Nodes: []models.PlanNode{node}}

	registry := executor.NewRegistry()
	static := executor.NewStaticExecutor(models.ExecKindEVMCall, &executor.Result{
		Outputs: map[string]interface{}{"tx_hash": "0xabc", "receipt": map[string]interface{}{"status": 1}},
	}, nil)
	if err := registry.Register("evm_call", static); err != nil {
		t.Fatalf("register executor: %v", err)
	}

	sched, _ := newTestScheduler(checkpointstore.NewMemoryStore(), registry)

	// No compiler/policy wired: the write node's gate check may itself
	// end up hard-blocked or paused once it reaches the policy gate, but
	// the readiness/solver sequence that precedes the gate must still
	// have run and been recorded, which is all this test asserts.
	cp, _ := sched.Run(context.Background(), "run-2", plan, runtime.New())
	if cp == nil {
		t.Fatal("expected a checkpoint even on a gated/fatal outcome")
	}

	var seq []string
	for _, ev := range cp.Events {
		seq = append(seq, ev.EventType)
	}

	hasInOrder := func(seq []string, want ...string) bool {
		i := 0
		for _, s := range seq {
			if i < len(want) && s == want[i] {
				i++
			}
		}
		return i == len(want)
	}

	if !hasInOrder(seq, models.EventTypeNodeBlocked, models.EventTypeSolverApplied) {
		t.Fatalf("expected node.blocked then solver.applied in order, got %v", seq)
	}
}

func TestScheduler_NeedUserConfirmPausesAndCheckpoints(t *testing.T) {
	node := models.PlanNode{
		ID:    "needs-input",
		Chain: "ethereum",
		Kind:  models.NodeKindExecution,
		Execution: models.ExecutionSpec{
			Kind: models.ExecKindEVMRead,
			EVMRead: &models.EVMReadSpec{
				To:     models.Ref("params.token"),
				ABI:    models.Lit("erc20"),
				Method: models.Lit("balanceOf"),
			},
		},
	}
	plan := &models.ExecutionPlan{ID: "plan-3", Nodes: []models.PlanNode{node}}

	registry := executor.NewRegistry()
	store := checkpointstore.NewMemoryStore()
	sched, _ := newTestScheduler(store, registry)

	cp, err := sched.Run(context.Background(), "run-3", plan, runtime.New())
	if err != nil {
		t.Fatalf("run returned unexpected error (pause is not fatal): %v", err)
	}
	if len(cp.PausedByNodeID) != 1 {
		t.Fatalf("expected one paused node, got %v", cp.PausedByNodeID)
	}
	if _, ok := cp.PausedByNodeID["needs-input"]; !ok {
		t.Fatalf("expected needs-input to be paused, got %v", cp.PausedByNodeID)
	}

	saved, err := store.Load(context.Background(), "run-3")
	if err != nil || saved == nil {
		t.Fatalf("expected checkpoint persisted, err=%v saved=%v", err, saved)
	}
}

func TestScheduler_DeadlockOnUnsatisfiableDependency(t *testing.T) {
	node := models.PlanNode{
		ID:    "orphan",
		Chain: "ethereum",
		Kind:  models.NodeKindExecution,
		Deps:  []string{"missing-parent"},
		Execution: models.ExecutionSpec{
			Kind: models.ExecKindEVMRPC,
			EVMRPC: &models.EVMRPCSpec{
				Method: models.Lit("eth_gasPrice"),
			},
		},
	}
	plan := &models.ExecutionPlan{ID: "plan-4", Nodes: []models.PlanNode{node}}

	registry := executor.NewRegistry()
	sched, _ := newTestScheduler(checkpointstore.NewMemoryStore(), registry)

	_, err := sched.Run(context.Background(), "run-4", plan, runtime.New())
	if err == nil {
		t.Fatal("expected deadlock error")
	}
}
