// Package executor defines the executor contract and registry for
// running a ready PlanNode against its compiled chain request.
//
// An executor never dials a chain itself — broadcasting, signing, and
// JSON-RPC transport are explicit external collaborators (spec.md's
// "out of scope" list), injected as a minimal client interface the way
// the teacher codebase injects an HTTPClient into its HTTP node so tests
// can substitute a fake. Concrete executors in this package wrap
// pkg/compile/evm and pkg/compile/solana's pure compilers and delegate
// the actual call/send to that injected client.
package executor

import (
	"context"
	"fmt"

	"github.com/smilemakc/chainflow/pkg/models"
)

// Input bundles the readiness/solver products an executor needs beyond
// the node and runtime view: the resolved_params a ready node computed
// during its readiness pass, and an optional detect resolver an
// executor may consult mid-execution (e.g. to pick a destination ATA).
type Input struct {
	ResolvedParams map[string]interface{}
	Detect         DetectResolver
}

// DetectResolver mirrors valueref.DetectResolver's shape without this
// package importing pkg/valueref, keeping the executor contract
// independent of the ValueRef evaluator's concrete type.
type DetectResolver interface {
	Resolve(ctx context.Context, detect *models.DetectRef, snapshot map[string]interface{}) (interface{}, error)
}

// NeedUserConfirm mirrors spec.md §4.9's need_user_confirm result shape.
type NeedUserConfirm struct {
	Reason  string
	Details map[string]interface{}
}

// Result is everything an executor may hand back to the scheduler.
// Exactly one of a normal outcome (Outputs/Patches) or NeedUserConfirm
// applies to a given successful Execute call.
type Result struct {
	Outputs         map[string]interface{}
	Patches         []models.Patch
	NeedUserConfirm *NeedUserConfirm
}

// Executor is the interface every node executor implements, per
// spec.md's Executor interface: `supports(plan_node) -> bool`;
// `execute(plan_node, runtime_view, {resolved_params, detect?}) ->
// {outputs?, patches?, need_user_confirm?, error?}`.
type Executor interface {
	// Supports reports whether this executor can run node, typically by
	// inspecting node.Execution.Kind.
	Supports(node *models.PlanNode) bool

	// Execute runs node against a read-only snapshot of the runtime
	// tree. Implementations must not mutate view or retain it.
	Execute(ctx context.Context, node *models.PlanNode, view map[string]interface{}, in Input) (*Result, error)
}

// Destroyer is an optional, best-effort extension an Executor may
// implement to release held resources (connections, subscriptions) when
// the scheduler shuts down. Per spec.md, destroy() is optional.
type Destroyer interface {
	Destroy() error
}

// ExecutorFunc adapts two plain functions into an Executor, mirroring
// the teacher's ExecutorFunc adapter idiom.
type ExecutorFunc struct {
	SupportsFn func(node *models.PlanNode) bool
	ExecuteFn  func(ctx context.Context, node *models.PlanNode, view map[string]interface{}, in Input) (*Result, error)
}

// Supports calls SupportsFn.
func (f *ExecutorFunc) Supports(node *models.PlanNode) bool { return f.SupportsFn(node) }

// Execute calls ExecuteFn.
func (f *ExecutorFunc) Execute(ctx context.Context, node *models.PlanNode, view map[string]interface{}, in Input) (*Result, error) {
	return f.ExecuteFn(ctx, node, view, in)
}

// NewExecutorFunc builds an Executor from a supports predicate and an
// execute function, for test doubles and small one-off executors.
func NewExecutorFunc(
	supportsFn func(node *models.PlanNode) bool,
	executeFn func(ctx context.Context, node *models.PlanNode, view map[string]interface{}, in Input) (*Result, error),
) Executor {
	return &ExecutorFunc{SupportsFn: supportsFn, ExecuteFn: executeFn}
}

// supportsKind returns a Supports predicate matching a single
// models.ExecutionSpecKind, the common case for the concrete executors
// in this package.
func supportsKind(kind models.ExecutionSpecKind) func(*models.PlanNode) bool {
	return func(node *models.PlanNode) bool {
		return node != nil && node.Execution.Kind == kind
	}
}

func wrapErr(execType string, err error) error {
	return fmt.Errorf("executor(%s): %w", execType, err)
}
