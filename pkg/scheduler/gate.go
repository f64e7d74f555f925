package scheduler

import (
	"context"

	"github.com/smilemakc/chainflow/pkg/models"
	"github.com/smilemakc/chainflow/pkg/policygate"
	"github.com/smilemakc/chainflow/pkg/runtime"
)

// isWriteNode reports whether node is a state-changing write per
// spec.md's chain-operation taxonomy: evm_call and solana_instruction;
// everything else (evm_read, evm_rpc, solana_read) is a read.
func isWriteNode(node *models.PlanNode) bool {
	switch node.Execution.Kind {
	case models.ExecKindEVMCall, models.ExecKindSolanaInstruction:
		return true
	default:
		return false
	}
}

// gateResult bundles a write node's preview, GateInput, and the policy
// gate's decision, so the caller can build a ConfirmationSummary once
// without recomputing any of it.
type gateResult struct {
	preview  models.WritePreview
	gate     *models.GateInput
	decision policygate.Decision
}

// checkGate compiles node's write into a preview, extracts a GateInput,
// classifies risk, and runs it through the configured Policy. Read
// nodes never reach this: the scheduler only calls checkGate on write
// kinds, per spec.md's "policy gate may short-circuit to
// need_user_confirm" step, which applies only ahead of a broadcast.
func (s *Scheduler) checkGate(ctx context.Context, node *models.PlanNode, tree *runtime.Tree) (*gateResult, error) {
	preview := s.previewWrite(ctx, node, tree)

	gate := policygate.ExtractGateInput(node, tree, preview)
	classifyRisk(gate, tree)

	decision := policygate.Evaluate(gate, s.Policy, s.TokenPolicy)
	return &gateResult{preview: preview, gate: gate, decision: decision}, nil
}

func (s *Scheduler) previewWrite(ctx context.Context, node *models.PlanNode, tree *runtime.Tree) models.WritePreview {
	switch node.Execution.Kind {
	case models.ExecKindEVMCall:
		if s.EVMCompiler == nil {
			return policygate.PreviewError(node.Chain, string(node.Execution.Kind), models.ErrCompile)
		}
		req, err := s.EVMCompiler.Compile(ctx, node, tree)
		if err != nil {
			return policygate.PreviewError(node.Chain, string(node.Execution.Kind), err)
		}
		return policygate.PreviewEVM(node, req)
	case models.ExecKindSolanaInstruction:
		if s.SolanaCompiler == nil {
			return policygate.PreviewError(node.Chain, string(node.Execution.Kind), models.ErrCompile)
		}
		req, err := s.SolanaCompiler.Compile(ctx, node, tree)
		if err != nil {
			return policygate.PreviewError(node.Chain, string(node.Execution.Kind), err)
		}
		instruction := ""
		if node.Source != nil {
			instruction = node.Source.Action
		}
		return policygate.PreviewSolana(node, req, instruction)
	default:
		return policygate.PreviewError(node.Chain, string(node.Execution.Kind), models.ErrCompile)
	}
}
