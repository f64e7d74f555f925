package executor

import (
	"context"

	"github.com/smilemakc/chainflow/pkg/compile/solana"
	"github.com/smilemakc/chainflow/pkg/models"
	"github.com/smilemakc/chainflow/pkg/runtime"
)

// SolanaInstructionExecutor runs solana_instruction nodes: compile the
// instruction, submit it through Client, and await confirmation.
type SolanaInstructionExecutor struct {
	Compiler *solana.Compiler
	Client   SolanaClient
}

// NewSolanaInstructionExecutor builds a SolanaInstructionExecutor.
func NewSolanaInstructionExecutor(compiler *solana.Compiler, client SolanaClient) *SolanaInstructionExecutor {
	return &SolanaInstructionExecutor{Compiler: compiler, Client: client}
}

// Supports matches solana_instruction nodes.
func (e *SolanaInstructionExecutor) Supports(node *models.PlanNode) bool {
	return supportsKind(models.ExecKindSolanaInstruction)(node)
}

// Execute compiles, submits, and awaits confirmation of the instruction.
func (e *SolanaInstructionExecutor) Execute(ctx context.Context, node *models.PlanNode, view map[string]interface{}, in Input) (*Result, error) {
	req, err := e.Compiler.Compile(ctx, node, runtime.FromMap(view))
	if err != nil {
		return nil, wrapErr("solana_instruction", err)
	}

	signature, err := e.Client.SendInstruction(ctx, req)
	if err != nil {
		return nil, wrapErr("solana_instruction", err)
	}

	outputs := map[string]interface{}{"signature": signature}

	confirmation, err := e.Client.ConfirmSignature(ctx, signature)
	if err != nil {
		return nil, wrapErr("solana_instruction", err)
	}
	if confirmation != nil {
		outputs["slot"] = confirmation.Slot
		if confirmation.Err != "" {
			outputs["error"] = confirmation.Err
		}
	}

	return &Result{
		Outputs: outputs,
		Patches: patchesForWrites(node.Writes, outputs),
	}, nil
}
