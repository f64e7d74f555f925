// Package policygate extracts a normalized GateInput from a compiled
// write, enforces hard constraints and allowlists, and renders a
// deterministic ConfirmationSummary. Grounded on the teacher's
// priority-ordered field-sourcing pattern (NodeExecutor's parent-output
// merge: direct parent beats execution vars beats workflow vars) and
// pkg/engine/condition_cache.go's expr-lang evaluator, repointed at risk
// rules over a GateInput instead of node output conditions.
package policygate

import (
	"fmt"

	"github.com/mr-tron/base58"

	"github.com/smilemakc/chainflow/pkg/compile/evm"
	"github.com/smilemakc/chainflow/pkg/compile/solana"
	"github.com/smilemakc/chainflow/pkg/models"
)

// PreviewEVM renders a compiled EVM request as a WritePreview.
func PreviewEVM(node *models.PlanNode, req *evm.CompiledRequest) models.WritePreview {
	preview := models.WritePreview{
		Kind:         models.WritePreviewEVMTx,
		Chain:        node.Chain,
		ChainID:      req.ChainID.String(),
		ExecType:     string(node.Execution.Kind),
		To:           req.To.Hex(),
		Data:         fmt.Sprintf("0x%x", req.Data),
		FunctionName: req.FunctionName,
	}
	if req.ABI != nil {
		if method, ok := req.ABI.Methods[req.FunctionName]; ok {
			if args, err := evm.DecodeCallArgs(&method, req.Data); err == nil {
				preview.Args = args
			}
		}
	}
	return preview
}

// PreviewSolana renders a compiled Solana instruction as a WritePreview.
func PreviewSolana(node *models.PlanNode, req *solana.CompiledRequest, instruction string) models.WritePreview {
	accounts := make([]string, len(req.Accounts))
	for i, a := range req.Accounts {
		accounts[i] = base58.Encode(a.Pubkey[:])
	}
	return models.WritePreview{
		Kind:        models.WritePreviewSolanaInstruction,
		Chain:       node.Chain,
		ProgramID:   base58.Encode(req.Program[:]),
		Instruction: instruction,
		Accounts:    accounts,
		DataFields:  map[string]interface{}{"data": fmt.Sprintf("0x%x", req.Data)},
	}
}

// PreviewError renders a compile failure as an `execution`-kind preview,
// per spec.md's compile-preview error shape.
func PreviewError(chain, execType string, compileErr error) models.WritePreview {
	return models.WritePreview{
		Kind:         models.WritePreviewExecutionError,
		Chain:        chain,
		ExecType:     execType,
		CompileError: compileErr.Error(),
	}
}
