package executor

import (
	"context"

	"github.com/smilemakc/chainflow/pkg/compile/evm"
	"github.com/smilemakc/chainflow/pkg/models"
	"github.com/smilemakc/chainflow/pkg/runtime"
)

// EVMCallExecutor runs evm_call nodes: compile the transaction, send it
// through Client, and wait for its receipt. Outputs carry both the hash
// and the receipt so a node's `until` poll (or a downstream assert) can
// reference either without re-dispatching.
type EVMCallExecutor struct {
	Compiler *evm.Compiler
	Client   EVMClient
}

// NewEVMCallExecutor builds an EVMCallExecutor.
func NewEVMCallExecutor(compiler *evm.Compiler, client EVMClient) *EVMCallExecutor {
	return &EVMCallExecutor{Compiler: compiler, Client: client}
}

// Supports matches evm_call nodes.
func (e *EVMCallExecutor) Supports(node *models.PlanNode) bool {
	return supportsKind(models.ExecKindEVMCall)(node)
}

// Execute compiles, sends, and awaits the transaction.
func (e *EVMCallExecutor) Execute(ctx context.Context, node *models.PlanNode, view map[string]interface{}, in Input) (*Result, error) {
	req, err := e.Compiler.Compile(ctx, node, runtime.FromMap(view))
	if err != nil {
		return nil, wrapErr("evm_call", err)
	}

	txHash, err := e.Client.SendTransaction(ctx, req)
	if err != nil {
		return nil, wrapErr("evm_call", err)
	}

	outputs := map[string]interface{}{"tx_hash": txHash}

	receipt, err := e.Client.WaitForReceipt(ctx, txHash)
	if err != nil {
		return nil, wrapErr("evm_call", err)
	}
	if receipt != nil {
		outputs["status"] = receipt.Status
		outputs["block_number"] = receipt.BlockNumber
		outputs["gas_used"] = receipt.GasUsed
	}

	return &Result{
		Outputs: outputs,
		Patches: patchesForWrites(node.Writes, outputs),
	}, nil
}
