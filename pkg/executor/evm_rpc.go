package executor

import (
	"context"
	"encoding/json"

	"github.com/smilemakc/chainflow/pkg/compile/evm"
	"github.com/smilemakc/chainflow/pkg/models"
	"github.com/smilemakc/chainflow/pkg/runtime"
)

// EVMRPCExecutor runs evm_rpc nodes: an arbitrary read-only JSON-RPC
// call (e.g. eth_getBlockByNumber) with no ABI involved.
type EVMRPCExecutor struct {
	Compiler *evm.Compiler
	Client   EVMClient
}

// NewEVMRPCExecutor builds an EVMRPCExecutor.
func NewEVMRPCExecutor(compiler *evm.Compiler, client EVMClient) *EVMRPCExecutor {
	return &EVMRPCExecutor{Compiler: compiler, Client: client}
}

// Supports matches evm_rpc nodes.
func (e *EVMRPCExecutor) Supports(node *models.PlanNode) bool {
	return supportsKind(models.ExecKindEVMRPC)(node)
}

// Execute compiles the RPC method/params and dispatches them through Client.
func (e *EVMRPCExecutor) Execute(ctx context.Context, node *models.PlanNode, view map[string]interface{}, in Input) (*Result, error) {
	req, err := e.Compiler.Compile(ctx, node, runtime.FromMap(view))
	if err != nil {
		return nil, wrapErr("evm_rpc", err)
	}

	raw, err := e.Client.RawCall(ctx, req.Method, req.Params)
	if err != nil {
		return nil, wrapErr("evm_rpc", err)
	}

	var result interface{}
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, wrapErr("evm_rpc", err)
	}

	outputs := map[string]interface{}{"result": result}
	return &Result{
		Outputs: outputs,
		Patches: patchesForWrites(node.Writes, outputs),
	}, nil
}
