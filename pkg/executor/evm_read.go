package executor

import (
	"context"
	"fmt"

	"github.com/smilemakc/chainflow/pkg/compile/evm"
	"github.com/smilemakc/chainflow/pkg/models"
	"github.com/smilemakc/chainflow/pkg/runtime"
)

// EVMReadExecutor runs evm_read nodes: compile the call, perform a
// read-only eth_call through Client, decode the return data, and patch
// it at the node's declared Write paths.
type EVMReadExecutor struct {
	Compiler *evm.Compiler
	Client   EVMClient
}

// NewEVMReadExecutor builds an EVMReadExecutor.
func NewEVMReadExecutor(compiler *evm.Compiler, client EVMClient) *EVMReadExecutor {
	return &EVMReadExecutor{Compiler: compiler, Client: client}
}

// Supports matches evm_read nodes.
func (e *EVMReadExecutor) Supports(node *models.PlanNode) bool {
	return supportsKind(models.ExecKindEVMRead)(node)
}

// Execute compiles and performs the read.
func (e *EVMReadExecutor) Execute(ctx context.Context, node *models.PlanNode, view map[string]interface{}, in Input) (*Result, error) {
	req, err := e.Compiler.Compile(ctx, node, runtime.FromMap(view))
	if err != nil {
		return nil, wrapErr("evm_read", err)
	}

	data, err := e.Client.Call(ctx, req)
	if err != nil {
		return nil, wrapErr("evm_read", err)
	}

	outputs, err := decodeEVMOutputs(req, data)
	if err != nil {
		return nil, wrapErr("evm_read", err)
	}

	return &Result{
		Outputs: outputs,
		Patches: patchesForWrites(node.Writes, outputs),
	}, nil
}

func decodeEVMOutputs(req *evm.CompiledRequest, data []byte) (map[string]interface{}, error) {
	if req.ABI == nil {
		return map[string]interface{}{"raw": fmt.Sprintf("0x%x", data)}, nil
	}
	method, ok := req.ABI.Methods[req.FunctionName]
	if !ok {
		return map[string]interface{}{"raw": fmt.Sprintf("0x%x", data)}, nil
	}
	decoded, err := evm.DecodeOutputs(&method, data)
	if err != nil {
		return nil, err
	}
	if m, ok := decoded.(map[string]interface{}); ok {
		return m, nil
	}
	return map[string]interface{}{"result": decoded}, nil
}
