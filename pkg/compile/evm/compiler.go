package evm

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/smilemakc/chainflow/pkg/models"
	"github.com/smilemakc/chainflow/pkg/runtime"
	"github.com/smilemakc/chainflow/pkg/valueref"
)

// Compiler translates a ready PlanNode's EVM ExecutionSpec into a
// CompiledRequest. It is stateless and safe for concurrent use; Compile
// is a pure function of (spec, runtime) as spec.md requires — no network
// I/O, no mutation.
type Compiler struct {
	Eval *valueref.Evaluator
}

// New builds a Compiler over the given ValueRef evaluator.
func New(eval *valueref.Evaluator) *Compiler {
	return &Compiler{Eval: eval}
}

// Compile resolves node's ExecutionSpec against tree and produces a
// CompiledRequest, or a models.CompileError naming the offending field.
func (c *Compiler) Compile(ctx context.Context, node *models.PlanNode, tree *runtime.Tree) (*CompiledRequest, error) {
	chainID, err := ParseChainID(node.Chain)
	if err != nil {
		return nil, err
	}

	switch node.Execution.Kind {
	case models.ExecKindEVMRead:
		return c.compileCall(ctx, tree, chainID, node.Execution.EVMRead.To, node.Execution.EVMRead.ABI, node.Execution.EVMRead.Method, node.Execution.EVMRead.Args, nil, KindEVMRead)
	case models.ExecKindEVMCall:
		s := node.Execution.EVMCall
		return c.compileCall(ctx, tree, chainID, s.To, s.ABI, s.Method, s.Args, s.Value, KindEVMCall)
	case models.ExecKindEVMRPC:
		return c.compileRPC(ctx, tree, chainID, node.Execution.EVMRPC)
	default:
		return nil, &models.CompileError{Field: "kind", Err: fmt.Errorf("%w: not an EVM execution kind: %s", models.ErrCompile, node.Execution.Kind)}
	}
}

func (c *Compiler) compileCall(
	ctx context.Context,
	tree *runtime.Tree,
	chainID *big.Int,
	toRef, abiRef, methodRef models.ValueRef,
	argRefs []models.ValueRef,
	valueRef *models.ValueRef,
	kind ExecutionKind,
) (*CompiledRequest, error) {
	toVal, err := c.Eval.Eval(ctx, toRef, tree)
	if err != nil {
		return nil, &models.CompileError{Field: "to", Err: err}
	}
	toStr, ok := toVal.(string)
	if !ok || !common.IsHexAddress(toStr) {
		return nil, &models.CompileError{Field: "to", Err: fmt.Errorf("%w: not a valid 0x address: %v", models.ErrCompile, toVal)}
	}

	abiVal, err := c.Eval.Eval(ctx, abiRef, tree)
	if err != nil {
		return nil, &models.CompileError{Field: "abi", Err: err}
	}
	abiDef, err := LoadABI(abiVal)
	if err != nil {
		return nil, err
	}

	methodVal, err := c.Eval.Eval(ctx, methodRef, tree)
	if err != nil {
		return nil, &models.CompileError{Field: "method", Err: err}
	}
	methodName, ok := methodVal.(string)
	if !ok {
		return nil, &models.CompileError{Field: "method", Err: fmt.Errorf("%w: method must be a string", models.ErrCompile)}
	}
	method, ok := abiDef.Methods[methodName]
	if !ok {
		return nil, &models.CompileError{Field: "method", Err: fmt.Errorf("%w: unknown method %q", models.ErrCompile, methodName)}
	}

	rawArgs := make([]interface{}, len(argRefs))
	for i, ref := range argRefs {
		v, err := c.Eval.Eval(ctx, ref, tree)
		if err != nil {
			return nil, &models.CompileError{Field: fmt.Sprintf("args.%d", i), Err: err}
		}
		rawArgs[i] = v
	}
	args, err := coerceArgs(method.Inputs, rawArgs)
	if err != nil {
		return nil, err
	}

	data, err := abiDef.Pack(methodName, args...)
	if err != nil {
		return nil, &models.CompileError{Field: "args", Err: fmt.Errorf("%w: %v", models.ErrCompile, err)}
	}

	req := &CompiledRequest{
		Kind:         kind,
		ChainID:      chainID,
		To:           common.HexToAddress(toStr),
		Data:         data,
		FunctionName: methodName,
		ABI:          abiDef,
	}

	if valueRef != nil {
		v, err := c.Eval.Eval(ctx, *valueRef, tree)
		if err != nil {
			return nil, &models.CompileError{Field: "value", Err: err}
		}
		n, err := asBigInt(v)
		if err != nil {
			return nil, &models.CompileError{Field: "value", Err: err}
		}
		req.Value = n
	}

	return req, nil
}

func (c *Compiler) compileRPC(ctx context.Context, tree *runtime.Tree, chainID *big.Int, spec *models.EVMRPCSpec) (*CompiledRequest, error) {
	methodVal, err := c.Eval.Eval(ctx, spec.Method, tree)
	if err != nil {
		return nil, &models.CompileError{Field: "method", Err: err}
	}
	methodName, ok := methodVal.(string)
	if !ok {
		return nil, &models.CompileError{Field: "method", Err: fmt.Errorf("%w: method must be a string", models.ErrCompile)}
	}

	params := make([]interface{}, len(spec.Params))
	for i, ref := range spec.Params {
		v, err := c.Eval.Eval(ctx, ref, tree)
		if err != nil {
			return nil, &models.CompileError{Field: fmt.Sprintf("params.%d", i), Err: err}
		}
		params[i] = v
	}

	return &CompiledRequest{
		Kind:    KindEVMRPC,
		ChainID: chainID,
		Method:  methodName,
		Params:  params,
	}, nil
}
