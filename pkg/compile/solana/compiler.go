package solana

import (
	"context"
	"fmt"

	"github.com/smilemakc/chainflow/pkg/models"
	"github.com/smilemakc/chainflow/pkg/runtime"
	"github.com/smilemakc/chainflow/pkg/valueref"
)

// Compiler translates a ready PlanNode's Solana ExecutionSpec into a
// CompiledRequest. Like its EVM counterpart it is a pure function of
// (spec, runtime): no RPC calls, no signing.
type Compiler struct {
	Eval *valueref.Evaluator
}

// New builds a Compiler over the given ValueRef evaluator.
func New(eval *valueref.Evaluator) *Compiler {
	return &Compiler{Eval: eval}
}

// Compile resolves node's Solana ExecutionSpec against tree.
func (c *Compiler) Compile(ctx context.Context, node *models.PlanNode, tree *runtime.Tree) (*CompiledRequest, error) {
	spec := node.Execution.Solana
	if spec == nil {
		return nil, &models.CompileError{Field: "kind", Err: fmt.Errorf("%w: not a Solana execution kind: %s", models.ErrCompile, node.Execution.Kind)}
	}

	programVal, err := c.Eval.Eval(ctx, spec.Program, tree)
	if err != nil {
		return nil, &models.CompileError{Field: "program", Err: err}
	}
	programStr, ok := programVal.(string)
	if !ok {
		return nil, &models.CompileError{Field: "program", Err: fmt.Errorf("%w: program must be a base58 string", models.ErrCompile)}
	}
	programBytes, err := decodePubkey(programStr)
	if err != nil {
		return nil, &models.CompileError{Field: "program", Err: err}
	}

	switch node.Execution.Kind {
	case models.ExecKindSolanaRead:
		return &CompiledRequest{Kind: KindSolanaRead, Account: programBytes}, nil
	case models.ExecKindSolanaInstruction:
		return c.compileInstruction(ctx, tree, node, spec, programStr, programBytes)
	default:
		return nil, &models.CompileError{Field: "kind", Err: fmt.Errorf("%w: not a Solana execution kind: %s", models.ErrCompile, node.Execution.Kind)}
	}
}

func (c *Compiler) compileInstruction(
	ctx context.Context,
	tree *runtime.Tree,
	node *models.PlanNode,
	spec *models.SolanaSpec,
	programStr string,
	programBytes [32]byte,
) (*CompiledRequest, error) {
	accounts := make([]AccountMeta, len(spec.Accounts))
	for i, ref := range spec.Accounts {
		v, err := c.Eval.Eval(ctx, ref, tree)
		if err != nil {
			return nil, &models.CompileError{Field: fmt.Sprintf("accounts.%d", i), Err: err}
		}
		m, ok := v.(map[string]interface{})
		if !ok {
			return nil, &models.CompileError{Field: fmt.Sprintf("accounts.%d", i), Err: fmt.Errorf("%w: account entry must be an object with pubkey/signer/writable", models.ErrCompile)}
		}
		pubkeyStr, ok := m["pubkey"].(string)
		if !ok {
			return nil, &models.CompileError{Field: fmt.Sprintf("accounts.%d.pubkey", i), Err: fmt.Errorf("%w: missing pubkey", models.ErrCompile)}
		}
		pubkey, err := decodePubkey(pubkeyStr)
		if err != nil {
			return nil, &models.CompileError{Field: fmt.Sprintf("accounts.%d.pubkey", i), Err: err}
		}
		signer, err := asBool(m["signer"])
		if err != nil {
			return nil, &models.CompileError{Field: fmt.Sprintf("accounts.%d.signer", i), Err: err}
		}
		writable, err := asBool(m["writable"])
		if err != nil {
			return nil, &models.CompileError{Field: fmt.Sprintf("accounts.%d.writable", i), Err: err}
		}
		accounts[i] = AccountMeta{Pubkey: pubkey, Signer: signer, Writable: writable}
	}

	var dataFields map[string]interface{}
	if spec.Data != nil {
		v, err := c.Eval.Eval(ctx, *spec.Data, tree)
		if err != nil {
			return nil, &models.CompileError{Field: "data", Err: err}
		}
		m, ok := v.(map[string]interface{})
		if !ok {
			return nil, &models.CompileError{Field: "data", Err: fmt.Errorf("%w: data must be an object of instruction fields", models.ErrCompile)}
		}
		dataFields = m
	}

	instruction := ""
	if node.Source != nil {
		instruction = node.Source.Action
	}

	var dataBytes []byte
	if enc, ok := Lookup(programStr, instruction); ok {
		dataBytes, err := enc(dataFields)
		if err != nil {
			return nil, &models.CompileError{Field: "data", Err: err}
		}
		return &CompiledRequest{
			Kind:     KindSolanaInstruction,
			Program:  programBytes,
			Accounts: accounts,
			Data:     dataBytes,
		}, nil
	}

	discriminator, err := asBytes(dataFields["discriminator"])
	if err != nil {
		return nil, &models.CompileError{Field: "data.discriminator", Err: err}
	}
	raw, err := asBytes(dataFields["data"])
	if err != nil {
		return nil, &models.CompileError{Field: "data.data", Err: err}
	}
	dataBytes = append(append([]byte{}, discriminator...), raw...)

	return &CompiledRequest{
		Kind:     KindSolanaInstruction,
		Program:  programBytes,
		Accounts: accounts,
		Data:     dataBytes,
	}, nil
}
