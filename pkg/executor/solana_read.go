package executor

import (
	"context"
	"encoding/base64"

	"github.com/smilemakc/chainflow/pkg/compile/solana"
	"github.com/smilemakc/chainflow/pkg/models"
	"github.com/smilemakc/chainflow/pkg/runtime"
)

// SolanaReadExecutor runs solana_read nodes: fetch an account's raw
// data through Client and expose it base64-encoded, the encoding
// Solana RPC itself uses for account data.
type SolanaReadExecutor struct {
	Compiler *solana.Compiler
	Client   SolanaClient
}

// NewSolanaReadExecutor builds a SolanaReadExecutor.
func NewSolanaReadExecutor(compiler *solana.Compiler, client SolanaClient) *SolanaReadExecutor {
	return &SolanaReadExecutor{Compiler: compiler, Client: client}
}

// Supports matches solana_read nodes.
func (e *SolanaReadExecutor) Supports(node *models.PlanNode) bool {
	return supportsKind(models.ExecKindSolanaRead)(node)
}

// Execute compiles and fetches the account.
func (e *SolanaReadExecutor) Execute(ctx context.Context, node *models.PlanNode, view map[string]interface{}, in Input) (*Result, error) {
	req, err := e.Compiler.Compile(ctx, node, runtime.FromMap(view))
	if err != nil {
		return nil, wrapErr("solana_read", err)
	}

	data, err := e.Client.GetAccountInfo(ctx, req.Account)
	if err != nil {
		return nil, wrapErr("solana_read", err)
	}

	outputs := map[string]interface{}{"data": base64.StdEncoding.EncodeToString(data)}
	return &Result{
		Outputs: outputs,
		Patches: patchesForWrites(node.Writes, outputs),
	}, nil
}
