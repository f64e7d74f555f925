package executor

import (
	"context"

	"github.com/smilemakc/chainflow/pkg/compile/solana"
)

// SolanaClient is the minimal chain-client abstraction Solana executors
// dispatch a compiled request through. As with EVMClient, this package
// ships only the contract and test doubles; a real RPC-backed
// implementation is out of scope per spec.md.
type SolanaClient interface {
	// GetAccountInfo fetches the raw account data at pubkey.
	GetAccountInfo(ctx context.Context, pubkey [32]byte) ([]byte, error)

	// SendInstruction submits req as a transaction and returns its signature.
	SendInstruction(ctx context.Context, req *solana.CompiledRequest) (signature string, err error)

	// ConfirmSignature blocks until signature reaches a final commitment
	// level or ctx is done.
	ConfirmSignature(ctx context.Context, signature string) (*SolanaConfirmation, error)
}

// SolanaConfirmation is the subset of a confirmed transaction's status a
// node's outputs and the scheduler's tx_confirmed event need.
type SolanaConfirmation struct {
	Slot uint64
	Err  string
}
