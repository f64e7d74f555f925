package executor

import (
	"context"
	"encoding/json"

	"github.com/smilemakc/chainflow/pkg/compile/evm"
)

// EVMClient is the minimal chain-client abstraction EVM executors
// dispatch a compiled request through, mirroring the teacher's
// HTTPClient-injection idiom (internal/node/builtin.HTTPClient) so tests
// substitute a fake instead of dialing a real node. Concrete
// ethclient/rpc-backed implementations are an external collaborator per
// spec.md's "JSON-RPC transports to chains" non-goal — this module
// ships the contract and test doubles only.
type EVMClient interface {
	// Call performs a read-only eth_call against req and returns the
	// raw ABI-encoded return data.
	Call(ctx context.Context, req *evm.CompiledRequest) ([]byte, error)

	// SendTransaction broadcasts req and returns its transaction hash.
	SendTransaction(ctx context.Context, req *evm.CompiledRequest) (txHash string, err error)

	// WaitForReceipt blocks until txHash is mined or ctx is done.
	WaitForReceipt(ctx context.Context, txHash string) (*EVMReceipt, error)

	// RawCall issues an arbitrary JSON-RPC method call, for evm_rpc nodes.
	RawCall(ctx context.Context, method string, params []interface{}) (json.RawMessage, error)
}

// EVMReceipt is the subset of a transaction receipt the scheduler's
// tx_confirmed event and a node's outputs need.
type EVMReceipt struct {
	TxHash      string
	Status      bool
	BlockNumber uint64
	GasUsed     uint64
}
