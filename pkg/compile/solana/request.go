// Package solana compiles a PlanNode's Solana ExecutionSpec plus a
// runtime snapshot into a concrete instruction or account-read request.
// Grounded on mr-tron/base58 for public-key decoding; the known
// instruction layouts (SPL Token transfer/transfer_checked/approve,
// associated-token-account create_idempotent) are encoded directly since
// no pack repo ships a Solana program SDK.
package solana

// ExecutionKind mirrors the subset of models.ExecutionSpecKind this
// package compiles.
type ExecutionKind string

const (
	KindSolanaRead        ExecutionKind = "solana_read"
	KindSolanaInstruction ExecutionKind = "solana_instruction"
)

// AccountMeta is one account entry in a compiled instruction.
type AccountMeta struct {
	Pubkey   [32]byte
	Signer   bool
	Writable bool
}

// CompiledRequest is the wire-ready artifact produced by Compile.
type CompiledRequest struct {
	Kind ExecutionKind

	// solana_read
	Account [32]byte

	// solana_instruction
	Program  [32]byte
	Accounts []AccountMeta
	Data     []byte
}
