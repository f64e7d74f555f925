// Package evm compiles a PlanNode's EVM ExecutionSpec plus a runtime
// snapshot into a concrete, chain-wire CompiledRequest: the only place in
// the module that produces calldata, selectors, or JSON-RPC parameters.
// Grounded on go-ethereum's accounts/abi package (ABI parsing, argument
// packing/unpacking) and crypto.Keccak256 for hashing.
package evm

import (
	"math/big"

	ethabi "github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
)

// CompiledRequest is the wire-ready artifact produced by Compile. Exactly
// the fields relevant to its Kind are populated.
type CompiledRequest struct {
	Kind ExecutionKind

	ChainID *big.Int

	// evm_read / evm_call
	To           common.Address
	Data         []byte
	FunctionName string
	ABI          *ethabi.ABI

	// evm_call only
	Value *big.Int

	// evm_rpc only
	Method string
	Params []interface{}
}

// ExecutionKind mirrors models.ExecutionSpecKind for the subset this
// package compiles, kept distinct so this package never needs to import
// pkg/models' non-EVM variants.
type ExecutionKind string

const (
	KindEVMRead ExecutionKind = "evm_read"
	KindEVMCall ExecutionKind = "evm_call"
	KindEVMRPC  ExecutionKind = "evm_rpc"
)
