package evm

import (
	"context"
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/crypto"

	"github.com/smilemakc/chainflow/pkg/cel"
	"github.com/smilemakc/chainflow/pkg/models"
	"github.com/smilemakc/chainflow/pkg/runtime"
	"github.com/smilemakc/chainflow/pkg/valueref"
)

const erc20ABI = `[
	{"type":"function","name":"transfer","stateMutability":"nonpayable",
	 "inputs":[{"name":"to","type":"address"},{"name":"amount","type":"uint256"}],
	 "outputs":[{"name":"success","type":"bool"}]},
	{"type":"function","name":"balanceOf","stateMutability":"view",
	 "inputs":[{"name":"owner","type":"address"}],
	 "outputs":[{"name":"balance","type":"uint256"}]}
]`

func newCompiler() *Compiler {
	eval := valueref.New(cel.Evaluator{}, nil)
	return New(eval)
}

func TestParseChainID(t *testing.T) {
	id, err := ParseChainID("eip155:1")
	if err != nil || id.Int64() != 1 {
		t.Fatalf("got %v, %v", id, err)
	}
	if _, err := ParseChainID("solana:mainnet"); err == nil {
		t.Fatal("expected error for non-eip155 chain")
	}
}

func TestCompile_EVMCall(t *testing.T) {
	tree := runtime.New()
	tree.Apply([]models.Patch{
		models.SetPatch("inputs.to", "0x00000000000000000000000000000000000000de"),
		models.SetPatch("inputs.amount", "1000"),
	}, nil)

	node := &models.PlanNode{
		ID:    "transfer",
		Chain: "eip155:1",
		Execution: models.ExecutionSpec{
			Kind: models.ExecKindEVMCall,
			EVMCall: &models.EVMCallSpec{
				To:     models.Lit("0x0000000000000000000000000000000000000001"),
				ABI:    models.Lit(erc20ABI),
				Method: models.Lit("transfer"),
				Args: []models.ValueRef{
					models.Ref("inputs.to"),
					models.Ref("inputs.amount"),
				},
			},
		},
	}

	req, err := newCompiler().Compile(context.Background(), node, tree)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if req.ChainID.Int64() != 1 {
		t.Fatalf("unexpected chain id: %v", req.ChainID)
	}
	if len(req.Data) < 4 {
		t.Fatalf("expected encoded calldata, got %x", req.Data)
	}

	selector := crypto.Keccak256([]byte("transfer(address,uint256)"))[:4]
	if string(req.Data[:4]) != string(selector) {
		t.Fatalf("selector mismatch: got %x, want %x", req.Data[:4], selector)
	}
}

func TestCompile_InvalidAddress(t *testing.T) {
	tree := runtime.New()
	node := &models.PlanNode{
		ID:    "n1",
		Chain: "eip155:1",
		Execution: models.ExecutionSpec{
			Kind: models.ExecKindEVMRead,
			EVMRead: &models.EVMReadSpec{
				To:     models.Lit("not-an-address"),
				ABI:    models.Lit(erc20ABI),
				Method: models.Lit("balanceOf"),
				Args:   []models.ValueRef{models.Lit("0x0000000000000000000000000000000000000a")},
			},
		},
	}

	_, err := newCompiler().Compile(context.Background(), node, tree)
	if err == nil {
		t.Fatal("expected error for invalid address")
	}
	var ce *models.CompileError
	if !errors.As(err, &ce) || ce.Field != "to" {
		t.Fatalf("expected CompileError on field 'to', got %v", err)
	}
}

func TestCompile_EVMRPC(t *testing.T) {
	tree := runtime.New()
	tree.Apply([]models.Patch{models.SetPatch("inputs.address", "0x0000000000000000000000000000000000000a")}, nil)

	node := &models.PlanNode{
		ID:    "balance",
		Chain: "eip155:56",
		Execution: models.ExecutionSpec{
			Kind: models.ExecKindEVMRPC,
			EVMRPC: &models.EVMRPCSpec{
				Method: models.Lit("eth_getBalance"),
				Params: []models.ValueRef{models.Ref("inputs.address"), models.Lit("latest")},
			},
		},
	}

	req, err := newCompiler().Compile(context.Background(), node, tree)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if req.Method != "eth_getBalance" || len(req.Params) != 2 {
		t.Fatalf("unexpected rpc request: %+v", req)
	}
}

func TestDecodeOutputs_NamedSingle(t *testing.T) {
	abiDef, err := LoadABI(erc20ABI)
	if err != nil {
		t.Fatal(err)
	}
	method := abiDef.Methods["balanceOf"]
	packed, err := method.Outputs.Pack(big.NewInt(42))
	if err != nil {
		t.Fatal(err)
	}
	result, err := DecodeOutputs(&method, packed)
	if err != nil {
		t.Fatal(err)
	}
	m, ok := result.(map[string]interface{})
	if !ok || m["balance"] != "42" {
		t.Fatalf("unexpected decode result: %#v", result)
	}
}
