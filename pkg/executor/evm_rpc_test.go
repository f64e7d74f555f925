package executor

import (
	"context"
	"testing"

	"github.com/smilemakc/chainflow/pkg/cel"
	"github.com/smilemakc/chainflow/pkg/compile/evm"
	"github.com/smilemakc/chainflow/pkg/models"
	"github.com/smilemakc/chainflow/pkg/runtime"
	"github.com/smilemakc/chainflow/pkg/valueref"
)

func gasPriceNode() *models.PlanNode {
	return &models.PlanNode{
		ID:    "gas-price",
		Chain: "eip155:1",
		Execution: models.ExecutionSpec{
			Kind:   models.ExecKindEVMRPC,
			EVMRPC: &models.EVMRPCSpec{Method: models.Lit("eth_gasPrice")},
		},
		Writes: []models.Write{{Path: "query.gas_price", Mode: models.WriteModeSet}},
	}
}

func TestEVMRPCExecutor_DecodesRawResult(t *testing.T) {
	eval := valueref.New(cel.Evaluator{}, nil)
	client := &fakeEVMClient{rawResult: []byte(`"0x3b9aca00"`)}
	exec := NewEVMRPCExecutor(evm.New(eval), client)
	node := gasPriceNode()

	if !exec.Supports(node) {
		t.Fatal("expected support for evm_rpc")
	}

	res, err := exec.Execute(context.Background(), node, runtime.New().Snapshot(), Input{})
	if err != nil {
		t.Fatal(err)
	}
	if res.Outputs["result"] != "0x3b9aca00" {
		t.Fatalf("unexpected result: %+v", res.Outputs)
	}
	if res.Patches[0].Op != models.PatchOpSet || res.Patches[0].Path != "query.gas_price" {
		t.Fatalf("unexpected patch: %+v", res.Patches[0])
	}
}
