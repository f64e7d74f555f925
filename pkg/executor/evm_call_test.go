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

func approveCallNode() *models.PlanNode {
	return &models.PlanNode{
		ID:    "approve-usdc",
		Chain: "eip155:1",
		Execution: models.ExecutionSpec{
			Kind: models.ExecKindEVMCall,
			EVMCall: &models.EVMCallSpec{
				To:     models.Lit("0x0000000000000000000000000000000000000aaa"),
				ABI:    models.Lit(erc20ABIForExecutor),
				Method: models.Lit("approve"),
				Args: []models.ValueRef{
					models.Lit("0x0000000000000000000000000000000000000bbb"),
					models.Lit("1000"),
				},
			},
		},
		Writes: []models.Write{{Path: "nodes.approve-usdc.calculated", Mode: models.WriteModeMerge}},
	}
}

const erc20ABIForExecutor = `[
	{"type":"function","name":"approve","stateMutability":"nonpayable",
	 "inputs":[{"name":"spender","type":"address"},{"name":"amount","type":"uint256"}],
	 "outputs":[{"name":"success","type":"bool"}]}
]`

func TestEVMCallExecutor_SendsAndAwaitsReceipt(t *testing.T) {
	eval := valueref.New(cel.Evaluator{}, nil)
	client := &fakeEVMClient{
		txHash:  "0xdeadbeef",
		receipt: &EVMReceipt{TxHash: "0xdeadbeef", Status: true, BlockNumber: 100, GasUsed: 21000},
	}
	exec := NewEVMCallExecutor(evm.New(eval), client)
	node := approveCallNode()

	if !exec.Supports(node) {
		t.Fatal("expected support for evm_call")
	}

	res, err := exec.Execute(context.Background(), node, runtime.New().Snapshot(), Input{})
	if err != nil {
		t.Fatal(err)
	}
	if res.Outputs["tx_hash"] != "0xdeadbeef" || res.Outputs["status"] != true {
		t.Fatalf("unexpected outputs: %+v", res.Outputs)
	}
	if len(res.Patches) != 1 {
		t.Fatalf("expected one patch, got %+v", res.Patches)
	}
}

func TestEVMCallExecutor_SendFailurePropagates(t *testing.T) {
	eval := valueref.New(cel.Evaluator{}, nil)
	client := &fakeEVMClient{sendErr: context.DeadlineExceeded}
	exec := NewEVMCallExecutor(evm.New(eval), client)

	if _, err := exec.Execute(context.Background(), approveCallNode(), runtime.New().Snapshot(), Input{}); err == nil {
		t.Fatal("expected send error")
	}
}
