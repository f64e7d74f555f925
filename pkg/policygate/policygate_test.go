package policygate

import (
	"testing"

	"github.com/smilemakc/chainflow/pkg/models"
	"github.com/smilemakc/chainflow/pkg/runtime"
)

func approveNode() *models.PlanNode {
	return &models.PlanNode{
		ID:    "approve-usdc",
		Chain: "eip155:1",
		Source: &models.Source{
			Protocol: "erc20", Action: "approve", NodeID: "approve-usdc",
		},
		Execution: models.ExecutionSpec{Kind: models.ExecKindEVMCall},
	}
}

func approvePreview(amount string) models.WritePreview {
	return models.WritePreview{
		Kind:         models.WritePreviewEVMTx,
		Chain:        "eip155:1",
		ExecType:     "evm_call",
		To:           "0x00000000000000000000000000000000000aaa",
		FunctionName: "approve",
		Args: map[string]interface{}{
			"spender": "0x00000000000000000000000000000000000bbb",
			"amount":  amount,
		},
	}
}

func TestExtractGateInput_ApproveComplete(t *testing.T) {
	tree := runtime.New()
	gate := ExtractGateInput(approveNode(), tree, approvePreview("1000"))

	if gate.TokenAddress == "" || gate.SpenderAddress == "" || gate.ApprovalAmount == nil {
		t.Fatalf("expected approve fields harvested from preview, got %+v", gate)
	}
	if len(gate.MissingFields) != 0 {
		t.Fatalf("expected no missing fields, got %v", gate.MissingFields)
	}
	if gate.FieldSources["token_address"] != models.FieldSourcePreview {
		t.Fatalf("expected token_address sourced from preview, got %v", gate.FieldSources["token_address"])
	}
}

func TestExtractGateInput_UnlimitedApprovalInferred(t *testing.T) {
	tree := runtime.New()
	gate := ExtractGateInput(approveNode(), tree, approvePreview("max"))
	if !gate.UnlimitedApproval {
		t.Fatal("expected unlimited_approval inferred from literal \"max\"")
	}

	allFs := ExtractGateInput(approveNode(), tree, approvePreview("ffffffffffffffffffffffffffffffff"))
	if !allFs.UnlimitedApproval {
		t.Fatal("expected unlimited_approval inferred from all-f hex")
	}
}

func TestExtractGateInput_ParamsOverridePreview(t *testing.T) {
	tree := runtime.New()
	tree.Apply([]models.Patch{
		models.SetPatch("nodes.approve-usdc.params", map[string]interface{}{"approval_amount": "42"}),
	}, nil)

	gate := ExtractGateInput(approveNode(), tree, approvePreview("1000"))
	if gate.ApprovalAmount == nil || *gate.ApprovalAmount != "42" {
		t.Fatalf("expected params-sourced approval_amount to win, got %v", gate.ApprovalAmount)
	}
	if gate.FieldSources["approval_amount"] != models.FieldSourceParams {
		t.Fatalf("expected field source params, got %v", gate.FieldSources["approval_amount"])
	}
}

func TestEvaluate_HardBlockOnCompileError(t *testing.T) {
	node := approveNode()
	preview := PreviewError("eip155:1", "evm_call", models.ErrCompile)
	gate := ExtractGateInput(node, runtime.New(), preview)

	decision := Evaluate(gate, nil, nil)
	if decision.Kind != DecisionHardBlock {
		t.Fatalf("expected hard_block, got %v", decision)
	}
}

func TestEvaluate_MissingFieldsNeedUserConfirm(t *testing.T) {
	node := approveNode()
	preview := models.WritePreview{Kind: models.WritePreviewEVMTx, FunctionName: "approve"}
	gate := ExtractGateInput(node, runtime.New(), preview)

	decision := Evaluate(gate, nil, nil)
	if decision.Kind != DecisionNeedUserConfirm {
		t.Fatalf("expected need_user_confirm, got %v", decision)
	}
}

func TestEvaluate_StrictAllowlistHardBlocks(t *testing.T) {
	node := approveNode()
	gate := ExtractGateInput(node, runtime.New(), approvePreview("1000"))
	tokenPolicy := &TokenPolicy{Allowlist: []string{"0xdeadbeef"}, Strict: true}

	decision := Evaluate(gate, &Policy{}, tokenPolicy)
	if decision.Kind != DecisionHardBlock {
		t.Fatalf("expected hard_block for strict allowlist miss, got %v", decision)
	}
}

func TestEvaluate_PermissiveAllowlistNeedsConfirm(t *testing.T) {
	node := approveNode()
	gate := ExtractGateInput(node, runtime.New(), approvePreview("1000"))
	tokenPolicy := &TokenPolicy{Allowlist: []string{"0xdeadbeef"}, Strict: false}

	decision := Evaluate(gate, &Policy{}, tokenPolicy)
	if decision.Kind != DecisionNeedUserConfirm {
		t.Fatalf("expected need_user_confirm for permissive allowlist miss, got %v", decision)
	}
}

func TestEvaluate_UnlimitedApprovalBlockedByDefault(t *testing.T) {
	node := approveNode()
	gate := ExtractGateInput(node, runtime.New(), approvePreview("max"))

	decision := Evaluate(gate, &Policy{Hard: HardConstraints{AllowUnlimitedApproval: false}}, nil)
	if decision.Kind != DecisionHardBlock {
		t.Fatalf("expected hard_block on unlimited approval, got %v", decision)
	}
}

func TestEvaluate_RiskThresholdRequiresApproval(t *testing.T) {
	node := approveNode()
	gate := ExtractGateInput(node, runtime.New(), approvePreview("1000"))
	gate.RiskLevel = models.RiskLevelHigh

	decision := Evaluate(gate, &Policy{
		Hard:          HardConstraints{AllowUnlimitedApproval: true},
		RiskThreshold: models.RiskLevelMedium,
	}, nil)
	if decision.Kind != DecisionNeedUserConfirm {
		t.Fatalf("expected need_user_confirm for high risk above threshold, got %v", decision)
	}
}

func TestEvaluate_RiskRuleTagsApprovalRequired(t *testing.T) {
	node := approveNode()
	gate := ExtractGateInput(node, runtime.New(), approvePreview("1000"))

	decision := Evaluate(gate, &Policy{
		Hard:             HardConstraints{AllowUnlimitedApproval: true},
		ApprovalRequired: []string{"large_spend"},
		RiskRules: []RiskRule{
			{Tag: "large_spend", When: `gate.approval_amount == "1000"`},
		},
	}, nil)
	if decision.Kind != DecisionNeedUserConfirm {
		t.Fatalf("expected need_user_confirm from matched risk rule, got %v", decision)
	}
}

func TestEvaluate_Allow(t *testing.T) {
	node := approveNode()
	gate := ExtractGateInput(node, runtime.New(), approvePreview("1000"))

	decision := Evaluate(gate, &Policy{Hard: HardConstraints{AllowUnlimitedApproval: true}}, nil)
	if decision.Kind != DecisionAllow {
		t.Fatalf("expected allow, got %v", decision)
	}
}

func TestBuildSummary_DeterministicHash(t *testing.T) {
	node := approveNode()
	preview := approvePreview("1000")
	gate := ExtractGateInput(node, runtime.New(), preview)
	decision := Evaluate(gate, &Policy{Hard: HardConstraints{AllowUnlimitedApproval: true}}, nil)

	s1, err := BuildSummary(node, gate, preview, decision)
	if err != nil {
		t.Fatal(err)
	}
	s2, err := BuildSummary(node, gate, preview, decision)
	if err != nil {
		t.Fatal(err)
	}
	if s1.Hash != s2.Hash {
		t.Fatalf("expected deterministic hash, got %s vs %s", s1.Hash, s2.Hash)
	}
	if s1.Title != "broadcast_gate" {
		t.Fatalf("expected broadcast_gate title for allow decision, got %s", s1.Title)
	}
}
