package policygate

import (
	"math/big"
	"strings"

	"github.com/smilemakc/chainflow/pkg/models"
	"github.com/smilemakc/chainflow/pkg/runtime"
)

var maxUint256 = func() *big.Int {
	n := new(big.Int).Lsh(big.NewInt(1), 256)
	return n.Sub(n, big.NewInt(1))
}()

// source is one prioritized layer ExtractGateInput walks, highest
// priority first: params overrides calculated overrides detect_result.
type source struct {
	name string
	data map[string]interface{}
}

// ExtractGateInput builds the normalized, auditable view of node's
// compiled write for the policy gate, per spec.md's prioritized source
// walk: params > calculated > detect_result, then the preview itself.
func ExtractGateInput(node *models.PlanNode, tree *runtime.Tree, preview models.WritePreview) *models.GateInput {
	snapshot := tree.Snapshot()
	nodeBag, _ := runtime.FromMap(snapshot).Get("nodes." + node.ID)
	nodeMap, _ := nodeBag.(map[string]interface{})

	sources := []source{
		{string(models.FieldSourceParams), asMap(nodeMap, "params")},
		{string(models.FieldSourceCalculated), asMap(nodeMap, "calculated")},
		{string(models.FieldSourceDetect), asMap(nodeMap, "detect_result")},
	}

	gate := &models.GateInput{
		NodeID:       node.ID,
		Chain:        node.Chain,
		Params:       sources[0].data,
		Preview:      previewToMap(preview),
		FieldSources: map[string]models.FieldSourceKind{},
	}
	if node.Source != nil {
		gate.WorkflowNodeID = node.Source.NodeID
		gate.ActionRef = node.Source.Protocol + "." + node.Source.Action
	}

	harvestInt(gate, sources, "slippage_bps", []string{"slippage_bps", "max_slippage_bps"}, func(v int) { gate.SlippageBps = &v })
	harvestStr(gate, sources, "approval_amount", []string{"approval_amount", "max_approval"}, func(v string) { gate.ApprovalAmount = &v })
	harvestStr(gate, sources, "spend_amount", []string{"spend_amount", "amount_in", "amount"}, func(v string) { gate.SpendAmount = &v })

	if unlimited, src, ok := harvestBool(sources, "unlimited_approval"); ok {
		gate.UnlimitedApproval = unlimited
		gate.FieldSources["unlimited_approval"] = models.FieldSourceKind(src)
	} else if gate.ApprovalAmount != nil && isUnlimitedAmount(*gate.ApprovalAmount) {
		gate.UnlimitedApproval = true
	}

	extractFromPreview(gate, preview)

	classifyMissingUnknown(gate, node, preview)
	return gate
}

func asMap(nodeMap map[string]interface{}, key string) map[string]interface{} {
	if nodeMap == nil {
		return nil
	}
	m, _ := nodeMap[key].(map[string]interface{})
	return m
}

func previewToMap(p models.WritePreview) map[string]interface{} {
	out := map[string]interface{}{"kind": string(p.Kind), "chain": p.Chain}
	switch p.Kind {
	case models.WritePreviewEVMTx:
		out["exec_type"] = p.ExecType
		out["to"] = p.To
		out["function_name"] = p.FunctionName
		out["args"] = p.Args
	case models.WritePreviewSolanaInstruction:
		out["program_id"] = p.ProgramID
		out["instruction"] = p.Instruction
		out["accounts"] = p.Accounts
		out["data_fields"] = p.DataFields
	case models.WritePreviewExecutionError:
		out["exec_type"] = p.ExecType
		out["compile_error"] = p.CompileError
	}
	return out
}

func harvestInt(gate *models.GateInput, sources []source, field string, keys []string, set func(int)) {
	for _, s := range sources {
		for _, key := range keys {
			if v, ok := s.data[key]; ok {
				if n, ok := toInt(v); ok {
					set(n)
					gate.FieldSources[field] = models.FieldSourceKind(s.name)
					return
				}
			}
		}
	}
}

func harvestStr(gate *models.GateInput, sources []source, field string, keys []string, set func(string)) {
	for _, s := range sources {
		for _, key := range keys {
			if v, ok := s.data[key]; ok {
				if str, ok := toStr(v); ok {
					set(str)
					gate.FieldSources[field] = models.FieldSourceKind(s.name)
					return
				}
			}
		}
	}
}

func harvestBool(sources []source, key string) (bool, string, bool) {
	for _, s := range sources {
		if v, ok := s.data[key]; ok {
			if b, ok := v.(bool); ok {
				return b, s.name, true
			}
		}
	}
	return false, "", false
}

func toInt(v interface{}) (int, bool) {
	switch t := v.(type) {
	case int:
		return t, true
	case int64:
		return int(t), true
	case float64:
		return int(t), true
	case string:
		n := new(big.Int)
		if _, ok := n.SetString(t, 10); ok {
			return int(n.Int64()), true
		}
	}
	return 0, false
}

func toStr(v interface{}) (string, bool) {
	s, ok := v.(string)
	return s, ok
}

// isUnlimitedAmount matches spec.md's unlimited-approval inference: the
// literal string "max", an all-`f` hex string, or a decimal value >= 2^256-1.
func isUnlimitedAmount(amount string) bool {
	lower := strings.ToLower(strings.TrimSpace(amount))
	if lower == "max" {
		return true
	}
	hex := strings.TrimPrefix(strings.TrimPrefix(lower, "0x"), "0x")
	if hex != "" {
		allF := true
		for _, r := range hex {
			if r != 'f' {
				allF = false
				break
			}
		}
		if allF {
			return true
		}
	}
	n := new(big.Int)
	if _, ok := n.SetString(amount, 10); ok {
		return n.Cmp(maxUint256) >= 0
	}
	return false
}

var approveArgNames = map[string][]string{
	"spender": {"spender", "_spender", "delegate", "guy"},
	"amount":  {"amount", "value", "_value", "wad"},
}

var swapFnPrefixes = []string{"swap", "exactinput", "exactoutput"}

// extractFromPreview mines the compiled preview for EVM approve/swap and
// Solana approve/transfer field identities, per spec.md §4.7.
func extractFromPreview(gate *models.GateInput, p models.WritePreview) {
	switch p.Kind {
	case models.WritePreviewEVMTx:
		fn := strings.ToLower(p.FunctionName)
		switch {
		case strings.Contains(fn, "approve"):
			gate.TokenAddress = p.To
			gate.FieldSources["token_address"] = models.FieldSourcePreview
			if spender := firstArg(p.Args, approveArgNames["spender"]); spender != "" {
				gate.SpenderAddress = spender
				gate.FieldSources["spender_address"] = models.FieldSourcePreview
			}
			if gate.ApprovalAmount == nil {
				if amount := firstArg(p.Args, approveArgNames["amount"]); amount != "" {
					gate.ApprovalAmount = &amount
					gate.FieldSources["approval_amount"] = models.FieldSourcePreview
				}
			}
		case matchesAny(fn, swapFnPrefixes):
			if gate.SpendAmount == nil {
				if amount := firstArg(p.Args, []string{"amountIn", "amount_in", "amountin"}); amount != "" {
					gate.SpendAmount = &amount
					gate.FieldSources["spend_amount"] = models.FieldSourcePreview
				}
			}
			if gate.SlippageBps == nil {
				if v, ok := p.Args["slippageBps"]; ok {
					if n, ok := toInt(v); ok {
						gate.SlippageBps = &n
						gate.FieldSources["slippage_bps"] = models.FieldSourcePreview
					}
				}
			}
		}
	case models.WritePreviewSolanaInstruction:
		switch p.Instruction {
		case "approve":
			if idx := findAccountByRole(p, "delegate"); idx != "" {
				gate.SpenderAddress = idx
				gate.FieldSources["spender_address"] = models.FieldSourcePreview
			}
		case "transfer", "transfer_checked":
			if v, ok := p.DataFields["owner"].(string); ok {
				gate.OwnerAddress = v
				gate.FieldSources["owner_address"] = models.FieldSourcePreview
			}
			if v, ok := p.DataFields["mint"].(string); ok {
				gate.MintAddress = v
				gate.FieldSources["mint_address"] = models.FieldSourcePreview
			}
			if v, ok := p.DataFields["amount"].(string); ok && gate.SpendAmount == nil {
				gate.SpendAmount = &v
				gate.FieldSources["spend_amount"] = models.FieldSourcePreview
			}
		}
	}
}

func firstArg(args map[string]interface{}, names []string) string {
	for _, n := range names {
		if v, ok := args[n]; ok {
			if s, ok := v.(string); ok {
				return s
			}
		}
	}
	return ""
}

func matchesAny(s string, prefixes []string) bool {
	for _, p := range prefixes {
		if strings.HasPrefix(s, p) {
			return true
		}
	}
	return false
}

// findAccountByRole is a placeholder for role-tagged Solana accounts;
// this module's AccountMeta carries no semantic role, so the delegate
// account can only be identified when a data field names it explicitly.
func findAccountByRole(p models.WritePreview, role string) string {
	if v, ok := p.DataFields[role].(string); ok {
		return v
	}
	return ""
}

// classifyMissingUnknown fills MissingFields/UnknownFields/HardBlockFields
// per spec.md's classification rules.
func classifyMissingUnknown(gate *models.GateInput, node *models.PlanNode, preview models.WritePreview) {
	if preview.Kind == models.WritePreviewExecutionError {
		gate.HardBlockFields = append(gate.HardBlockFields, "preview_compile")
		gate.UnknownFields = append(gate.UnknownFields, "compile_error")
		return
	}

	action := ""
	if node.Source != nil {
		action = strings.ToLower(node.Source.Action)
	}
	fn := strings.ToLower(preview.FunctionName)
	isApprove := strings.Contains(fn, "approve") || action == "approve"
	isSwap := matchesAny(fn, swapFnPrefixes) || action == "swap"

	switch {
	case isApprove:
		if gate.TokenAddress == "" {
			gate.MissingFields = append(gate.MissingFields, "token_address")
		}
		if gate.ApprovalAmount == nil {
			gate.MissingFields = append(gate.MissingFields, "approval_amount")
		}
		if gate.SpenderAddress == "" {
			gate.MissingFields = append(gate.MissingFields, "spender_address")
		}
	case isSwap:
		if gate.SpendAmount == nil {
			gate.MissingFields = append(gate.MissingFields, "spend_amount")
		}
		if gate.SlippageBps == nil {
			gate.MissingFields = append(gate.MissingFields, "slippage_bps")
		}
	}

	if preview.Kind == models.WritePreviewSolanaInstruction {
		switch preview.Instruction {
		case "approve", "transfer", "transfer_checked":
			if gate.TokenAddress == "" && gate.MintAddress == "" {
				gate.MissingFields = append(gate.MissingFields, "token_or_mint")
			}
		}
	}

	if gate.TokenAddress == "" && gate.MintAddress == "" && (isApprove || preview.Kind == models.WritePreviewSolanaInstruction) {
		gate.UnknownFields = append(gate.UnknownFields, "token_identity")
	}
}
