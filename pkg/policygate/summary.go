package policygate

import (
	"fmt"
	"sort"
	"strings"

	"github.com/smilemakc/chainflow/pkg/codec"
	"github.com/smilemakc/chainflow/pkg/models"
)

// titleFor chooses the ConfirmationSummary.Title per spec.md's kind list:
// broadcast_gate|policy_allowlist|policy_gate|need_user_confirm.
func titleFor(decision Decision, gate *models.GateInput) string {
	switch {
	case decision.Kind == DecisionHardBlock && strings.Contains(decision.Reason, "allowlist"):
		return "policy_allowlist"
	case decision.Kind == DecisionHardBlock:
		return "policy_gate"
	case decision.Kind == DecisionNeedUserConfirm:
		return "need_user_confirm"
	default:
		return "broadcast_gate"
	}
}

// BuildSummary renders a deterministic ConfirmationSummary for a decision
// reached over gate/preview. The hash is keccak256(canonical_json) of the
// summary with Hash cleared; Schema and every other field are hashed, and
// ConfirmationSummary carries no created_at/ts field.
func BuildSummary(node *models.PlanNode, gate *models.GateInput, preview models.WritePreview, decision Decision) (*models.ConfirmationSummary, error) {
	summary := &models.ConfirmationSummary{
		Schema: 1,
		Title:  titleFor(decision, gate),
		Node: models.ConfirmationNode{
			NodeID:         node.ID,
			WorkflowNodeID: gate.WorkflowNodeID,
			ActionRef:      gate.ActionRef,
			Chain:          node.Chain,
			ExecutionType:  string(node.Execution.Kind),
			Writes:         node.Writes,
		},
		HitReasons: decision.HitReasons,
		Risk: map[string]interface{}{
			"level": string(gate.RiskLevel),
			"tags":  gate.RiskTags,
		},
		Preview: previewToMap(preview),
		Gate:    gate,
	}
	summary.Summary = oneLineSummary(node, gate, preview, decision)

	hash, err := codec.SpecHash(hashableContent(summary))
	if err != nil {
		return nil, fmt.Errorf("policygate: hash summary: %w", err)
	}
	summary.Hash = hash
	return summary, nil
}

// hashableContent strips Hash itself (the only field ConfirmationSummary
// carries that Summary's own computation must not depend on) before
// canonical-JSON hashing.
func hashableContent(s *models.ConfirmationSummary) interface{} {
	clone := *s
	clone.Hash = ""
	return clone
}

func oneLineSummary(node *models.PlanNode, gate *models.GateInput, preview models.WritePreview, decision Decision) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s %s", node.Chain, gate.ActionRef)
	fmt.Fprintf(&b, " exec=%s risk=%s", node.Execution.Kind, gate.RiskLevel)
	if len(gate.RiskTags) > 0 {
		fmt.Fprintf(&b, " tags=%s", strings.Join(gate.RiskTags, ","))
	}
	if keys := previewKeys(preview); len(keys) > 0 {
		fmt.Fprintf(&b, " preview=[%s]", strings.Join(keys, ","))
	}
	if len(decision.HitReasons) > 0 {
		fmt.Fprintf(&b, " reasons=[%s]", strings.Join(decision.HitReasons, ";"))
	}
	return b.String()
}

func previewKeys(p models.WritePreview) []string {
	m := previewToMap(p)
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
