package scheduler

import (
	"strings"

	"github.com/smilemakc/chainflow/pkg/models"
	"github.com/smilemakc/chainflow/pkg/runtime"
)

// classifyRisk fills gate.RiskLevel/RiskTags. spec.md defines risk_level
// as a GateInput field but leaves its derivation to the embedding
// engine (an Open Question, recorded in DESIGN.md): a plan may declare
// an explicit override at runtime.policy.risk_overrides.<node_id>
// (highest priority, the same params-beats-everything precedence
// ExtractGateInput already uses for other fields); absent an override,
// risk is classified heuristically from the extracted gate fields.
func classifyRisk(gate *models.GateInput, tree *runtime.Tree) {
	if override, ok := tree.Get(models.RuntimePolicy + ".risk_overrides." + gate.NodeID); ok {
		if s, ok := override.(string); ok {
			gate.RiskLevel = models.RiskLevel(s)
			return
		}
	}

	var tags []string
	level := models.RiskLevelLow

	if gate.UnlimitedApproval {
		level = models.RiskLevelHigh
		tags = append(tags, "unlimited_approval")
	}

	action := strings.ToLower(gate.ActionRef)
	switch {
	case strings.Contains(action, "approve"):
		if level != models.RiskLevelHigh {
			level = models.RiskLevelMedium
		}
		tags = append(tags, "approval")
	case strings.Contains(action, "swap"):
		if level != models.RiskLevelHigh {
			level = models.RiskLevelMedium
		}
		tags = append(tags, "swap")
	}

	if gate.SlippageBps != nil && *gate.SlippageBps > 500 && level == models.RiskLevelLow {
		level = models.RiskLevelMedium
		tags = append(tags, "high_slippage")
	}

	gate.RiskLevel = level
	gate.RiskTags = tags
}
