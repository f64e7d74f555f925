package policygate

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"

	"github.com/smilemakc/chainflow/pkg/models"
)

// HardConstraints are non-negotiable limits enforced against every gate
// input regardless of token identity.
type HardConstraints struct {
	MaxSlippageBps         *int `json:"max_slippage_bps,omitempty"`
	AllowUnlimitedApproval bool `json:"allow_unlimited_approval"`
}

// TokenPolicy governs which token/mint addresses a write may target.
type TokenPolicy struct {
	Allowlist []string `json:"allowlist,omitempty"`
	Strict    bool     `json:"strict"`
}

func (p *TokenPolicy) allows(address string) bool {
	if p == nil || len(p.Allowlist) == 0 {
		return true
	}
	needle := strings.ToLower(address)
	for _, a := range p.Allowlist {
		if strings.ToLower(a) == needle {
			return true
		}
	}
	return false
}

// RiskRule tags a GateInput with an additional risk tag when an
// expr-lang expression evaluated over its fields returns true. Grounded
// on pkg/engine/condition_cache.go's ExprConditionEvaluator, repointed
// at GateInput fields instead of node output.
type RiskRule struct {
	Tag  string `json:"tag"`
	When string `json:"when"`
}

// Policy is the enforcement configuration passed to Evaluate.
type Policy struct {
	Hard             HardConstraints `json:"hard_constraints"`
	RiskThreshold    models.RiskLevel `json:"risk_threshold"`
	ApprovalRequired []string        `json:"approval_required,omitempty"`
	RiskRules        []RiskRule      `json:"risk_rules,omitempty"`
}

// DecisionKind names the outcome of Evaluate.
type DecisionKind string

const (
	DecisionAllow           DecisionKind = "allow"
	DecisionHardBlock       DecisionKind = "hard_block"
	DecisionNeedUserConfirm DecisionKind = "need_user_confirm"
)

// Decision is the outcome of running a GateInput through the policy gate.
type Decision struct {
	Kind       DecisionKind
	Reason     string
	HitReasons []string
}

var riskRank = map[models.RiskLevel]int{
	models.RiskLevelLow:    0,
	models.RiskLevelMedium: 1,
	models.RiskLevelHigh:   2,
}

var riskCache = newExprCache(64)

// Evaluate runs the full §4.7 enforcement ladder: hard-block field
// classification, missing/unknown fields, then constraint validation.
func Evaluate(gate *models.GateInput, policy *Policy, tokenPolicy *TokenPolicy) Decision {
	if len(gate.HardBlockFields) > 0 {
		return Decision{Kind: DecisionHardBlock, Reason: "policy gate required fields are missing"}
	}
	if len(gate.MissingFields) > 0 {
		return Decision{Kind: DecisionNeedUserConfirm, Reason: "policy gate input is incomplete"}
	}
	if len(gate.UnknownFields) > 0 {
		return Decision{Kind: DecisionNeedUserConfirm, Reason: "policy gate input has unknown fields"}
	}
	return validateConstraints(gate, policy, tokenPolicy)
}

// validateConstraints implements spec.md's rule 4 and the recorded
// Open Question decision on permissive-allowlist/unknown_token ordering:
// allowlist-strict violations, slippage above the configured maximum, and
// disallowed unlimited approvals hard-block; the remaining approval
// triggers (permissive allowlist miss, risk threshold, approval-required
// risk tags) fold into a single deduplicated need_user_confirm.
func validateConstraints(gate *models.GateInput, policy *Policy, tokenPolicy *TokenPolicy) Decision {
	token := gate.TokenAddress
	if token == "" {
		token = gate.MintAddress
	}
	if token != "" && tokenPolicy != nil && !tokenPolicy.allows(token) {
		if tokenPolicy.Strict {
			return Decision{Kind: DecisionHardBlock, Reason: "token is not in the allowlist"}
		}
	}

	var reasons []string
	addReason := func(r string) {
		for _, existing := range reasons {
			if existing == r {
				return
			}
		}
		reasons = append(reasons, r)
	}

	if token != "" && tokenPolicy != nil && !tokenPolicy.Strict && !tokenPolicy.allows(token) {
		addReason("token is not in the allowlist")
	}

	if policy != nil {
		if policy.Hard.MaxSlippageBps != nil && gate.SlippageBps != nil && *gate.SlippageBps > *policy.Hard.MaxSlippageBps {
			return Decision{Kind: DecisionHardBlock, Reason: "slippage exceeds the configured maximum"}
		}
		if !policy.Hard.AllowUnlimitedApproval && gate.UnlimitedApproval {
			return Decision{Kind: DecisionHardBlock, Reason: "unlimited approvals are not permitted"}
		}

		tags := append([]string{}, gate.RiskTags...)
		tags = append(tags, evaluateRiskRules(gate, policy.RiskRules)...)

		if riskRank[gate.RiskLevel] >= riskRank[policy.RiskThreshold] && policy.RiskThreshold != "" {
			addReason("risk level meets or exceeds the approval threshold")
		}
		for _, required := range policy.ApprovalRequired {
			if containsTag(tags, required) {
				addReason(fmt.Sprintf("risk tag %q requires approval", required))
			}
		}
	}

	if len(reasons) > 0 {
		sort.Strings(reasons)
		return Decision{Kind: DecisionNeedUserConfirm, Reason: "policy requires approval", HitReasons: reasons}
	}

	return Decision{Kind: DecisionAllow}
}

func containsTag(tags []string, tag string) bool {
	for _, t := range tags {
		if t == tag {
			return true
		}
	}
	return false
}

// evaluateRiskRules runs each configured RiskRule's expression against the
// gate input (exposed as `gate`) and returns the tags of rules that matched.
func evaluateRiskRules(gate *models.GateInput, rules []RiskRule) []string {
	if len(rules) == 0 {
		return nil
	}
	env := map[string]interface{}{
		"gate": map[string]interface{}{
			"risk_level":          string(gate.RiskLevel),
			"slippage_bps":        derefInt(gate.SlippageBps),
			"unlimited_approval":  gate.UnlimitedApproval,
			"chain":               gate.Chain,
			"action_ref":          gate.ActionRef,
			"token_address":       gate.TokenAddress,
			"spend_amount":        derefStr(gate.SpendAmount),
			"approval_amount":     derefStr(gate.ApprovalAmount),
		},
	}

	var hit []string
	for _, rule := range rules {
		program, err := riskCache.compileAndCache(rule.When, env)
		if err != nil {
			continue
		}
		result, err := expr.Run(program, env)
		if err != nil {
			continue
		}
		if ok, _ := result.(bool); ok {
			hit = append(hit, rule.Tag)
		}
	}
	return hit
}

func derefInt(v *int) int {
	if v == nil {
		return 0
	}
	return *v
}

func derefStr(v *string) string {
	if v == nil {
		return ""
	}
	return *v
}

// exprCache is an LRU cache of compiled expr-lang programs, mirroring
// pkg/engine/condition_cache.go's ConditionCache shape.
type exprCache struct {
	capacity int
	entries  map[string]*vm.Program
	order    []string
	mu       sync.Mutex
}

func newExprCache(capacity int) *exprCache {
	return &exprCache{capacity: capacity, entries: make(map[string]*vm.Program)}
}

func (c *exprCache) compileAndCache(condition string, env interface{}) (*vm.Program, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if p, ok := c.entries[condition]; ok {
		for i, k := range c.order {
			if k == condition {
				c.order = append(append(c.order[:i:i], c.order[i+1:]...), condition)
				break
			}
		}
		return p, nil
	}
	program, err := expr.Compile(condition, expr.Env(env))
	if err != nil {
		return nil, err
	}
	if len(c.entries) >= c.capacity && len(c.order) > 0 {
		oldest := c.order[0]
		c.order = c.order[1:]
		delete(c.entries, oldest)
	}
	c.entries[condition] = program
	c.order = append(c.order, condition)
	return program, nil
}
