package models

import "fmt"

// NodeKind distinguishes the three shapes a PlanNode can take.
type NodeKind string

const (
	NodeKindExecution NodeKind = "execution"
	NodeKindActionRef NodeKind = "action_ref"
	NodeKindQueryRef  NodeKind = "query_ref"
)

// WriteMode controls how a node's output is applied to the runtime tree.
type WriteMode string

const (
	WriteModeSet   WriteMode = "set"
	WriteModeMerge WriteMode = "merge"
)

// Write declares one runtime-tree path a node is allowed to write.
type Write struct {
	Path string    `json:"path"`
	Mode WriteMode `json:"mode"`
}

// Source links a PlanNode back to the protocol action/query it was expanded from.
type Source struct {
	Protocol string `json:"protocol"`
	Action   string `json:"action,omitempty"`
	Query    string `json:"query,omitempty"`
	NodeID   string `json:"node_id"`
	StepID   string `json:"step_id,omitempty"`
}

// Retry configures polling for a node's `until` condition.
type Retry struct {
	IntervalMS  int64 `json:"interval_ms"`
	MaxAttempts int   `json:"max_attempts,omitempty"`
}

// CalculatedFieldDef declares one `calculated.<name>` derived value: an
// expression plus the subset of its inputs that name other calculated
// fields (`calculated.*`), which the solver uses to order evaluation.
type CalculatedFieldDef struct {
	Expr   string   `json:"expr"`
	Inputs []string `json:"inputs,omitempty"`
}

// PlanNode is one node of an ExecutionPlan DAG.
type PlanNode struct {
	ID               string                         `json:"id"`
	Chain            string                         `json:"chain"`
	Kind             NodeKind                       `json:"kind"`
	Execution        ExecutionSpec                  `json:"execution"`
	Source           *Source                        `json:"source,omitempty"`
	Deps             []string                       `json:"deps,omitempty"`
	Writes           []Write                        `json:"writes,omitempty"`
	Condition        *ValueRef                      `json:"condition,omitempty"`
	CalculatedFields map[string]CalculatedFieldDef  `json:"calculated_fields,omitempty"`
	RequiresQueries  []string                       `json:"requires_queries,omitempty"`
	Assert           *ValueRef                      `json:"assert,omitempty"`
	AssertMessage    string                         `json:"assert_message,omitempty"`
	Until            *ValueRef                      `json:"until,omitempty"`
	RetryPolicy      *Retry                         `json:"retry,omitempty"`
	TimeoutMS        int64                          `json:"timeout_ms,omitempty"`
}

// NamedValueRef pairs a ValueRef with the field name it fills, so the
// readiness solver can report a node's resolved_params keyed the same way
// the compiler will later consume them.
type NamedValueRef struct {
	Name string
	Ref  ValueRef
}

// NamedValueRefs returns every ValueRef embedded in the node's execution
// spec, named by its field path, the set the readiness solver must resolve
// against the runtime before the node can run.
func (n *PlanNode) NamedValueRefs() []NamedValueRef {
	var refs []NamedValueRef
	add := func(name string, ref ValueRef) { refs = append(refs, NamedValueRef{Name: name, Ref: ref}) }
	addIndexed := func(prefix string, list []ValueRef) {
		for i, r := range list {
			add(fmt.Sprintf("%s.%d", prefix, i), r)
		}
	}

	switch n.Execution.Kind {
	case ExecKindEVMRead:
		if s := n.Execution.EVMRead; s != nil {
			add("to", s.To)
			add("abi", s.ABI)
			add("method", s.Method)
			addIndexed("args", s.Args)
		}
	case ExecKindEVMCall:
		if s := n.Execution.EVMCall; s != nil {
			add("to", s.To)
			add("abi", s.ABI)
			add("method", s.Method)
			addIndexed("args", s.Args)
			if s.Value != nil {
				add("value", *s.Value)
			}
		}
	case ExecKindEVMRPC:
		if s := n.Execution.EVMRPC; s != nil {
			add("method", s.Method)
			addIndexed("params", s.Params)
		}
	case ExecKindSolanaRead, ExecKindSolanaInstruction:
		if s := n.Execution.Solana; s != nil {
			add("program", s.Program)
			addIndexed("accounts", s.Accounts)
			if s.Data != nil {
				add("data", *s.Data)
			}
		}
	}
	return refs
}

// ValueRefs returns every ValueRef embedded in the node's execution spec,
// discarding the field names NamedValueRefs attaches.
func (n *PlanNode) ValueRefs() []ValueRef {
	named := n.NamedValueRefs()
	refs := make([]ValueRef, len(named))
	for i, nv := range named {
		refs[i] = nv.Ref
	}
	return refs
}

// StepParentID returns the parent node id for a composite step id of the
// form "<parent>__<step>", or "" if id does not name a step.
func StepParentID(id string) string {
	for i := len(id) - 1; i >= 1; i-- {
		if id[i-1] == '_' && id[i] == '_' {
			return id[:i-1]
		}
	}
	return ""
}

// ExecutionPlan is the ordered, DAG-validated list of PlanNodes compiled
// from a workflow definition plus the protocol action/query registry.
type ExecutionPlan struct {
	ID    string     `json:"id"`
	Meta  WorkflowMeta `json:"meta"`
	Nodes []PlanNode `json:"nodes"`
}

// NodeByID returns the node with the given id.
func (p *ExecutionPlan) NodeByID(id string) (*PlanNode, error) {
	for i := range p.Nodes {
		if p.Nodes[i].ID == id {
			return &p.Nodes[i], nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrNodeNotFound, id)
}

// WorkflowMeta carries identifying and audit metadata for a plan, distinct
// from its execution-critical content (which participates in checkpoint
// compatibility and spec hashing).
type WorkflowMeta struct {
	Name        string            `json:"name"`
	Version     int               `json:"version"`
	Description string            `json:"description,omitempty"`
	Labels      map[string]string `json:"labels,omitempty"`
}

// ExecutionSpecKind names an ExecutionSpec variant.
type ExecutionSpecKind string

const (
	ExecKindEVMRead          ExecutionSpecKind = "evm_read"
	ExecKindEVMCall          ExecutionSpecKind = "evm_call"
	ExecKindEVMRPC           ExecutionSpecKind = "evm_rpc"
	ExecKindSolanaRead       ExecutionSpecKind = "solana_read"
	ExecKindSolanaInstruction ExecutionSpecKind = "solana_instruction"
)

// evmGetBalanceAlias is the load-time alias resolved in NormalizeAlias:
// "evm_get_balance" rewrites to evm_rpc{method: "eth_getBalance"}.
const evmGetBalanceAlias ExecutionSpecKind = "evm_get_balance"

// ExecutionSpec is the sum type of chain operations a PlanNode can carry.
// Exactly one of the EVM*/Solana* pointer fields is non-nil, selected by Kind.
type ExecutionSpec struct {
	Kind ExecutionSpecKind `json:"kind"`

	EVMRead   *EVMReadSpec   `json:"evm_read,omitempty"`
	EVMCall   *EVMCallSpec   `json:"evm_call,omitempty"`
	EVMRPC    *EVMRPCSpec    `json:"evm_rpc,omitempty"`
	Solana    *SolanaSpec    `json:"solana,omitempty"`
}

// EVMReadSpec reads contract state via eth_call against an ABI method.
type EVMReadSpec struct {
	To     ValueRef   `json:"to"`
	ABI    ValueRef   `json:"abi"`
	Method ValueRef   `json:"method"`
	Args   []ValueRef `json:"args,omitempty"`
}

// EVMCallSpec compiles a state-changing contract transaction.
type EVMCallSpec struct {
	To     ValueRef   `json:"to"`
	ABI    ValueRef   `json:"abi"`
	Method ValueRef   `json:"method"`
	Args   []ValueRef `json:"args,omitempty"`
	Value  *ValueRef  `json:"value,omitempty"`
}

// EVMRPCSpec issues a raw read-only JSON-RPC method call (eth_getBalance,
// eth_getCode, eth_gasPrice, ...). NormalizeAlias rewrites the legacy
// "evm_get_balance" ExecutionSpecKind into this shape.
type EVMRPCSpec struct {
	Method ValueRef   `json:"method"`
	Params []ValueRef `json:"params,omitempty"`
}

// SolanaSpec covers both solana_read (getAccountInfo-style) and
// solana_instruction (program instruction compilation); Data/Accounts are
// only meaningful for the instruction variant.
type SolanaSpec struct {
	Program  ValueRef   `json:"program"`
	Accounts []ValueRef `json:"accounts,omitempty"`
	Data     *ValueRef  `json:"data,omitempty"`
}

// NormalizeAlias rewrites deprecated ExecutionSpecKind aliases to their
// canonical form. Called once at plan-load time.
func NormalizeAlias(spec ExecutionSpec) ExecutionSpec {
	if spec.Kind != evmGetBalanceAlias {
		return spec
	}
	to := spec.EVMRPC
	method := ValueRef{Tag: ValueRefLit, Lit: "eth_getBalance"}
	return ExecutionSpec{
		Kind: ExecKindEVMRPC,
		EVMRPC: &EVMRPCSpec{
			Method: method,
			Params: func() []ValueRef {
				if to != nil {
					return to.Params
				}
				return nil
			}(),
		},
	}
}
