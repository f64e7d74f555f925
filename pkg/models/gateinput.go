package models

// RiskLevel classifies a GateInput's overall risk for the policy gate.
type RiskLevel string

const (
	RiskLevelLow    RiskLevel = "low"
	RiskLevelMedium RiskLevel = "medium"
	RiskLevelHigh   RiskLevel = "high"
)

// FieldSourceKind names where a GateInput field's value was sourced from,
// in priority order: params beats calculated beats detect beats preview.
type FieldSourceKind string

const (
	FieldSourceParams     FieldSourceKind = "params"
	FieldSourceCalculated FieldSourceKind = "calculated"
	FieldSourceDetect     FieldSourceKind = "detect"
	FieldSourcePreview    FieldSourceKind = "preview"
)

// GateInput is the normalized, auditable view of a PlanNode's execution
// passed to the policy gate for constraint and allowlist evaluation.
type GateInput struct {
	NodeID           string                     `json:"node_id"`
	WorkflowNodeID   string                     `json:"workflow_node_id,omitempty"`
	ActionRef        string                     `json:"action_ref,omitempty"`
	Chain            string                     `json:"chain"`
	Params           map[string]interface{}     `json:"params"`
	Preview          map[string]interface{}     `json:"preview,omitempty"`
	RiskLevel        RiskLevel                  `json:"risk_level"`
	RiskTags         []string                   `json:"risk_tags,omitempty"`
	SlippageBps      *int                       `json:"slippage_bps,omitempty"`
	ApprovalAmount   *string                    `json:"approval_amount,omitempty"`
	SpendAmount      *string                    `json:"spend_amount,omitempty"`
	UnlimitedApproval bool                      `json:"unlimited_approval,omitempty"`
	TokenAddress     string                     `json:"token_address,omitempty"`
	SpenderAddress   string                     `json:"spender_address,omitempty"`
	OwnerAddress     string                     `json:"owner_address,omitempty"`
	MintAddress      string                     `json:"mint_address,omitempty"`
	MissingFields    []string                   `json:"missing_fields,omitempty"`
	UnknownFields    []string                   `json:"unknown_fields,omitempty"`
	HardBlockFields  []string                   `json:"hard_block_fields,omitempty"`
	FieldSources     map[string]FieldSourceKind `json:"field_sources,omitempty"`
}

// WritePreviewKind names a WritePreview variant.
type WritePreviewKind string

const (
	WritePreviewEVMTx             WritePreviewKind = "evm_tx"
	WritePreviewSolanaInstruction WritePreviewKind = "solana_instruction"
	WritePreviewExecutionError    WritePreviewKind = "execution"
)

// WritePreview is the compiler's dry-run output for a write node, built
// before the policy gate or any executor touches it. On compile failure
// Kind is WritePreviewExecutionError and CompileError is set; every other
// field is chain-specific and populated only for its own Kind.
type WritePreview struct {
	Kind WritePreviewKind `json:"kind"`
	Chain string          `json:"chain"`

	// evm_tx
	ChainID      string                 `json:"chain_id,omitempty"`
	ExecType     string                 `json:"exec_type,omitempty"`
	To           string                 `json:"to,omitempty"`
	Data         string                 `json:"data,omitempty"`
	FunctionName string                 `json:"function_name,omitempty"`
	Args         map[string]interface{} `json:"args,omitempty"`

	// solana_instruction
	ProgramID      string                 `json:"program_id,omitempty"`
	Instruction    string                 `json:"instruction,omitempty"`
	Accounts       []string               `json:"accounts,omitempty"`
	DataFields     map[string]interface{} `json:"data_fields,omitempty"`
	ComputeUnits   *uint64                `json:"compute_units,omitempty"`
	LookupTables   []string               `json:"lookup_tables,omitempty"`

	// execution (compile failure)
	CompileError string `json:"compile_error,omitempty"`
}

// ConfirmationNode is the node-identity section of a ConfirmationSummary.
type ConfirmationNode struct {
	NodeID         string  `json:"node_id"`
	WorkflowNodeID string  `json:"workflow_node_id,omitempty"`
	ActionRef      string  `json:"action_ref,omitempty"`
	Chain          string  `json:"chain"`
	ExecutionType  string  `json:"execution_type"`
	Writes         []Write `json:"writes,omitempty"`
}

// ConfirmationSummary is the deterministic record shown to a user (or
// signer) before a gated node executes. Hash = keccak256(canonical_json(
// content without Hash itself)), making it stable across processes given
// equal inputs.
type ConfirmationSummary struct {
	Schema    int                    `json:"schema"`
	Hash      string                 `json:"hash"`
	Title     string                 `json:"title"`
	Summary   string                 `json:"summary"`
	Node      ConfirmationNode       `json:"node"`
	HitReasons []string              `json:"hit_reasons,omitempty"`
	Risk      map[string]interface{} `json:"risk,omitempty"`
	Preview   map[string]interface{} `json:"preview,omitempty"`
	Gate      *GateInput             `json:"gate,omitempty"`
}
