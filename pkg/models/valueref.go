package models

// ValueRefTag discriminates the ValueRef sum type.
type ValueRefTag string

const (
	ValueRefLit    ValueRefTag = "lit"
	ValueRefRef    ValueRefTag = "ref"
	ValueRefObject ValueRefTag = "object"
	ValueRefArray  ValueRefTag = "array"
	ValueRefCEL    ValueRefTag = "cel"
	ValueRefDetect ValueRefTag = "detect"
)

// ValueRef is a tagged variant describing how to derive a runtime value.
// Exactly one of the tag-associated fields is populated, selected by Tag.
// Evaluation is pure except for Detect (may be async) and CEL (deterministic
// given a snapshot of the runtime tree).
type ValueRef struct {
	Tag ValueRefTag `json:"tag"`

	Lit    interface{}         `json:"lit,omitempty"`
	Path   string              `json:"path,omitempty"`
	Object map[string]ValueRef `json:"object,omitempty"`
	Array  []ValueRef          `json:"array,omitempty"`
	CEL    string              `json:"cel,omitempty"`
	Detect *DetectRef          `json:"detect,omitempty"`
}

// DetectRef defers value resolution to an external detect provider, e.g.
// token decimals lookup or address-kind classification.
type DetectRef struct {
	Kind       string     `json:"kind"`
	Provider   string     `json:"provider,omitempty"`
	Chain      string     `json:"chain,omitempty"`
	Candidates []ValueRef `json:"candidates,omitempty"`
}

// Lit constructs a literal ValueRef.
func Lit(v interface{}) ValueRef { return ValueRef{Tag: ValueRefLit, Lit: v} }

// Ref constructs a path ValueRef.
func Ref(path string) ValueRef { return ValueRef{Tag: ValueRefRef, Path: path} }

// CELExpr constructs a CEL-expression ValueRef.
func CELExpr(expr string) ValueRef { return ValueRef{Tag: ValueRefCEL, CEL: expr} }
