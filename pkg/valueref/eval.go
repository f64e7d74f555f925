// Package valueref evaluates models.ValueRef trees against a runtime
// snapshot, producing plain Go values (or patches, further ValueRefs) for
// the compiler and policy gate to consume.
package valueref

import (
	"context"
	"fmt"
	"sort"

	"github.com/smilemakc/chainflow/pkg/models"
	"github.com/smilemakc/chainflow/pkg/runtime"
)

// detectKindChooseOne is the only detect kind the synchronous path
// resolves on its own: pick the first candidate, no provider round trip.
const detectKindChooseOne = "choose_one"

// CELEvaluator evaluates a CEL expression string against a runtime
// snapshot. pkg/cel implements this; defined here to avoid a dependency
// cycle (pkg/cel already depends on pkg/models/pkg/bigmath, not on
// pkg/valueref).
type CELEvaluator interface {
	Eval(expr string, snapshot map[string]interface{}) (interface{}, error)
}

// DetectResolver resolves a `detect` ValueRef, e.g. a token-decimals or
// address-kind lookup against a chain RPC or provider registry. Defined
// abstractly here; concrete detect providers are external collaborators
// per spec.md §6 and are supplied by the embedding application.
type DetectResolver interface {
	Resolve(ctx context.Context, detect *models.DetectRef, snapshot map[string]interface{}) (interface{}, error)
}

// Evaluator evaluates models.ValueRef trees. Evaluation is pure and
// synchronous except for `detect` refs, which may call out to an
// external resolver.
type Evaluator struct {
	CEL     CELEvaluator
	Detect  DetectResolver
}

// New creates an Evaluator. detect may be nil if the plan never uses
// detect ValueRefs; cel may be nil if it never uses cel ValueRefs.
func New(cel CELEvaluator, detect DetectResolver) *Evaluator {
	return &Evaluator{CEL: cel, Detect: detect}
}

// Eval resolves a ValueRef against the given runtime tree's current
// snapshot. ctx is only consulted for `detect` refs.
func (e *Evaluator) Eval(ctx context.Context, ref models.ValueRef, tree *runtime.Tree) (interface{}, error) {
	return e.evalAgainst(ctx, ref, tree.Snapshot())
}

// EvalSnapshot resolves a ValueRef against an already-captured snapshot,
// avoiding a redundant deep clone when evaluating many refs against the
// same point in time (e.g. readiness resolution for one node's params).
func (e *Evaluator) EvalSnapshot(ctx context.Context, ref models.ValueRef, snapshot map[string]interface{}) (interface{}, error) {
	return e.evalAgainst(ctx, ref, snapshot)
}

func (e *Evaluator) evalAgainst(ctx context.Context, ref models.ValueRef, snapshot map[string]interface{}) (interface{}, error) {
	switch ref.Tag {
	case models.ValueRefLit:
		return ref.Lit, nil

	case models.ValueRefRef:
		v, ok := lookupPath(snapshot, ref.Path)
		if !ok {
			return nil, &models.ValueRefError{Path: ref.Path, Err: models.ErrValueRefMissing}
		}
		return v, nil

	case models.ValueRefObject:
		out := make(map[string]interface{}, len(ref.Object))
		for _, key := range sortedObjectKeys(ref.Object) {
			v, err := e.evalAgainst(ctx, ref.Object[key], snapshot)
			if err != nil {
				return nil, err
			}
			out[key] = v
		}
		return out, nil

	case models.ValueRefArray:
		out := make([]interface{}, len(ref.Array))
		for i, child := range ref.Array {
			v, err := e.evalAgainst(ctx, child, snapshot)
			if err != nil {
				return nil, err
			}
			out[i] = v
		}
		return out, nil

	case models.ValueRefCEL:
		if e.CEL == nil {
			return nil, &models.CELError{Expr: ref.CEL, Err: fmt.Errorf("no CEL evaluator configured")}
		}
		return e.CEL.Eval(ref.CEL, snapshot)

	case models.ValueRefDetect:
		if ref.Detect != nil && ref.Detect.Kind == detectKindChooseOne {
			if len(ref.Detect.Candidates) == 0 {
				return nil, fmt.Errorf("valueref: detect choose_one requires at least one candidate")
			}
			return e.evalAgainst(ctx, ref.Detect.Candidates[0], snapshot)
		}
		if e.Detect == nil {
			return nil, fmt.Errorf("valueref: detect ref requires a DetectResolver: %+v", ref.Detect)
		}
		return e.Detect.Resolve(ctx, ref.Detect, snapshot)

	default:
		return nil, fmt.Errorf("valueref: unknown tag %q", ref.Tag)
	}
}

// MissingPaths evaluates a ValueRef and, instead of failing fast on the
// first missing ref (as Eval/EvalSnapshot do), collects every missing
// `ref` path found anywhere in the tree. Used by the readiness solver to
// report all blocking paths at once rather than one at a time.
func (e *Evaluator) MissingPaths(ref models.ValueRef, snapshot map[string]interface{}) []string {
	var missing []string
	collectMissing(ref, snapshot, &missing)
	return missing
}

func collectMissing(ref models.ValueRef, snapshot map[string]interface{}, missing *[]string) {
	switch ref.Tag {
	case models.ValueRefRef:
		if _, ok := lookupPath(snapshot, ref.Path); !ok {
			*missing = append(*missing, ref.Path)
		}
	case models.ValueRefObject:
		for _, key := range sortedObjectKeys(ref.Object) {
			collectMissing(ref.Object[key], snapshot, missing)
		}
	case models.ValueRefArray:
		for _, child := range ref.Array {
			collectMissing(child, snapshot, missing)
		}
	case models.ValueRefDetect:
		if ref.Detect != nil {
			for _, c := range ref.Detect.Candidates {
				collectMissing(c, snapshot, missing)
			}
		}
	}
}

// sortedObjectKeys returns obj's keys in sorted order so object-tag
// evaluation and missing-path collection visit entries deterministically,
// matching pkg/codec's canonical JSON key ordering.
func sortedObjectKeys(obj map[string]models.ValueRef) []string {
	keys := make([]string, 0, len(obj))
	for k := range obj {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func lookupPath(snapshot map[string]interface{}, path string) (interface{}, bool) {
	t := runtime.FromMap(snapshot)
	return t.Get(path)
}
