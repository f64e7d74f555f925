package cel

import (
	"fmt"
	"strings"

	"github.com/smilemakc/chainflow/pkg/bigmath"
	"github.com/smilemakc/chainflow/pkg/models"
	"github.com/smilemakc/chainflow/pkg/runtime"
)

// Evaluator adapts the package-level Eval function to pkg/valueref's
// CELEvaluator interface, so an Evaluator{} can be passed directly to
// valueref.New.
type Evaluator struct{}

// Eval implements valueref.CELEvaluator.
func (Evaluator) Eval(expr string, snapshot map[string]interface{}) (interface{}, error) {
	return Eval(expr, snapshot)
}

// Eval compiles and evaluates expr against snapshot in a single call. The
// compiled AST for each distinct expr is cached process-wide (see
// cache.go), so repeated evaluation of the same condition string across
// many plan nodes or workflow runs does not re-parse it each time.
func Eval(expr string, snapshot map[string]interface{}) (interface{}, error) {
	node, err := compileCached(expr)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", models.ErrCELSyntax, expr, err)
	}
	v, err := evalNode(node, snapshot)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", models.ErrCELEval, expr, err)
	}
	return decimalToPlain(v), nil
}

// decimalToPlain renders a bigmath.Decimal result as its canonical string
// form so callers (ValueRef resolution, runtime tree writes) receive the
// same plain-string representation used everywhere else for amounts.
func decimalToPlain(v interface{}) interface{} {
	if d, ok := v.(bigmath.Decimal); ok {
		return d.String()
	}
	return v
}

func evalNode(n Node, env map[string]interface{}) (interface{}, error) {
	switch node := n.(type) {
	case LitNode:
		return node.Value, nil

	case NullNode:
		return nil, nil

	case PathNode:
		v, ok := lookupPath(env, node.Path)
		if !ok {
			return nil, &models.ValueRefError{Path: node.Path, Err: models.ErrValueRefMissing}
		}
		return v, nil

	case MemberNode:
		x, err := evalNode(node.X, env)
		if err != nil {
			return nil, err
		}
		return memberAccess(x, node.Prop)

	case IndexNode:
		x, err := evalNode(node.X, env)
		if err != nil {
			return nil, err
		}
		idx, err := evalNode(node.Index, env)
		if err != nil {
			return nil, err
		}
		return indexAccess(x, idx)

	case UnaryNode:
		return evalUnary(node, env)

	case BinaryNode:
		return evalBinary(node, env)

	case InNode:
		x, err := evalNode(node.X, env)
		if err != nil {
			return nil, err
		}
		y, err := evalNode(node.Y, env)
		if err != nil {
			return nil, err
		}
		return inValue(x, y)

	case TernaryNode:
		c, err := evalNode(node.Cond, env)
		if err != nil {
			return nil, err
		}
		b, err := toBool(c)
		if err != nil {
			return nil, err
		}
		if b {
			return evalNode(node.X, env)
		}
		return evalNode(node.Y, env)

	case ListNode:
		out := make([]interface{}, len(node.Elems))
		for i, e := range node.Elems {
			v, err := evalNode(e, env)
			if err != nil {
				return nil, err
			}
			out[i] = v
		}
		return out, nil

	case MapNode:
		out := make(map[string]interface{}, len(node.Entries))
		for _, entry := range node.Entries {
			k, err := evalNode(entry.Key, env)
			if err != nil {
				return nil, err
			}
			key, err := toStringValue(k)
			if err != nil {
				return nil, err
			}
			v, err := evalNode(entry.Value, env)
			if err != nil {
				return nil, err
			}
			out[key] = v
		}
		return out, nil

	case CallNode:
		return evalCall(node, env)

	default:
		return nil, fmt.Errorf("unknown AST node %T", n)
	}
}

// memberAccess implements generic `.prop` access on an already-evaluated
// value: null and non-object receivers raise errors, a missing key on a
// map evaluates to null.
func memberAccess(x interface{}, prop string) (interface{}, error) {
	if x == nil {
		return nil, fmt.Errorf("%w: member access on null (.%s)", errTypeMismatch, prop)
	}
	m, ok := x.(map[string]interface{})
	if !ok {
		return nil, fmt.Errorf("%w: member access on non-object value (.%s)", errTypeMismatch, prop)
	}
	v, ok := m[prop]
	if !ok {
		return nil, nil
	}
	return v, nil
}

// indexAccess implements `x[i]` for lists, strings, and maps. Out-of-range
// list/string indices evaluate to null, matching missing-key map lookups.
func indexAccess(x, idx interface{}) (interface{}, error) {
	switch container := x.(type) {
	case []interface{}:
		i, err := indexInt(idx)
		if err != nil {
			return nil, err
		}
		if i < 0 || i >= len(container) {
			return nil, nil
		}
		return container[i], nil
	case string:
		i, err := indexInt(idx)
		if err != nil {
			return nil, err
		}
		runes := []rune(container)
		if i < 0 || i >= len(runes) {
			return nil, nil
		}
		return string(runes[i]), nil
	case map[string]interface{}:
		key, err := toStringValue(idx)
		if err != nil {
			return nil, err
		}
		v, ok := container[key]
		if !ok {
			return nil, nil
		}
		return v, nil
	default:
		return nil, fmt.Errorf("%w: cannot index %T", errTypeMismatch, x)
	}
}

func indexInt(v interface{}) (int, error) {
	d, err := toDecimal(v)
	if err != nil {
		return 0, err
	}
	if d.Scale != 0 || d.Sign() < 0 {
		return 0, fmt.Errorf("%w: index must be a non-negative integer", errTypeMismatch)
	}
	return int(d.Unscaled.Int64()), nil
}

// inValue implements the `x in y` membership operator: list/string
// containment or map key presence.
func inValue(needle, haystack interface{}) (interface{}, error) {
	switch h := haystack.(type) {
	case []interface{}:
		for _, item := range h {
			if equalValues(needle, item) {
				return true, nil
			}
		}
		return false, nil
	case map[string]interface{}:
		key, err := toStringValue(needle)
		if err != nil {
			return false, err
		}
		_, ok := h[key]
		return ok, nil
	case string:
		sub, err := toStringValue(needle)
		if err != nil {
			return false, err
		}
		return strings.Contains(h, sub), nil
	default:
		return false, fmt.Errorf("%w: 'in' requires a list, map, or string right operand", errTypeMismatch)
	}
}

func evalUnary(node UnaryNode, env map[string]interface{}) (interface{}, error) {
	switch node.Op {
	case TokNot:
		x, err := evalNode(node.X, env)
		if err != nil {
			return nil, err
		}
		b, err := toBool(x)
		if err != nil {
			return nil, err
		}
		return !b, nil

	case TokMinus:
		x, err := evalNode(node.X, env)
		if err != nil {
			return nil, err
		}
		d, err := toDecimal(x)
		if err != nil {
			return nil, err
		}
		return bigmath.Sub(bigmath.Zero(), d), nil

	default:
		return nil, fmt.Errorf("unsupported unary operator %v", node.Op)
	}
}

func evalBinary(node BinaryNode, env map[string]interface{}) (interface{}, error) {
	// Logical operators short-circuit: the right operand is only
	// evaluated when necessary.
	switch node.Op {
	case TokAnd:
		x, err := evalNode(node.X, env)
		if err != nil {
			return nil, err
		}
		bx, err := toBool(x)
		if err != nil {
			return nil, err
		}
		if !bx {
			return false, nil
		}
		y, err := evalNode(node.Y, env)
		if err != nil {
			return nil, err
		}
		return toBool(y)

	case TokOr:
		x, err := evalNode(node.X, env)
		if err != nil {
			return nil, err
		}
		bx, err := toBool(x)
		if err != nil {
			return nil, err
		}
		if bx {
			return true, nil
		}
		y, err := evalNode(node.Y, env)
		if err != nil {
			return nil, err
		}
		return toBool(y)
	}

	x, err := evalNode(node.X, env)
	if err != nil {
		return nil, err
	}
	y, err := evalNode(node.Y, env)
	if err != nil {
		return nil, err
	}

	switch node.Op {
	case TokPlus:
		// '+' also concatenates strings, matching how CEL expressions are
		// used in confirmation-summary templating.
		if sx, ok := x.(string); ok {
			sy, err := toStringValue(y)
			if err != nil {
				return nil, err
			}
			return sx + sy, nil
		}
		dx, err := toDecimal(x)
		if err != nil {
			return nil, err
		}
		dy, err := toDecimal(y)
		if err != nil {
			return nil, err
		}
		return bigmath.Add(dx, dy), nil

	case TokMinus, TokStar, TokSlash:
		dx, err := toDecimal(x)
		if err != nil {
			return nil, err
		}
		dy, err := toDecimal(y)
		if err != nil {
			return nil, err
		}
		switch node.Op {
		case TokMinus:
			return bigmath.Sub(dx, dy), nil
		case TokStar:
			return bigmath.Mul(dx, dy), nil
		default:
			return bigmath.Div(dx, dy)
		}

	case TokEq:
		return equalValues(x, y), nil
	case TokNeq:
		return !equalValues(x, y), nil

	case TokLt, TokLte, TokGt, TokGte:
		dx, err := toDecimal(x)
		if err != nil {
			return nil, err
		}
		dy, err := toDecimal(y)
		if err != nil {
			return nil, err
		}
		cmp := bigmath.Cmp(dx, dy)
		switch node.Op {
		case TokLt:
			return cmp < 0, nil
		case TokLte:
			return cmp <= 0, nil
		case TokGt:
			return cmp > 0, nil
		default:
			return cmp >= 0, nil
		}

	default:
		return nil, fmt.Errorf("unsupported binary operator %v", node.Op)
	}
}

// evalCall evaluates a function call, rewriting a receiver-prepend call
// (recv.fn(args)) into fn(recv, args) by evaluating the receiver first and
// prepending it to the evaluated argument list.
func evalCall(node CallNode, env map[string]interface{}) (interface{}, error) {
	fn, ok := builtins[node.Name]
	if !ok {
		return nil, fmt.Errorf("unknown function %q", node.Name)
	}
	args := make([]interface{}, 0, len(node.Args)+1)
	if node.Recv != nil {
		recv, err := evalNode(node.Recv, env)
		if err != nil {
			return nil, err
		}
		args = append(args, recv)
	}
	for _, a := range node.Args {
		v, err := evalNode(a, env)
		if err != nil {
			return nil, err
		}
		args = append(args, v)
	}
	return fn(args)
}

func lookupPath(snapshot map[string]interface{}, path string) (interface{}, bool) {
	return runtime.FromMap(snapshot).Get(path)
}
