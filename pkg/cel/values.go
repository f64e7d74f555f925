package cel

import (
	"fmt"

	"github.com/smilemakc/chainflow/pkg/bigmath"
)

// toDecimal coerces an evaluation-time value to a Decimal, reparsing
// strings encountered via path lookups (runtime tree leaves are plain
// JSON-shaped values, so numeric amounts often arrive as strings).
func toDecimal(v interface{}) (bigmath.Decimal, error) {
	switch x := v.(type) {
	case bigmath.Decimal:
		return x, nil
	case string:
		return bigmath.Parse(x)
	case int:
		return bigmath.FromInt64(int64(x)), nil
	case int64:
		return bigmath.FromInt64(x), nil
	default:
		return bigmath.Decimal{}, fmt.Errorf("%w: expected numeric value, got %T", errTypeMismatch, v)
	}
}

// toBool coerces an evaluation-time value to a bool.
func toBool(v interface{}) (bool, error) {
	switch x := v.(type) {
	case bool:
		return x, nil
	default:
		return false, fmt.Errorf("%w: expected boolean value, got %T", errTypeMismatch, v)
	}
}

// toStringValue coerces an evaluation-time value to a string for string
// concatenation / comparison purposes.
func toStringValue(v interface{}) (string, error) {
	switch x := v.(type) {
	case string:
		return x, nil
	case bigmath.Decimal:
		return x.String(), nil
	case bool:
		if x {
			return "true", nil
		}
		return "false", nil
	default:
		return "", fmt.Errorf("%w: cannot convert %T to string", errTypeMismatch, v)
	}
}

// equalValues reports whether a and b compare equal under CEL's value
// semantics: numeric values compare by value regardless of scale,
// everything else compares by Go equality after coercion.
func equalValues(a, b interface{}) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	if da, err := toDecimal(a); err == nil {
		if db, err := toDecimal(b); err == nil {
			return bigmath.Cmp(da, db) == 0
		}
	}
	sa, errA := toStringValue(a)
	sb, errB := toStringValue(b)
	if errA == nil && errB == nil {
		return sa == sb
	}
	return a == b
}
