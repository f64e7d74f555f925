package cel

import (
	"fmt"
	"math/big"
	"regexp"
	"strings"

	"github.com/smilemakc/chainflow/pkg/bigmath"
)

// builtin is a CEL function implementation operating on already-evaluated
// argument values.
type builtin func(args []interface{}) (interface{}, error)

var builtins = map[string]builtin{
	"to_atomic":   biToAtomic,
	"to_human":    biToHuman,
	"min":         biMin,
	"max":         biMax,
	"abs":         biAbs,
	"size":        biSize,
	"contains":    biContains,
	"startsWith":  biStartsWith,
	"endsWith":    biEndsWith,
	"matches":     biMatches,
	"lower":       biLower,
	"upper":       biUpper,
	"trim":        biTrim,
	"int":         biInt,
	"uint":        biUint,
	"double":      biDouble,
	"string":      biString,
	"bool":        biBool,
	"type":        biType,
	"floor":       biFloor,
	"ceil":        biCeil,
	"round":       biRound,
	"pow":         biPow,
	"mul_div":     biMulDiv,
}

func arity(name string, args []interface{}, n int) error {
	if len(args) != n {
		return fmt.Errorf("%w: %s() expects %d argument(s), got %d", errTypeMismatch, name, n, len(args))
	}
	return nil
}

func decimalsArg(v interface{}) (uint, error) {
	d, err := toDecimal(v)
	if err != nil {
		return 0, err
	}
	if d.Scale != 0 || d.Sign() < 0 {
		return 0, fmt.Errorf("%w: decimals argument must be a non-negative integer", errTypeMismatch)
	}
	return uint(d.Unscaled.Int64()), nil
}

// biToAtomic implements to_atomic(amount, decimals): human amount -> base
// units, failing if the amount has more fractional digits than decimals
// allows.
func biToAtomic(args []interface{}) (interface{}, error) {
	if err := arity("to_atomic", args, 2); err != nil {
		return nil, err
	}
	amount, err := toDecimal(args[0])
	if err != nil {
		return nil, err
	}
	decimals, err := decimalsArg(args[1])
	if err != nil {
		return nil, err
	}
	atomic, err := bigmath.ToAtomic(amount, decimals)
	if err != nil {
		return nil, err
	}
	return bigmath.FromInt(atomic), nil
}

// biToHuman implements to_human(atomic, decimals): base units -> human
// decimal amount.
func biToHuman(args []interface{}) (interface{}, error) {
	if err := arity("to_human", args, 2); err != nil {
		return nil, err
	}
	atomic, err := toDecimal(args[0])
	if err != nil {
		return nil, err
	}
	if atomic.Scale != 0 {
		return nil, fmt.Errorf("%w: to_human() atomic argument must be an integer", errTypeMismatch)
	}
	decimals, err := decimalsArg(args[1])
	if err != nil {
		return nil, err
	}
	return bigmath.ToHuman(atomic.Unscaled, decimals), nil
}

func biMin(args []interface{}) (interface{}, error) {
	if len(args) == 0 {
		return nil, fmt.Errorf("%w: min() expects at least one argument", errTypeMismatch)
	}
	best, err := toDecimal(args[0])
	if err != nil {
		return nil, err
	}
	for _, a := range args[1:] {
		d, err := toDecimal(a)
		if err != nil {
			return nil, err
		}
		if bigmath.Cmp(d, best) < 0 {
			best = d
		}
	}
	return best, nil
}

func biMax(args []interface{}) (interface{}, error) {
	if len(args) == 0 {
		return nil, fmt.Errorf("%w: max() expects at least one argument", errTypeMismatch)
	}
	best, err := toDecimal(args[0])
	if err != nil {
		return nil, err
	}
	for _, a := range args[1:] {
		d, err := toDecimal(a)
		if err != nil {
			return nil, err
		}
		if bigmath.Cmp(d, best) > 0 {
			best = d
		}
	}
	return best, nil
}

func biAbs(args []interface{}) (interface{}, error) {
	if err := arity("abs", args, 1); err != nil {
		return nil, err
	}
	d, err := toDecimal(args[0])
	if err != nil {
		return nil, err
	}
	if d.Sign() < 0 {
		return bigmath.Sub(bigmath.Zero(), d), nil
	}
	return d, nil
}

// biSize implements size(x) for strings, lists, and maps.
func biSize(args []interface{}) (interface{}, error) {
	if err := arity("size", args, 1); err != nil {
		return nil, err
	}
	switch v := args[0].(type) {
	case string:
		return bigmath.FromInt64(int64(len([]rune(v)))), nil
	case []interface{}:
		return bigmath.FromInt64(int64(len(v))), nil
	case map[string]interface{}:
		return bigmath.FromInt64(int64(len(v))), nil
	default:
		return nil, fmt.Errorf("%w: size() expects a string, list, or map", errTypeMismatch)
	}
}

func biContains(args []interface{}) (interface{}, error) {
	if err := arity("contains", args, 2); err != nil {
		return nil, err
	}
	s, sub, err := twoStrings("contains", args)
	if err != nil {
		return nil, err
	}
	return strings.Contains(s, sub), nil
}

func biStartsWith(args []interface{}) (interface{}, error) {
	if err := arity("startsWith", args, 2); err != nil {
		return nil, err
	}
	s, prefix, err := twoStrings("startsWith", args)
	if err != nil {
		return nil, err
	}
	return strings.HasPrefix(s, prefix), nil
}

func biEndsWith(args []interface{}) (interface{}, error) {
	if err := arity("endsWith", args, 2); err != nil {
		return nil, err
	}
	s, suffix, err := twoStrings("endsWith", args)
	if err != nil {
		return nil, err
	}
	return strings.HasSuffix(s, suffix), nil
}

func biMatches(args []interface{}) (interface{}, error) {
	if err := arity("matches", args, 2); err != nil {
		return nil, err
	}
	s, pattern, err := twoStrings("matches", args)
	if err != nil {
		return nil, err
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("%w: matches() invalid pattern: %v", errTypeMismatch, err)
	}
	return re.MatchString(s), nil
}

func biLower(args []interface{}) (interface{}, error) {
	s, err := oneString("lower", args)
	if err != nil {
		return nil, err
	}
	return strings.ToLower(s), nil
}

func biUpper(args []interface{}) (interface{}, error) {
	s, err := oneString("upper", args)
	if err != nil {
		return nil, err
	}
	return strings.ToUpper(s), nil
}

func biTrim(args []interface{}) (interface{}, error) {
	s, err := oneString("trim", args)
	if err != nil {
		return nil, err
	}
	return strings.TrimSpace(s), nil
}

func oneString(name string, args []interface{}) (string, error) {
	if err := arity(name, args, 1); err != nil {
		return "", err
	}
	s, ok := args[0].(string)
	if !ok {
		return "", fmt.Errorf("%w: %s() expects a string argument", errTypeMismatch, name)
	}
	return s, nil
}

func twoStrings(name string, args []interface{}) (string, string, error) {
	a, ok := args[0].(string)
	if !ok {
		return "", "", fmt.Errorf("%w: %s() expects string arguments", errTypeMismatch, name)
	}
	b, ok := args[1].(string)
	if !ok {
		return "", "", fmt.Errorf("%w: %s() expects string arguments", errTypeMismatch, name)
	}
	return a, b, nil
}

// biInt implements int(x): coerce a numeric, numeric-string, or boolean
// value to an integer Decimal (scale 0), truncating any fractional part
// toward zero. A string with exponent notation is rejected outright.
func biInt(args []interface{}) (interface{}, error) {
	if err := arity("int", args, 1); err != nil {
		return nil, err
	}
	if s, ok := args[0].(string); ok && strings.ContainsAny(s, "eE") {
		return nil, fmt.Errorf("%w: int() does not accept exponent notation: %q", errTypeMismatch, s)
	}
	d, err := toDecimal(args[0])
	if err != nil {
		return nil, err
	}
	return bigmath.FromInt(truncateToInt(d)), nil
}

// biUint implements uint(x): like int(x), but takes the absolute value so
// the result is always non-negative.
func biUint(args []interface{}) (interface{}, error) {
	if err := arity("uint", args, 1); err != nil {
		return nil, err
	}
	if s, ok := args[0].(string); ok && strings.ContainsAny(s, "eE") {
		return nil, fmt.Errorf("%w: uint() does not accept exponent notation: %q", errTypeMismatch, s)
	}
	d, err := toDecimal(args[0])
	if err != nil {
		return nil, err
	}
	i := truncateToInt(d)
	return bigmath.FromInt(new(big.Int).Abs(i)), nil
}

func biDouble(args []interface{}) (interface{}, error) {
	if err := arity("double", args, 1); err != nil {
		return nil, err
	}
	return toDecimal(args[0])
}

func biString(args []interface{}) (interface{}, error) {
	if err := arity("string", args, 1); err != nil {
		return nil, err
	}
	if args[0] == nil {
		return "null", nil
	}
	return toStringValue(args[0])
}

func biBool(args []interface{}) (interface{}, error) {
	if err := arity("bool", args, 1); err != nil {
		return nil, err
	}
	switch v := args[0].(type) {
	case bool:
		return v, nil
	case string:
		switch v {
		case "true":
			return true, nil
		case "false":
			return false, nil
		}
	}
	return nil, fmt.Errorf("%w: bool() expects a boolean or \"true\"/\"false\" string", errTypeMismatch)
}

// biType implements type(x), naming the dynamic value type. Because this
// evaluator represents every integer and decimal as a bigmath.Decimal, a
// Decimal with scale 0 reports as "int" and anything else as "decimal".
func biType(args []interface{}) (interface{}, error) {
	if err := arity("type", args, 1); err != nil {
		return nil, err
	}
	switch v := args[0].(type) {
	case nil:
		return "null", nil
	case bool:
		return "bool", nil
	case string:
		return "string", nil
	case []interface{}:
		return "list", nil
	case map[string]interface{}:
		return "map", nil
	case bigmath.Decimal:
		if v.Scale == 0 {
			return "int", nil
		}
		return "decimal", nil
	default:
		return nil, fmt.Errorf("%w: type() unsupported value %T", errTypeMismatch, args[0])
	}
}

func biFloor(args []interface{}) (interface{}, error) {
	d, err := oneDecimal("floor", args)
	if err != nil {
		return nil, err
	}
	return bigmath.Floor(d, 0), nil
}

func biCeil(args []interface{}) (interface{}, error) {
	d, err := oneDecimal("ceil", args)
	if err != nil {
		return nil, err
	}
	return bigmath.Ceil(d, 0), nil
}

func biRound(args []interface{}) (interface{}, error) {
	d, err := oneDecimal("round", args)
	if err != nil {
		return nil, err
	}
	return bigmath.Round(d, 0), nil
}

func oneDecimal(name string, args []interface{}) (bigmath.Decimal, error) {
	if err := arity(name, args, 1); err != nil {
		return bigmath.Decimal{}, err
	}
	return toDecimal(args[0])
}

var maxPowExponent = big.NewInt(10000)

// biPow implements pow(base, exp): integer exponentiation only, with exp
// restricted to [0, 10000] to bound the result size.
func biPow(args []interface{}) (interface{}, error) {
	if err := arity("pow", args, 2); err != nil {
		return nil, err
	}
	base, err := toDecimal(args[0])
	if err != nil {
		return nil, err
	}
	if base.Scale != 0 {
		return nil, fmt.Errorf("%w: pow() base must be an integer", errTypeMismatch)
	}
	exp, err := toDecimal(args[1])
	if err != nil {
		return nil, err
	}
	if exp.Scale != 0 || exp.Sign() < 0 {
		return nil, fmt.Errorf("%w: pow() exponent must be a non-negative integer", errTypeMismatch)
	}
	if exp.Unscaled.Cmp(maxPowExponent) > 0 {
		return nil, fmt.Errorf("%w: pow() exponent exceeds %s", errTypeMismatch, maxPowExponent)
	}
	result := new(big.Int).Exp(base.Unscaled, exp.Unscaled, nil)
	return bigmath.FromInt(result), nil
}

// biMulDiv implements mul_div(a, b, denom): (a*b)/denom for non-negative
// integers, truncating toward zero.
func biMulDiv(args []interface{}) (interface{}, error) {
	if err := arity("mul_div", args, 3); err != nil {
		return nil, err
	}
	a, err := nonNegativeIntArg("mul_div", args[0])
	if err != nil {
		return nil, err
	}
	b, err := nonNegativeIntArg("mul_div", args[1])
	if err != nil {
		return nil, err
	}
	denom, err := nonNegativeIntArg("mul_div", args[2])
	if err != nil {
		return nil, err
	}
	if denom.Sign() == 0 {
		return nil, fmt.Errorf("%w: mul_div() denom must not be zero", errTypeMismatch)
	}
	product := new(big.Int).Mul(a, b)
	return bigmath.FromInt(new(big.Int).Quo(product, denom)), nil
}

func nonNegativeIntArg(name string, v interface{}) (*big.Int, error) {
	d, err := toDecimal(v)
	if err != nil {
		return nil, err
	}
	if d.Scale != 0 || d.Sign() < 0 {
		return nil, fmt.Errorf("%w: %s() expects non-negative integer arguments", errTypeMismatch, name)
	}
	return d.Unscaled, nil
}

// truncateToInt discards d's fractional digits toward zero.
func truncateToInt(d bigmath.Decimal) *big.Int {
	if d.Scale == 0 {
		return new(big.Int).Set(d.Unscaled)
	}
	divisor := new(big.Int).Exp(big.NewInt(10), new(big.Int).SetUint64(uint64(d.Scale)), nil)
	return new(big.Int).Quo(d.Unscaled, divisor)
}
