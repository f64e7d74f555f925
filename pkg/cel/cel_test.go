package cel

import (
	"strings"
	"testing"
)

func mustEval(t *testing.T, expr string, env map[string]interface{}) interface{} {
	t.Helper()
	v, err := Eval(expr, env)
	if err != nil {
		t.Fatalf("Eval(%q) error: %v", expr, err)
	}
	return v
}

func TestEval_Arithmetic(t *testing.T) {
	v := mustEval(t, "1 + 2 * 3", nil)
	if v != "7" {
		t.Fatalf("got %v", v)
	}
}

func TestEval_DecimalArithmeticExact(t *testing.T) {
	v := mustEval(t, "1 / 4", nil)
	if v != "0.25" {
		t.Fatalf("got %v", v)
	}
}

func TestEval_NonTerminatingDivisionFails(t *testing.T) {
	_, err := Eval("1 / 3", nil)
	if err == nil {
		t.Fatal("expected error for non-terminating division")
	}
}

func TestEval_Comparison(t *testing.T) {
	cases := map[string]interface{}{
		"1 < 2":         true,
		"2 <= 2":        true,
		"3 > 2":         true,
		"2 >= 3":        false,
		"2 == 2":        true,
		"2 != 3":        true,
		"\"a\" == \"a\"": true,
	}
	for expr, want := range cases {
		got := mustEval(t, expr, nil)
		if got != want {
			t.Errorf("Eval(%q) = %v, want %v", expr, got, want)
		}
	}
}

func TestEval_ShortCircuitAnd(t *testing.T) {
	// The right side references a path that doesn't exist; if `&&`
	// short-circuits on a false left operand, it must never be evaluated.
	v := mustEval(t, "false && missing.path", nil)
	if v != false {
		t.Fatalf("got %v", v)
	}
}

func TestEval_ShortCircuitOr(t *testing.T) {
	v := mustEval(t, "true || missing.path", nil)
	if v != true {
		t.Fatalf("got %v", v)
	}
}

func TestEval_NotAndUnaryMinus(t *testing.T) {
	if v := mustEval(t, "!true", nil); v != false {
		t.Fatalf("got %v", v)
	}
	if v := mustEval(t, "-5 + 2", nil); v != "-3" {
		t.Fatalf("got %v", v)
	}
}

func TestEval_PathLookup(t *testing.T) {
	env := map[string]interface{}{
		"inputs": map[string]interface{}{"amount": "10.5"},
	}
	v := mustEval(t, "inputs.amount", env)
	if v != "10.5" {
		t.Fatalf("got %v", v)
	}
}

func TestEval_PathMissing(t *testing.T) {
	_, err := Eval("inputs.amount", nil)
	if err == nil {
		t.Fatal("expected error for missing path")
	}
}

func TestEval_ToAtomicToHuman(t *testing.T) {
	v := mustEval(t, "to_atomic(1.5, 18)", nil)
	if v != "1500000000000000000" {
		t.Fatalf("got %v", v)
	}
	v2 := mustEval(t, "to_human(1500000000000000000, 18)", nil)
	if v2 != "1.5" {
		t.Fatalf("got %v", v2)
	}
}

func TestEval_ToAtomicTruncationFails(t *testing.T) {
	_, err := Eval("to_atomic(1.123456789, 2)", nil)
	if err == nil {
		t.Fatal("expected truncation error")
	}
}

func TestEval_MinMaxAbs(t *testing.T) {
	if v := mustEval(t, "min(3, 1, 2)", nil); v != "1" {
		t.Fatalf("got %v", v)
	}
	if v := mustEval(t, "max(3, 1, 2)", nil); v != "3" {
		t.Fatalf("got %v", v)
	}
	if v := mustEval(t, "abs(-4.5)", nil); v != "4.5" {
		t.Fatalf("got %v", v)
	}
}

func TestEval_StringConcat(t *testing.T) {
	v := mustEval(t, "\"amount=\" + 5", nil)
	if v != "amount=5" {
		t.Fatalf("got %v", v)
	}
}

func TestEval_SyntaxErrorWraps(t *testing.T) {
	_, err := Eval("1 +", nil)
	if err == nil || !strings.Contains(err.Error(), "1 +") {
		t.Fatalf("expected wrapped syntax error, got %v", err)
	}
}

func TestCompileCached_ReusesAST(t *testing.T) {
	expr := "1 + 1 == 2"
	if _, err := Eval(expr, nil); err != nil {
		t.Fatal(err)
	}
	if _, ok := defaultCache.get(expr); !ok {
		t.Fatal("expected expression to be cached after first Eval")
	}
}

func TestEval_StringBuiltins(t *testing.T) {
	if v := mustEval(t, `size("hello")`, nil); v != "5" {
		t.Fatalf("got %v", v)
	}
	if v := mustEval(t, `"hello world".contains("world")`, nil); v != true {
		t.Fatalf("got %v", v)
	}
	if v := mustEval(t, `startsWith("hello", "he")`, nil); v != true {
		t.Fatalf("got %v", v)
	}
	if v := mustEval(t, `endsWith("hello", "lo")`, nil); v != true {
		t.Fatalf("got %v", v)
	}
	if v := mustEval(t, `matches("abc123", "^[a-z]+[0-9]+$")`, nil); v != true {
		t.Fatalf("got %v", v)
	}
	if v := mustEval(t, `lower("HELLO")`, nil); v != "hello" {
		t.Fatalf("got %v", v)
	}
	if v := mustEval(t, `upper("hello")`, nil); v != "HELLO" {
		t.Fatalf("got %v", v)
	}
	if v := mustEval(t, `trim("  hello  ")`, nil); v != "hello" {
		t.Fatalf("got %v", v)
	}
}

func TestEval_ReceiverPrependCall(t *testing.T) {
	env := map[string]interface{}{
		"inputs": map[string]interface{}{"memo": "refund-123"},
	}
	v := mustEval(t, `inputs.memo.startsWith("refund")`, env)
	if v != true {
		t.Fatalf("got %v", v)
	}
}

func TestEval_Coercions(t *testing.T) {
	if v := mustEval(t, `int(3.9)`, nil); v != "3" {
		t.Fatalf("got %v", v)
	}
	if v := mustEval(t, `int(-3.9)`, nil); v != "-3" {
		t.Fatalf("got %v", v)
	}
	if v := mustEval(t, `uint(-7)`, nil); v != "7" {
		t.Fatalf("got %v", v)
	}
	if v := mustEval(t, `double("1.5")`, nil); v != "1.5" {
		t.Fatalf("got %v", v)
	}
	if v := mustEval(t, `string(5)`, nil); v != "5" {
		t.Fatalf("got %v", v)
	}
	if v := mustEval(t, `bool("true")`, nil); v != true {
		t.Fatalf("got %v", v)
	}
	if v := mustEval(t, `type(5)`, nil); v != "int" {
		t.Fatalf("got %v", v)
	}
	if v := mustEval(t, `type(1.5)`, nil); v != "decimal" {
		t.Fatalf("got %v", v)
	}
	if v := mustEval(t, `type("x")`, nil); v != "string" {
		t.Fatalf("got %v", v)
	}
	if v := mustEval(t, `type(null)`, nil); v != "null" {
		t.Fatalf("got %v", v)
	}
	if _, err := Eval(`int("1e10")`, nil); err == nil {
		t.Fatal("expected error for exponent notation")
	}
}

func TestEval_FloorCeilRound(t *testing.T) {
	if v := mustEval(t, "floor(1.9)", nil); v != "1" {
		t.Fatalf("got %v", v)
	}
	if v := mustEval(t, "floor(-1.1)", nil); v != "-2" {
		t.Fatalf("got %v", v)
	}
	if v := mustEval(t, "ceil(1.1)", nil); v != "2" {
		t.Fatalf("got %v", v)
	}
	if v := mustEval(t, "round(1.5)", nil); v != "2" {
		t.Fatalf("got %v", v)
	}
	if v := mustEval(t, "round(1.4)", nil); v != "1" {
		t.Fatalf("got %v", v)
	}
}

func TestEval_PowAndMulDiv(t *testing.T) {
	if v := mustEval(t, "pow(2, 10)", nil); v != "1024" {
		t.Fatalf("got %v", v)
	}
	if _, err := Eval("pow(2, 10001)", nil); err == nil {
		t.Fatal("expected error for exponent out of range")
	}
	if v := mustEval(t, "mul_div(5, 3, 2)", nil); v != "7" {
		t.Fatalf("got %v", v)
	}
	if _, err := Eval("mul_div(5, 3, 0)", nil); err == nil {
		t.Fatal("expected error for zero denom")
	}
}

func TestEval_NullTernaryInListMap(t *testing.T) {
	if v := mustEval(t, "null == null", nil); v != true {
		t.Fatalf("got %v", v)
	}
	if v := mustEval(t, "1 > 0 ? \"yes\" : \"no\"", nil); v != "yes" {
		t.Fatalf("got %v", v)
	}
	if v := mustEval(t, `2 in [1, 2, 3]`, nil); v != true {
		t.Fatalf("got %v", v)
	}
	if v := mustEval(t, `4 in [1, 2, 3]`, nil); v != false {
		t.Fatalf("got %v", v)
	}
	if v := mustEval(t, `[10, 20, 30][1]`, nil); v != "20" {
		t.Fatalf("got %v", v)
	}
	if v := mustEval(t, `{"a": 1}["a"]`, nil); v != "1" {
		t.Fatalf("got %v", v)
	}
	if v := mustEval(t, `{"a": 1}["missing"]`, nil); v != nil {
		t.Fatalf("got %v, want null for missing map key", v)
	}
}

func TestEvaluator_ImplementsCELEvaluatorShape(t *testing.T) {
	var e Evaluator
	v, err := e.Eval("1 + 1", nil)
	if err != nil || v != "2" {
		t.Fatalf("unexpected result: %v, %v", v, err)
	}
}
