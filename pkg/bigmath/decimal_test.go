package bigmath

import (
	"errors"
	"math/big"
	"testing"

	"github.com/smilemakc/chainflow/pkg/models"
)

func TestParseAndString(t *testing.T) {
	cases := []string{"0", "1", "-1", "12.034", "0.0001", "-0.5", "100"}
	for _, c := range cases {
		d, err := Parse(c)
		if err != nil {
			t.Fatalf("Parse(%q) failed: %v", c, err)
		}
		got := d.String()
		want, _ := Parse(got)
		if Cmp(d, want) != 0 {
			t.Errorf("round trip mismatch for %q: got %q", c, got)
		}
	}
}

func TestParse_Invalid(t *testing.T) {
	for _, s := range []string{"", "abc", "1.2.3", "1e10", ".", "-"} {
		if _, err := Parse(s); !errors.Is(err, models.ErrInvalidDecimal) {
			t.Errorf("Parse(%q): expected ErrInvalidDecimal, got %v", s, err)
		}
	}
}

func TestAddSubMul(t *testing.T) {
	a, _ := Parse("1.5")
	b, _ := Parse("2.25")

	if got := Add(a, b).String(); got != "3.75" {
		t.Errorf("Add: got %s, want 3.75", got)
	}
	if got := Sub(b, a).String(); got != "0.75" {
		t.Errorf("Sub: got %s, want 0.75", got)
	}
	if got := Mul(a, b).String(); got != "3.375" {
		t.Errorf("Mul: got %s, want 3.375", got)
	}
}

func TestDiv_Terminating(t *testing.T) {
	a, _ := Parse("1")
	b, _ := Parse("4")
	got, err := Div(a, b)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.String() != "0.25" {
		t.Errorf("got %s, want 0.25", got.String())
	}
}

func TestDiv_NonTerminating(t *testing.T) {
	a, _ := Parse("1")
	b, _ := Parse("3")
	_, err := Div(a, b)
	if !errors.Is(err, models.ErrNonTerminatingDiv) {
		t.Fatalf("expected ErrNonTerminatingDiv, got %v", err)
	}
}

func TestDiv_ByZero(t *testing.T) {
	a, _ := Parse("1")
	_, err := Div(a, Zero())
	if !errors.Is(err, models.ErrNonTerminatingDiv) {
		t.Fatalf("expected division-by-zero to be reported as ErrNonTerminatingDiv, got %v", err)
	}
}

func TestRound_HalfAwayFromZero(t *testing.T) {
	cases := []struct {
		in    string
		scale uint
		want  string
	}{
		{"0.125", 2, "0.13"},
		{"0.124", 2, "0.12"},
		{"-0.125", 2, "-0.13"},
		{"1.5", 0, "2"},
		{"-1.5", 0, "-2"},
	}
	for _, c := range cases {
		d, _ := Parse(c.in)
		got := Round(d, c.scale).String()
		if got != c.want {
			t.Errorf("Round(%s, %d): got %s, want %s", c.in, c.scale, got, c.want)
		}
	}
}

func TestFloorCeil(t *testing.T) {
	d, _ := Parse("1.59")
	if got := Floor(d, 0).String(); got != "1" {
		t.Errorf("Floor: got %s, want 1", got)
	}
	if got := Ceil(d, 0).String(); got != "2" {
		t.Errorf("Ceil: got %s, want 2", got)
	}

	neg, _ := Parse("-1.01")
	if got := Floor(neg, 0).String(); got != "-2" {
		t.Errorf("Floor(-1.01): got %s, want -2", got)
	}
}

func TestToAtomicToHuman(t *testing.T) {
	amount, _ := Parse("1.5")
	atomic, err := ToAtomic(amount, 18)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := new(big.Int)
	want.SetString("1500000000000000000", 10)
	if atomic.Cmp(want) != 0 {
		t.Errorf("got %s, want %s", atomic.String(), want.String())
	}

	human := ToHuman(atomic, 18)
	if Cmp(human, amount) != 0 {
		t.Errorf("round trip mismatch: got %s, want %s", human.String(), amount.String())
	}
}

func TestToAtomic_Truncating(t *testing.T) {
	amount, _ := Parse("1.23456789")
	if _, err := ToAtomic(amount, 4); !errors.Is(err, models.ErrTruncatingConversion) {
		t.Fatalf("expected ErrTruncatingConversion, got %v", err)
	}
}
