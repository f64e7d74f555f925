// Package bigmath implements arbitrary-precision integer and decimal
// arithmetic for deterministic on-chain value computation: unbounded
// integers via math/big, and a fixed-point Decimal that fails rather than
// rounds when a division does not terminate.
package bigmath

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/smilemakc/chainflow/pkg/models"
)

// Decimal is an exact fixed-point number: value == Unscaled / 10^Scale.
// Unscaled carries the sign; Scale is always >= 0.
type Decimal struct {
	Unscaled *big.Int
	Scale    uint
}

// Zero is the additive identity.
func Zero() Decimal { return Decimal{Unscaled: big.NewInt(0), Scale: 0} }

// FromInt builds an integral Decimal (scale 0).
func FromInt(i *big.Int) Decimal {
	return Decimal{Unscaled: new(big.Int).Set(i), Scale: 0}
}

// FromInt64 builds an integral Decimal from an int64.
func FromInt64(i int64) Decimal {
	return Decimal{Unscaled: big.NewInt(i), Scale: 0}
}

// Parse reads a decimal literal in plain notation, e.g. "-12.0340" or
// "7". Scientific notation is rejected: on-chain amounts are always
// written in plain form and accepting "e" notation would silently invite
// float-derived input.
func Parse(s string) (Decimal, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Decimal{}, fmt.Errorf("%w: empty string", models.ErrInvalidDecimal)
	}

	neg := false
	switch s[0] {
	case '+':
		s = s[1:]
	case '-':
		neg = true
		s = s[1:]
	}

	intPart, fracPart, hasDot := strings.Cut(s, ".")
	if strings.ContainsAny(intPart, "eE") || strings.ContainsAny(fracPart, "eE") {
		return Decimal{}, fmt.Errorf("%w: scientific notation not allowed: %q", models.ErrInvalidDecimal, s)
	}
	if intPart == "" && (!hasDot || fracPart == "") {
		return Decimal{}, fmt.Errorf("%w: %q", models.ErrInvalidDecimal, s)
	}
	if intPart == "" {
		intPart = "0"
	}
	for _, r := range intPart + fracPart {
		if r < '0' || r > '9' {
			return Decimal{}, fmt.Errorf("%w: %q", models.ErrInvalidDecimal, s)
		}
	}

	digits := intPart + fracPart
	unscaled, ok := new(big.Int).SetString(digits, 10)
	if !ok {
		return Decimal{}, fmt.Errorf("%w: %q", models.ErrInvalidDecimal, s)
	}
	if neg {
		unscaled.Neg(unscaled)
	}

	return Decimal{Unscaled: unscaled, Scale: uint(len(fracPart))}, nil
}

// pow10 returns 10^n as a *big.Int.
func pow10(n uint) *big.Int {
	return new(big.Int).Exp(big.NewInt(10), new(big.Int).SetUint64(uint64(n)), nil)
}

// rescale returns d's unscaled value expressed at the given (larger) scale.
func rescale(d Decimal, scale uint) *big.Int {
	if scale == d.Scale {
		return new(big.Int).Set(d.Unscaled)
	}
	factor := pow10(scale - d.Scale)
	return new(big.Int).Mul(d.Unscaled, factor)
}

// Add returns a + b, computed at the larger of the two scales and then
// normalized (trailing fractional zeros stripped).
func Add(a, b Decimal) Decimal {
	scale := a.Scale
	if b.Scale > scale {
		scale = b.Scale
	}
	sum := new(big.Int).Add(rescale(a, scale), rescale(b, scale))
	return normalize(Decimal{Unscaled: sum, Scale: scale})
}

// Sub returns a - b, computed at the larger of the two scales and then
// normalized.
func Sub(a, b Decimal) Decimal {
	scale := a.Scale
	if b.Scale > scale {
		scale = b.Scale
	}
	diff := new(big.Int).Sub(rescale(a, scale), rescale(b, scale))
	return normalize(Decimal{Unscaled: diff, Scale: scale})
}

// Mul returns a * b, computed at the combined scale and then normalized.
func Mul(a, b Decimal) Decimal {
	product := new(big.Int).Mul(a.Unscaled, b.Unscaled)
	return normalize(Decimal{Unscaled: product, Scale: a.Scale + b.Scale})
}

// Div returns a / b as an exact Decimal, or ErrNonTerminatingDiv if the
// quotient's decimal expansion does not terminate. Division terminates
// iff, after reducing the fraction to lowest terms, the denominator's
// only prime factors are 2 and 5.
func Div(a, b Decimal) (Decimal, error) {
	if b.Unscaled.Sign() == 0 {
		return Decimal{}, fmt.Errorf("%w: division by zero", models.ErrNonTerminatingDiv)
	}

	// a/b = (a.Unscaled / 10^a.Scale) / (b.Unscaled / 10^b.Scale)
	//     = (a.Unscaled * 10^b.Scale) / (b.Unscaled * 10^a.Scale)
	num := new(big.Int).Mul(a.Unscaled, pow10(b.Scale))
	den := new(big.Int).Mul(b.Unscaled, pow10(a.Scale))

	if den.Sign() < 0 {
		num.Neg(num)
		den.Neg(den)
	}

	g := new(big.Int).GCD(nil, nil, new(big.Int).Abs(num), den)
	if g.Sign() != 0 {
		num.Div(num, g)
		den.Div(den, g)
	}

	// Factor 2s and 5s out of the reduced denominator; whatever remains
	// must be 1 for the division to terminate.
	remaining := new(big.Int).Set(den)
	var twos, fives uint
	two, five := big.NewInt(2), big.NewInt(5)
	for new(big.Int).Mod(remaining, two).Sign() == 0 && remaining.Cmp(big.NewInt(1)) > 0 {
		remaining.Div(remaining, two)
		twos++
	}
	for new(big.Int).Mod(remaining, five).Sign() == 0 && remaining.Cmp(big.NewInt(1)) > 0 {
		remaining.Div(remaining, five)
		fives++
	}
	if remaining.Cmp(big.NewInt(1)) != 0 {
		return Decimal{}, fmt.Errorf("%w: %s / %s", models.ErrNonTerminatingDiv, a.String(), b.String())
	}

	scale := twos
	if fives > scale {
		scale = fives
	}
	// Multiply num and den up so den becomes exactly 10^scale.
	num.Mul(num, new(big.Int).Exp(two, new(big.Int).SetUint64(uint64(scale-twos)), nil))
	num.Mul(num, new(big.Int).Exp(five, new(big.Int).SetUint64(uint64(scale-fives)), nil))

	return normalize(Decimal{Unscaled: num, Scale: scale}), nil
}

// normalize strips trailing zero digits from the fractional part,
// reducing scale back toward zero without changing value.
func normalize(d Decimal) Decimal {
	if d.Unscaled.Sign() == 0 {
		return Decimal{Unscaled: big.NewInt(0), Scale: 0}
	}
	ten := big.NewInt(10)
	for d.Scale > 0 {
		q, r := new(big.Int).QuoRem(d.Unscaled, ten, new(big.Int))
		if r.Sign() != 0 {
			break
		}
		d.Unscaled = q
		d.Scale--
	}
	return d
}

// Cmp compares a and b (-1, 0, 1).
func Cmp(a, b Decimal) int {
	scale := a.Scale
	if b.Scale > scale {
		scale = b.Scale
	}
	return rescale(a, scale).Cmp(rescale(b, scale))
}

// Sign returns -1, 0, or 1 depending on d's sign.
func (d Decimal) Sign() int { return d.Unscaled.Sign() }

// String renders the decimal in plain notation.
func (d Decimal) String() string {
	if d.Scale == 0 {
		return d.Unscaled.String()
	}
	neg := d.Unscaled.Sign() < 0
	abs := new(big.Int).Abs(d.Unscaled).String()
	for uint(len(abs)) <= d.Scale {
		abs = "0" + abs
	}
	cut := len(abs) - int(d.Scale)
	s := abs[:cut] + "." + abs[cut:]
	if neg {
		s = "-" + s
	}
	return s
}

// Floor rounds toward negative infinity to the given scale.
func Floor(d Decimal, scale uint) Decimal {
	return roundDir(d, scale, -1)
}

// Ceil rounds toward positive infinity to the given scale.
func Ceil(d Decimal, scale uint) Decimal {
	return roundDir(d, scale, 1)
}

// Round rounds half-away-from-zero to the given scale.
func Round(d Decimal, scale uint) Decimal {
	if d.Scale <= scale {
		return rescaleExact(d, scale)
	}
	drop := d.Scale - scale
	divisor := pow10(drop)
	half := new(big.Int).Div(divisor, big.NewInt(2))

	q, r := new(big.Int).QuoRem(d.Unscaled, divisor, new(big.Int))
	absR := new(big.Int).Abs(r)
	if absR.Cmp(half) >= 0 {
		if d.Unscaled.Sign() < 0 {
			q.Sub(q, big.NewInt(1))
		} else {
			q.Add(q, big.NewInt(1))
		}
	}
	return normalize(Decimal{Unscaled: q, Scale: scale})
}

func roundDir(d Decimal, scale uint, dir int) Decimal {
	if d.Scale <= scale {
		return rescaleExact(d, scale)
	}
	drop := d.Scale - scale
	divisor := pow10(drop)
	q, r := new(big.Int).QuoRem(d.Unscaled, divisor, new(big.Int))
	if r.Sign() != 0 {
		if dir > 0 && d.Unscaled.Sign() > 0 {
			q.Add(q, big.NewInt(1))
		} else if dir < 0 && d.Unscaled.Sign() < 0 {
			q.Sub(q, big.NewInt(1))
		}
	}
	return normalize(Decimal{Unscaled: q, Scale: scale})
}

func rescaleExact(d Decimal, scale uint) Decimal {
	return normalize(Decimal{Unscaled: rescale(d, scale), Scale: scale})
}

// ToAtomic converts a human-readable decimal amount to its atomic
// (integer, base-unit) representation at the given token decimals,
// returning ErrTruncatingConversion if the amount has more fractional
// digits than decimals allows.
func ToAtomic(amount Decimal, decimals uint) (*big.Int, error) {
	if amount.Scale > decimals {
		shifted := Round(amount, decimals)
		if Cmp(shifted, amount) != 0 {
			return nil, fmt.Errorf("%w: %s has more than %d fractional digits", models.ErrTruncatingConversion, amount.String(), decimals)
		}
		amount = shifted
	}
	return rescale(amount, decimals), nil
}

// ToHuman converts an atomic integer amount to a human-readable Decimal
// at the given token decimals.
func ToHuman(atomic *big.Int, decimals uint) Decimal {
	return normalize(Decimal{Unscaled: new(big.Int).Set(atomic), Scale: decimals})
}
