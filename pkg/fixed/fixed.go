// Package fixed holds helpers for 18-decimal fixed-point amounts. Amounts
// are plain *big.Int values scaled by 10^18, the way collateral and outcome
// tokens are represented on chain.
package fixed

import (
	"errors"
	"fmt"
	"math"
	"math/big"
	"strconv"

	gmath "github.com/ethereum/go-ethereum/common/math"
	"github.com/shopspring/decimal"
)

// Decimals is the number of decimals of a standard collateral token.
const Decimals = 18

// Scale is the factor by which float operands are multiplied before being
// applied to an integer amount.
const Scale = 10000

var ErrInvalidAmount = errors.New("invalid amount")

var unit = new(big.Int).Exp(big.NewInt(10), big.NewInt(Decimals), nil)

// Unit returns 1.0 in fixed point (10^18). The returned value is a copy.
func Unit() *big.Int {
	return new(big.Int).Set(unit)
}

// Zero returns a new zero amount.
func Zero() *big.Int {
	return new(big.Int)
}

// Parse reads an integer amount in decimal or 0x-prefixed hex notation.
func Parse(s string) (*big.Int, error) {
	v, ok := gmath.ParseBig256(s)
	if !ok || s == "" {
		return nil, fmt.Errorf("%w: %q", ErrInvalidAmount, s)
	}
	return v, nil
}

// ParseUnits converts a human readable decimal ("1.5") into an integer
// amount with the given number of decimals. Digits beyond the precision of
// the token are truncated.
func ParseUnits(s string, decimals int32) (*big.Int, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return nil, fmt.Errorf("%w: %q", ErrInvalidAmount, s)
	}
	return d.Shift(decimals).Truncate(0).BigInt(), nil
}

// CeilDiv returns ceil(a/b). Operands are expected to be non-negative, as
// everywhere in the market maker math.
func CeilDiv(a, b *big.Int) *big.Int {
	q, m := new(big.Int).QuoRem(a, b, new(big.Int))
	if m.Sign() != 0 {
		q.Add(q, big.NewInt(1))
	}
	return q
}

// MulFloat multiplies a by f, keeping four decimals of f:
// a * round(f*Scale) / Scale.
func MulFloat(a *big.Int, f float64) *big.Int {
	scaled := big.NewInt(int64(math.Floor(f*Scale + 0.5)))
	r := new(big.Int).Mul(a, scaled)
	return r.Quo(r, big.NewInt(Scale))
}

// DivToFloat divides a by b keeping four decimals of the quotient.
func DivToFloat(a, b *big.Int) float64 {
	r := new(big.Int).Mul(a, big.NewInt(Scale))
	r.Quo(r, b)
	f, _ := new(big.Float).SetInt(r).Float64()
	return f / Scale
}

// ToFloat formats v with the given decimals and reads it back as a float.
func ToFloat(v *big.Int, decimals int32) float64 {
	f, _ := strconv.ParseFloat(decimal.NewFromBigInt(v, -decimals).String(), 64)
	return f
}

// FromFloat converts f into an integer amount with the given decimals.
func FromFloat(f float64, decimals int32) *big.Int {
	return decimal.NewFromFloat(f).Shift(decimals).Round(0).BigInt()
}

// Clamp limits x to [min, max].
func Clamp(x, min, max *big.Int) *big.Int {
	if x.Cmp(min) < 0 {
		return min
	}
	if x.Cmp(max) > 0 {
		return max
	}
	return x
}

var dust = decimal.RequireFromString("0.00001")

// IsDust reports whether amount is below 0.00001 tokens.
func IsDust(amount *big.Int, decimals int32) bool {
	return amount.Cmp(dust.Shift(decimals).BigInt()) < 0
}

// Max returns the largest of xs. xs must not be empty.
func Max(xs []*big.Int) *big.Int {
	m := xs[0]
	for _, x := range xs[1:] {
		if x.Cmp(m) > 0 {
			m = x
		}
	}
	return m
}

// Min returns the smallest of xs. xs must not be empty.
func Min(xs []*big.Int) *big.Int {
	m := xs[0]
	for _, x := range xs[1:] {
		if x.Cmp(m) < 0 {
			m = x
		}
	}
	return m
}

// Copy returns a deep copy of xs.
func Copy(xs []*big.Int) []*big.Int {
	out := make([]*big.Int, len(xs))
	for i, x := range xs {
		out[i] = new(big.Int).Set(x)
	}
	return out
}
