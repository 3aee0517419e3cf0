// Package scalar maps outcome prices of scalar markets onto the numeric
// range [lowerBound, upperBound] the market resolves within.
//
// Bounds and predictions are 18-decimal fixed point amounts. Results are
// float64 values meant for display; they may lose precision.
package scalar

import (
	"fmt"
	"math/big"

	"github.com/shopspring/decimal"

	"github.com/domino14/fpmm/pkg/fixed"
)

var hundred = decimal.NewFromInt(100)

func units(v *big.Int) decimal.Decimal {
	return decimal.NewFromBigInt(v, -fixed.Decimals)
}

// CalcXValue returns where prediction lies within the bounds, as a
// percentage. The result is clamped to [0, 100]. When both bounds are equal
// a prediction at or below them is 0 and anything above is 100.
func CalcXValue(prediction, lowerBound, upperBound *big.Int) float64 {
	lo, hi := units(lowerBound), units(upperBound)
	width := hi.Sub(lo)
	if width.Sign() == 0 {
		if prediction.Cmp(lowerBound) > 0 {
			return 100
		}
		return 0
	}
	p := units(fixed.Clamp(prediction, lowerBound, upperBound))
	return p.Sub(lo).Mul(hundred).DivRound(width, 16).InexactFloat64()
}

// CalcPrediction maps probability, a decimal string between 0 and 1, onto
// the bounds: probability * (upper - lower) + lower, in token units.
// Probabilities outside [0, 1] are not clamped.
func CalcPrediction(probability string, lowerBound, upperBound *big.Int) (float64, error) {
	p, err := decimal.NewFromString(probability)
	if err != nil {
		return 0, fmt.Errorf("invalid probability %q: %w", probability, err)
	}
	lo, hi := units(lowerBound), units(upperBound)
	return p.Mul(hi.Sub(lo)).Add(lo).InexactFloat64(), nil
}
