// package lmsr implements the cost side of a base-2 Logarithmic Market
// Scoring Rule for binary markets. Results are estimates computed in
// float64 and are meant for display, not for building transactions.

package lmsr

import (
	"errors"
	"math"
	"math/big"

	"github.com/domino14/fpmm/pkg/fixed"
)

var ErrNonPositiveFunding = errors.New("funding must be positive")

// CalcNetCost computes the cost in collateral of trading tradeYes and
// tradeNo outcome tokens, given the funding of the market and the current
// prices:
//
//	funding * (offset + log2(priceYes*2^(tradeYes/funding-offset) + priceNo*2^(tradeNo/funding-offset)))
//
// where offset is the largest of the two trade/funding ratios, which keeps
// the exponents at or below zero.
func CalcNetCost(funding *big.Int, priceYes float64, tradeYes *big.Int, priceNo float64, tradeNo *big.Int) *big.Int {
	mustFund(funding)
	yes := fixed.DivToFloat(tradeYes, funding)
	no := fixed.DivToFloat(tradeNo, funding)
	offset := math.Max(yes, no)

	logTerm := offset + math.Log2(priceYes*math.Pow(2, yes-offset)+priceNo*math.Pow(2, no-offset))
	return fixed.MulFloat(funding, logTerm)
}

func mustFund(funding *big.Int) {
	if funding.Sign() <= 0 {
		panic(ErrNonPositiveFunding)
	}
}
