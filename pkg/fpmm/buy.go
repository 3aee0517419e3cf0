package fpmm

import (
	"math/big"

	"github.com/domino14/fpmm/pkg/fixed"
)

// CalcBuyAmountInShares computes the number of outcomeIndex shares bought
// with investment collateral, given the pool balances and the fee.
//
// Spending zero, or buying from a pool with no balances at all, returns one
// unit (1.0 in fixed point).
//
// Divisions round up so the product of the pool balances never drops below
// its value before the trade.
func CalcBuyAmountInShares(investment *big.Int, outcomeIndex int, poolBalances []*big.Int, fee float64) *big.Int {
	mustOutcomeIndex(outcomeIndex, len(poolBalances))
	if investment.Sign() == 0 || allZero(poolBalances) {
		return fixed.Unit()
	}

	afterFee := fixed.MulFloat(investment, 1-fee)
	newOutcomeBalance := fixed.Unit()
	for i, b := range poolBalances {
		newOutcomeBalance.Mul(newOutcomeBalance, b)
		if i != outcomeIndex {
			newOutcomeBalance = fixed.CeilDiv(newOutcomeBalance, new(big.Int).Add(b, afterFee))
		}
	}

	shares := new(big.Int).Add(poolBalances[outcomeIndex], afterFee)
	return shares.Sub(shares, fixed.CeilDiv(newOutcomeBalance, fixed.Unit()))
}

func allZero(xs []*big.Int) bool {
	for _, x := range xs {
		if x.Sign() != 0 {
			return false
		}
	}
	return true
}
