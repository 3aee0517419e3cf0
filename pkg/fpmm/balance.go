// Package fpmm implements the trading math of a fixed product market maker:
// the pool keeps the product of its outcome token balances constant, minus
// fees, across every trade.
//
// All amounts are 18-decimal fixed point *big.Int values and are computed
// exactly. Fee rates are float64 in [0, 1) and are applied with four
// decimals of precision. Inputs are never mutated.
package fpmm

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/domino14/fpmm/pkg/fixed"
)

var (
	ErrOutcomeIndexOutOfRange = errors.New("outcome index out of range")
	ErrNegativeLiquidity      = errors.New("trade is invalid: trade results in liquidity pool owning a negative number of tokens")
)

// ValidateOutcomeIndex returns an error wrapping ErrOutcomeIndexOutOfRange
// unless 0 <= idx < n.
func ValidateOutcomeIndex(idx, n int) error {
	if idx < 0 || idx >= n {
		return fmt.Errorf("%w: outcome index '%d' must be between 0 and '%d'", ErrOutcomeIndexOutOfRange, idx, n-1)
	}
	return nil
}

// mustOutcomeIndex panics on an invalid index. An out of range index is a
// bug in the caller, in the same way a slice index would be.
func mustOutcomeIndex(idx, n int) {
	if err := ValidateOutcomeIndex(idx, n); err != nil {
		panic(err)
	}
}

// ComputeBalanceAfterTrade returns the pool balances after a trade on
// outcomeIndex. collateral is added to every outcome balance (it is split
// into a full set of outcome tokens) and shares of the traded outcome leave
// the pool. Sales pass both amounts negated.
//
// It returns ErrNegativeLiquidity if any resulting balance is not strictly
// positive. It panics if outcomeIndex is out of range.
func ComputeBalanceAfterTrade(holdings []*big.Int, outcomeIndex int, collateral, shares *big.Int) ([]*big.Int, error) {
	mustOutcomeIndex(outcomeIndex, len(holdings))

	balances := make([]*big.Int, len(holdings))
	for i, h := range holdings {
		b := new(big.Int).Add(h, collateral)
		if i == outcomeIndex {
			b.Sub(b, shares)
		}
		if b.Sign() <= 0 {
			return nil, ErrNegativeLiquidity
		}
		balances[i] = b
	}
	return balances, nil
}

// ComputeBalanceAfterSharePurchase returns the pool balances after spending
// investment (gross of fees) to buy sharesBought tokens of outcomeIndex.
func ComputeBalanceAfterSharePurchase(holdings []*big.Int, outcomeIndex int, investment, sharesBought *big.Int, fee float64) ([]*big.Int, error) {
	collateral := fixed.Zero()
	if fee != 1 {
		collateral = fixed.MulFloat(investment, 1-fee)
	}
	return ComputeBalanceAfterTrade(holdings, outcomeIndex, collateral, sharesBought)
}

// ComputeBalanceAfterShareSale returns the pool balances after selling
// sharesSold tokens of outcomeIndex for returnAmount of collateral (net of
// fees). The pool burns returnAmount grossed up by the fee.
func ComputeBalanceAfterShareSale(holdings []*big.Int, outcomeIndex int, returnAmount, sharesSold *big.Int, fee float64) ([]*big.Int, error) {
	collateral := fixed.Zero()
	if fee != 1 {
		collateral = fixed.MulFloat(returnAmount, 1/(1-fee))
		collateral.Neg(collateral)
	}
	return ComputeBalanceAfterTrade(holdings, outcomeIndex, collateral, new(big.Int).Neg(sharesSold))
}
