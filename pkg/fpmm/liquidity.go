package fpmm

import (
	"errors"
	"math/big"

	"github.com/shopspring/decimal"

	"github.com/domino14/fpmm/pkg/fixed"
)

var (
	ErrZeroPoolBalance         = errors.New("invalid pool balances: you must provide a distribution hint for the desired weightings of the pool")
	ErrInvalidDistributionHint = errors.New("invalid distribution hint: can't assign a weight of zero to an outcome")
)

// distributionHintScale is the resolution of a distribution hint.
var distributionHintScale = decimal.NewFromInt(1000000)

// CalcAddFundingDepositedAmounts returns the outcome tokens added to the pool
// when addedFunds of collateral are provided as liquidity. The outcome with
// the largest balance receives the whole amount, the others in proportion.
func CalcAddFundingDepositedAmounts(addedFunds *big.Int, poolBalances []*big.Int) ([]*big.Int, error) {
	for _, b := range poolBalances {
		if b.Sign() == 0 {
			return nil, ErrZeroPoolBalance
		}
	}
	poolWeight := fixed.Max(poolBalances)
	deposits := make([]*big.Int, len(poolBalances))
	for i, h := range poolBalances {
		d := new(big.Int).Mul(addedFunds, h)
		deposits[i] = d.Quo(d, poolWeight)
	}
	return deposits, nil
}

// CalcAddFundingSendAmounts returns the outcome tokens sent back to the
// liquidity provider after adding addedFunds. poolShareSupply may be nil for
// a pool being funded for the first time. A pool with an empty share
// supply returns nil amounts.
func CalcAddFundingSendAmounts(addedFunds *big.Int, poolBalances []*big.Int, poolShareSupply *big.Int) ([]*big.Int, error) {
	if poolShareSupply != nil && poolShareSupply.Sign() == 0 {
		return nil, nil
	}
	deposits, err := CalcAddFundingDepositedAmounts(addedFunds, poolBalances)
	if err != nil {
		return nil, err
	}
	sends := make([]*big.Int, len(deposits))
	for i, d := range deposits {
		sends[i] = new(big.Int).Sub(addedFunds, d)
	}
	return sends, nil
}

// CalcRemoveFundingSendAmounts returns the outcome tokens sent to a
// liquidity provider burning removedFunds pool shares.
func CalcRemoveFundingSendAmounts(removedFunds *big.Int, holdings []*big.Int, poolShareSupply *big.Int) []*big.Int {
	sends := make([]*big.Int, len(holdings))
	for i, h := range holdings {
		if poolShareSupply.Sign() <= 0 {
			sends[i] = fixed.Zero()
			continue
		}
		s := new(big.Int).Mul(h, removedFunds)
		sends[i] = s.Quo(s, poolShareSupply)
	}
	return sends
}

// CalcDepositedTokens returns the collateral that can be obtained by merging
// full sets of the outcome tokens received for burning removedFunds pool
// shares.
func CalcDepositedTokens(removedFunds *big.Int, holdings []*big.Int, poolShareSupply *big.Int) *big.Int {
	return fixed.Min(CalcRemoveFundingSendAmounts(removedFunds, holdings, poolShareSupply))
}

// CalcDistributionHint returns the initial pool weights that set the prices
// of a new market proportional to initialOdds. Equal odds need no hint and
// return an empty slice.
func CalcDistributionHint(initialOdds []float64) []*big.Int {
	if len(initialOdds) == 0 {
		return []*big.Int{}
	}
	allEqual := true
	for _, o := range initialOdds[1:] {
		if o != initialOdds[0] {
			allEqual = false
			break
		}
	}
	if allEqual {
		return []*big.Int{}
	}

	odds := make([]decimal.Decimal, len(initialOdds))
	product := decimal.NewFromInt(1)
	for i, o := range initialOdds {
		odds[i] = decimal.NewFromFloat(o)
		product = product.Mul(odds[i])
	}
	hint := make([]*big.Int, len(odds))
	for i, o := range odds {
		hint[i] = product.DivRound(o, 20).Mul(distributionHintScale).Round(0).BigInt()
	}
	return hint
}

// CalcInitialFundingSendAmounts returns the outcome tokens sent to the
// first liquidity provider. The distribution hint plays the role of the
// pool balances.
func CalcInitialFundingSendAmounts(addedFunds *big.Int, distributionHint []*big.Int) ([]*big.Int, error) {
	return CalcAddFundingSendAmounts(addedFunds, distributionHint, nil)
}

// CalcInitialFundingDepositedAmounts returns the outcome tokens the pool
// keeps after being funded for the first time.
func CalcInitialFundingDepositedAmounts(addedFunds *big.Int, distributionHint []*big.Int) ([]*big.Int, error) {
	for _, w := range distributionHint {
		if w.Sign() == 0 {
			return nil, ErrInvalidDistributionHint
		}
	}
	return CalcAddFundingDepositedAmounts(addedFunds, distributionHint)
}

// CalcPoolTokens returns the pool shares minted for adding addedFunds of
// collateral.
func CalcPoolTokens(addedFunds *big.Int, holdings []*big.Int, poolShareSupply *big.Int) *big.Int {
	if poolShareSupply.Sign() > 0 && len(holdings) > 0 {
		t := new(big.Int).Mul(addedFunds, poolShareSupply)
		return t.Quo(t, fixed.Max(holdings))
	}
	return new(big.Int).Set(addedFunds)
}

// CalcSharesBought returns how many more tokens of the first outcome a
// liquidity provider holding shares ends up with by adding collateral to
// the pool, compared to removing the same amount.
func CalcSharesBought(poolShares *big.Int, balances, shares []*big.Int, collateral *big.Int) (*big.Int, error) {
	sendAfterAdding, err := CalcAddFundingSendAmounts(collateral, balances, poolShares)
	if err != nil {
		return nil, err
	}
	afterAdding := fixed.Copy(shares)
	if sendAfterAdding != nil {
		for i := range afterAdding {
			afterAdding[i].Add(afterAdding[i], sendAfterAdding[i])
		}
	}

	sendAfterRemoving := CalcRemoveFundingSendAmounts(collateral, balances, poolShares)
	deposited := fixed.Min(sendAfterRemoving)
	afterRemoving := new(big.Int).Add(shares[0], sendAfterRemoving[0])
	afterRemoving.Sub(afterRemoving, deposited)

	return afterRemoving.Sub(afterAdding[0], afterRemoving), nil
}
