package fpmm

import (
	"math/big"

	"github.com/shopspring/decimal"

	"github.com/domino14/fpmm/pkg/rootfind"
)

// SellMaxIterations bounds the root search of a sale quote.
const SellMaxIterations = 100

var one = decimal.NewFromInt(1)

// SellInvariant returns f(r) for a sale of sharesToSell tokens of an outcome
// the pool holds holdings of. r is the collateral returned to the seller and
// R = r / (1 - fee) what leaves the pool:
//
//	f(r) = ∏(other_i - R) * (holdings + sharesToSell - R) - holdings * ∏ other_i
//
// A root of f keeps the product of the pool balances unchanged.
func SellInvariant(sharesToSell, holdings *big.Int, otherHoldings []*big.Int, fee float64, precision int32) rootfind.Func {
	a := decimal.NewFromBigInt(sharesToSell, 0)
	x := decimal.NewFromBigInt(holdings, 0)
	others := make([]decimal.Decimal, len(otherHoldings))
	product := x
	for i, h := range otherHoldings {
		others[i] = decimal.NewFromBigInt(h, 0)
		product = product.Mul(others[i])
	}
	keep := one.Sub(decimal.NewFromFloat(fee))

	return func(r decimal.Decimal) decimal.Decimal {
		R := r.DivRound(keep, precision)
		t := x.Add(a).Sub(R)
		for _, o := range others {
			t = t.Mul(o.Sub(R))
		}
		return t.Sub(product)
	}
}

// SellSolver quotes sales with a pluggable root finder. Unset fields take
// the defaults of NewSellSolver.
type SellSolver struct {
	Finder        rootfind.Finder
	MaxIterations int
	// Precision is the number of decimal places kept by divisions inside
	// the invariant.
	Precision int32
}

// NewSellSolver returns a solver using Newton-Raphson from zero with
// SellMaxIterations steps.
func NewSellSolver() *SellSolver {
	return &SellSolver{
		Finder:        rootfind.NewNewtonRaphson(),
		MaxIterations: SellMaxIterations,
		Precision:     rootfind.DefaultPrecision,
	}
}

func (s *SellSolver) settings() (finder rootfind.Finder, maxIterations int, prec int32) {
	finder, maxIterations, prec = s.Finder, s.MaxIterations, s.Precision
	if finder == nil {
		finder = rootfind.NewNewtonRaphson()
	}
	if maxIterations <= 0 {
		maxIterations = SellMaxIterations
	}
	if prec <= 0 {
		prec = rootfind.DefaultPrecision
	}
	return finder, maxIterations, prec
}

// Root returns the unrounded collateral amount solving the sale invariant.
func (s *SellSolver) Root(sharesToSell, holdings *big.Int, otherHoldings []*big.Int, fee float64) (decimal.Decimal, bool) {
	if fee >= 1 {
		// nothing ever leaves a pool that keeps the whole trade as fee
		return decimal.Zero, false
	}
	finder, maxIterations, prec := s.settings()
	f := SellInvariant(sharesToSell, holdings, otherHoldings, fee, prec)
	return finder.FindRoot(f, decimal.Zero, maxIterations)
}

// CalcSellAmountInCollateral returns the collateral received for selling
// sharesToSell tokens, or nil if no amount could be computed. A nil result
// means the trade cannot be quoted and must not be sent.
func (s *SellSolver) CalcSellAmountInCollateral(sharesToSell, holdings *big.Int, otherHoldings []*big.Int, fee float64) *big.Int {
	r, ok := s.Root(sharesToSell, holdings, otherHoldings, fee)
	if !ok {
		return nil
	}
	return r.Round(0).BigInt()
}

var defaultSellSolver = NewSellSolver()

// CalcSellAmountInCollateral computes the collateral returned for selling
// sharesToSell tokens of an outcome the pool holds holdings of, where
// otherHoldings are the pool balances of every other outcome. It returns
// nil if the root search does not converge.
func CalcSellAmountInCollateral(sharesToSell, holdings *big.Int, otherHoldings []*big.Int, fee float64) *big.Int {
	return defaultSellSolver.CalcSellAmountInCollateral(sharesToSell, holdings, otherHoldings, fee)
}

// SplitHoldings separates the balance of outcomeIndex from the others, in
// the shape CalcSellAmountInCollateral takes.
func SplitHoldings(poolBalances []*big.Int, outcomeIndex int) (*big.Int, []*big.Int) {
	mustOutcomeIndex(outcomeIndex, len(poolBalances))
	others := make([]*big.Int, 0, len(poolBalances)-1)
	for i, b := range poolBalances {
		if i != outcomeIndex {
			others = append(others, b)
		}
	}
	return poolBalances[outcomeIndex], others
}
