package fpmm

import (
	"math/big"
)

// CalcPrice returns the marginal price of every outcome given the pool
// balances. The price of an outcome is inversely proportional to its
// balance:
//
//	price_i = ∏_{j≠i} h_j / Σ_k ∏_{j≠k} h_j
//
// Prices sum to 1. A pool whose balances are all zero has no prices and
// yields a slice of zeros.
func CalcPrice(holdings []*big.Int) []float64 {
	weights := make([]*big.Int, len(holdings))
	total := new(big.Int)
	for i := range holdings {
		w := big.NewInt(1)
		for j, h := range holdings {
			if j != i {
				w.Mul(w, h)
			}
		}
		weights[i] = w
		total.Add(total, w)
	}

	prices := make([]float64, len(holdings))
	if total.Sign() == 0 {
		return prices
	}
	denom := new(big.Float).SetInt(total)
	for i, w := range weights {
		prices[i], _ = new(big.Float).Quo(new(big.Float).SetInt(w), denom).Float64()
	}
	return prices
}
