package fpmm

import (
	"math/big"
	"math/rand"
	"testing"

	"github.com/matryer/is"

	"github.com/domino14/fpmm/pkg/fixed"
)

func TestCalcBuyAmountInShares(t *testing.T) {
	is := is.New(t)
	got := CalcBuyAmountInShares(big.NewInt(1000000), 0, ints(100000000, 100000000), 0.01)
	is.Equal(got.String(), "1970295")
	is.True(withinRatio(got, big.NewInt(1970295), 0.005))
}

func TestCalcBuyAmountInSharesThreeOutcomes(t *testing.T) {
	is := is.New(t)
	pool := bigs("1000000000000000000", "2000000000000000000", "3000000000000000000")
	inv := bigs("100000000000000000")[0]
	shares := CalcBuyAmountInShares(inv, 2, pool, 0.02)
	after, err := ComputeBalanceAfterSharePurchase(pool, 2, inv, shares, 0.02)
	is.NoErr(err)
	// the pool can only gain from rounding
	is.True(product(after).Cmp(product(pool)) >= 0)
	is.True(relativeDiff(product(after), product(pool)) < 1e-15)
}

func TestCalcBuyAmountInSharesNoHoldings(t *testing.T) {
	is := is.New(t)
	is.Equal(CalcBuyAmountInShares(big.NewInt(10), 0, ints(0, 0), 0.1).String(), fixed.Unit().String())
}

func TestCalcBuyAmountInSharesNoFunding(t *testing.T) {
	is := is.New(t)
	is.Equal(CalcBuyAmountInShares(big.NewInt(0), 0, ints(100, 100), 0.1).String(), fixed.Unit().String())
}

func TestCalcBuyAmountInSharesBadIndex(t *testing.T) {
	for _, idx := range []int{-1, 2, 10} {
		expectOutcomeIndexPanic(t, func() {
			CalcBuyAmountInShares(big.NewInt(10), idx, ints(100, 100), 0.1)
		})
	}
}

func TestBuyPreservesInvariant(t *testing.T) {
	is := is.New(t)
	r := rand.New(rand.NewSource(42))
	fees := []float64{0, 0.01, 0.02}
	for i := 0; i < 200; i++ {
		n := 2 + r.Intn(3)
		pool := make([]*big.Int, n)
		for j := range pool {
			pool[j] = randAmount(r, 1, 1000)
		}
		idx := r.Intn(n)
		fee := fees[r.Intn(len(fees))]
		inv := randAmount(r, 0.001, 100)

		shares := CalcBuyAmountInShares(inv, idx, pool, fee)
		after, err := ComputeBalanceAfterSharePurchase(pool, idx, inv, shares, fee)
		is.NoErr(err)
		is.True(product(after).Cmp(product(pool)) >= 0)
		is.True(relativeDiff(product(after), product(pool)) < 1e-12)
	}
}

// randAmount returns a random fixed point amount between lo and hi units.
func randAmount(r *rand.Rand, lo, hi float64) *big.Int {
	return fixed.FromFloat(lo+r.Float64()*(hi-lo), fixed.Decimals)
}

func product(xs []*big.Int) *big.Int {
	p := big.NewInt(1)
	for _, x := range xs {
		p.Mul(p, x)
	}
	return p
}

func relativeDiff(a, b *big.Int) float64 {
	d := new(big.Rat).SetFrac(new(big.Int).Sub(a, b), b)
	f, _ := d.Float64()
	if f < 0 {
		return -f
	}
	return f
}

func withinRatio(got, want *big.Int, tol float64) bool {
	return relativeDiff(got, want) < tol
}
