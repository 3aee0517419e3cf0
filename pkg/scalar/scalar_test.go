package scalar

import (
	"math"
	"math/big"
	"math/rand"
	"testing"

	"github.com/matryer/is"

	"github.com/domino14/fpmm/pkg/fixed"
)

func units18(s string) *big.Int {
	v, err := fixed.ParseUnits(s, fixed.Decimals)
	if err != nil {
		panic(err)
	}
	return v
}

func TestCalcXValue(t *testing.T) {
	cases := []struct {
		prediction, lower, upper string
		want                     float64
	}{
		{"5", "0", "10", 50},
		{"40", "5", "105", 35},
		{"2", "0", "10", 20},
		{"103", "0", "100", 100},
		{"-3", "0", "100", 0},
	}
	for _, c := range cases {
		is := is.New(t)
		is.Equal(CalcXValue(units18(c.prediction), units18(c.lower), units18(c.upper)), c.want)
	}
}

func TestCalcXValueAlwaysClamped(t *testing.T) {
	is := is.New(t)
	r := rand.New(rand.NewSource(1))
	for i := 0; i < 500; i++ {
		lo := r.Float64()*1000 - 500
		hi := lo + r.Float64()*1000
		p := (r.Float64() - 0.5) * 1e6
		x := CalcXValue(fixed.FromFloat(p, 18), fixed.FromFloat(lo, 18), fixed.FromFloat(hi, 18))
		is.True(x >= 0 && x <= 100)
	}
}

func TestCalcXValueEqualBounds(t *testing.T) {
	is := is.New(t)
	is.Equal(CalcXValue(units18("5"), units18("5"), units18("5")), 0.0)
	is.Equal(CalcXValue(units18("4"), units18("5"), units18("5")), 0.0)
	is.Equal(CalcXValue(units18("6"), units18("5"), units18("5")), 100.0)
}

func TestCalcPrediction(t *testing.T) {
	is := is.New(t)
	p, err := CalcPrediction("0.5", units18("5"), units18("105"))
	is.NoErr(err)
	is.Equal(p, 55.0)

	p, err = CalcPrediction("0", units18("5"), units18("105"))
	is.NoErr(err)
	is.Equal(p, 5.0)

	p, err = CalcPrediction("1", units18("5"), units18("105"))
	is.NoErr(err)
	is.Equal(p, 105.0)
}

func TestCalcPredictionNotClamped(t *testing.T) {
	is := is.New(t)
	p, err := CalcPrediction("1.5", units18("0"), units18("10"))
	is.NoErr(err)
	is.Equal(p, 15.0)

	p, err = CalcPrediction("-0.5", units18("0"), units18("10"))
	is.NoErr(err)
	is.Equal(p, -5.0)
}

func TestCalcPredictionInvalidProbability(t *testing.T) {
	is := is.New(t)
	_, err := CalcPrediction("half", units18("0"), units18("10"))
	is.True(err != nil)
}

func TestRoundTrip(t *testing.T) {
	is := is.New(t)
	r := rand.New(rand.NewSource(2))
	for i := 0; i < 200; i++ {
		p := r.Float64()
		lo := r.Float64()*1000 - 500
		hi := lo + 1 + r.Float64()*1000
		lower, upper := fixed.FromFloat(lo, 18), fixed.FromFloat(hi, 18)
		prediction, err := CalcPrediction(big.NewFloat(p).Text('f', -1), lower, upper)
		is.NoErr(err)
		x := CalcXValue(fixed.FromFloat(prediction, 18), lower, upper)
		is.True(math.Abs(x/100-p) < 1e-9)
	}
}
