package fixed

import (
	"errors"
	"math/big"
	"testing"

	"github.com/matryer/is"
)

func TestUnit(t *testing.T) {
	is := is.New(t)
	is.Equal(Unit().String(), "1000000000000000000")
	// callers must not be able to corrupt the shared constant
	u := Unit()
	u.SetInt64(3)
	is.Equal(Unit().String(), "1000000000000000000")
}

func TestParse(t *testing.T) {
	is := is.New(t)
	v, err := Parse("1970295")
	is.NoErr(err)
	is.Equal(v.Int64(), int64(1970295))

	v, err = Parse("0x10")
	is.NoErr(err)
	is.Equal(v.Int64(), int64(16))

	_, err = Parse("12abc")
	is.True(errors.Is(err, ErrInvalidAmount))

	_, err = Parse("")
	is.True(errors.Is(err, ErrInvalidAmount))
}

func TestParseUnits(t *testing.T) {
	is := is.New(t)
	v, err := ParseUnits("1.5", 18)
	is.NoErr(err)
	is.Equal(v.String(), "1500000000000000000")

	v, err = ParseUnits("0.1234567", 6)
	is.NoErr(err)
	is.Equal(v.String(), "123456")

	_, err = ParseUnits("one", 18)
	is.True(errors.Is(err, ErrInvalidAmount))
}

func TestCeilDiv(t *testing.T) {
	is := is.New(t)
	is.Equal(CeilDiv(big.NewInt(10), big.NewInt(5)).Int64(), int64(2))
	is.Equal(CeilDiv(big.NewInt(11), big.NewInt(5)).Int64(), int64(3))
	is.Equal(CeilDiv(big.NewInt(0), big.NewInt(5)).Int64(), int64(0))
	is.Equal(CeilDiv(big.NewInt(1), big.NewInt(5)).Int64(), int64(1))
}

func TestMulFloat(t *testing.T) {
	is := is.New(t)
	is.Equal(MulFloat(big.NewInt(1000000), 0.99).Int64(), int64(990000))
	is.Equal(MulFloat(big.NewInt(50), 0.5).Int64(), int64(25))
	// 1/(1-0.02) keeps four decimals: 1.0204
	is.Equal(MulFloat(big.NewInt(97968575), 1/(1-0.02)).Int64(), int64(99967133))
	is.Equal(MulFloat(big.NewInt(100), 0).Int64(), int64(0))
}

func TestDivToFloat(t *testing.T) {
	is := is.New(t)
	is.Equal(DivToFloat(big.NewInt(200), big.NewInt(100)), 2.0)
	is.Equal(DivToFloat(big.NewInt(1), big.NewInt(3)), 0.3333)
	is.Equal(DivToFloat(big.NewInt(0), big.NewInt(3)), 0.0)
}

func TestToFloat(t *testing.T) {
	is := is.New(t)
	v, _ := ParseUnits("105", 18)
	is.Equal(ToFloat(v, 18), 105.0)
	is.Equal(ToFloat(big.NewInt(-2500000), 6), -2.5)
	is.Equal(FromFloat(55.25, 18).String(), "55250000000000000000")
}

func TestClamp(t *testing.T) {
	is := is.New(t)
	cases := []struct {
		x, min, max, want int64
	}{
		{0, 2, 7, 2},
		{1232, 0, 283, 283},
		{3, 1, 14, 3},
	}
	for _, c := range cases {
		got := Clamp(big.NewInt(c.x), big.NewInt(c.min), big.NewInt(c.max))
		is.Equal(got.Int64(), c.want)
	}
}

func TestIsDust(t *testing.T) {
	is := is.New(t)
	cases := []struct {
		amount   int64
		decimals int32
		want     bool
	}{
		{0, 6, true},
		{1, 18, true},
		{1000, 6, false},
		{1, 6, true},
		{100000000, 12, false},
	}
	for _, c := range cases {
		is.Equal(IsDust(big.NewInt(c.amount), c.decimals), c.want)
	}
}

func TestMaxMin(t *testing.T) {
	is := is.New(t)
	xs := []*big.Int{big.NewInt(3), big.NewInt(9), big.NewInt(-1)}
	is.Equal(Max(xs).Int64(), int64(9))
	is.Equal(Min(xs).Int64(), int64(-1))
}

func TestCopy(t *testing.T) {
	is := is.New(t)
	xs := []*big.Int{big.NewInt(3), big.NewInt(9)}
	ys := Copy(xs)
	ys[0].SetInt64(100)
	is.Equal(xs[0].Int64(), int64(3))
}
