// Package rootfind finds roots of real functions evaluated in arbitrary
// precision decimal arithmetic.
package rootfind

import (
	"github.com/shopspring/decimal"
)

// Func is a function of one decimal variable.
type Func func(x decimal.Decimal) decimal.Decimal

// Finder looks for x such that f(x) = 0, starting at initialGuess and giving
// up after maxIterations steps. ok is false when no root was found.
type Finder interface {
	FindRoot(f Func, initialGuess decimal.Decimal, maxIterations int) (root decimal.Decimal, ok bool)
}

const (
	// DefaultPrecision is the number of decimal places kept by divisions.
	DefaultPrecision int32 = 90
)

var (
	DefaultTolerance = decimal.New(1, -7)
	DefaultStep      = decimal.New(1, -4)

	eight  = decimal.NewFromInt(8)
	twelve = decimal.NewFromInt(12)
)

// NewtonRaphson is Newton's method with a five-point central difference
// standing in for the derivative. The zero value uses the package defaults.
// All settings live on the value, so differently configured solvers can be
// used concurrently.
type NewtonRaphson struct {
	// Tolerance is the relative step size at which iteration stops.
	Tolerance decimal.Decimal
	// H is the step of the finite difference.
	H decimal.Decimal
	// Precision is the number of decimal places kept by divisions.
	Precision int32
}

// NewNewtonRaphson returns a solver with the default settings.
func NewNewtonRaphson() *NewtonRaphson {
	return &NewtonRaphson{
		Tolerance: DefaultTolerance,
		H:         DefaultStep,
		Precision: DefaultPrecision,
	}
}

func (n *NewtonRaphson) settings() (tol, h decimal.Decimal, prec int32) {
	tol, h, prec = n.Tolerance, n.H, n.Precision
	if tol.Sign() <= 0 {
		tol = DefaultTolerance
	}
	if h.Sign() <= 0 {
		h = DefaultStep
	}
	if prec <= 0 {
		prec = DefaultPrecision
	}
	return tol, h, prec
}

// Derivative estimates f'(x) with step h.
func Derivative(f Func, x, h decimal.Decimal, precision int32) decimal.Decimal {
	h2 := h.Add(h)
	ym2h := f(x.Sub(h2))
	yp2h := f(x.Add(h2))
	ymh := f(x.Sub(h))
	yph := f(x.Add(h))
	num := ym2h.Sub(yp2h).Add(eight.Mul(yph.Sub(ymh)))
	return num.DivRound(twelve.Mul(h), precision)
}

// FindRoot implements Finder.
func (n *NewtonRaphson) FindRoot(f Func, initialGuess decimal.Decimal, maxIterations int) (decimal.Decimal, bool) {
	tol, h, prec := n.settings()
	x0 := initialGuess
	for i := 0; i < maxIterations; i++ {
		y := f(x0)
		yp := Derivative(f, x0, h, prec)
		if yp.IsZero() {
			// flat spot, the next step is undefined
			return decimal.Zero, false
		}
		x1 := x0.Sub(y.DivRound(yp, prec))
		if x1.Sub(x0).Abs().LessThanOrEqual(tol.Mul(x1.Abs())) {
			return x1, true
		}
		x0 = x1
	}
	return decimal.Zero, false
}
