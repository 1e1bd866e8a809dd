package fit

import (
	"fmt"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Line is a fitted straight line y = Intercept + Slope*x.
type Line struct {
	Intercept float64
	Slope     float64
}

// At evaluates the line at x.
func (l Line) At(x float64) float64 {
	return l.Intercept + l.Slope*x
}

// OLS fits y on x by ordinary least squares with an intercept term.
//
// Fewer than two points, x values that are all equal, or any non-finite
// input or output is reported as ErrDegenerate.
func OLS(x, y []float64) (Line, error) {
	if len(x) != len(y) {
		return Line{}, fmt.Errorf("%w: %d diameters but %d circumferences", ErrDegenerate, len(x), len(y))
	}
	if len(x) < 2 {
		return Line{}, fmt.Errorf("%w: fewer than 2 points", ErrDegenerate)
	}
	if !allFinite(x) || !allFinite(y) {
		return Line{}, fmt.Errorf("%w: non-finite input", ErrDegenerate)
	}
	if floats.Max(x) == floats.Min(x) {
		return Line{}, fmt.Errorf("%w: zero variance in Diameter", ErrDegenerate)
	}

	// LinearRegression centres both columns before solving, which keeps
	// the normal equations well conditioned for large diameters.
	alpha, beta := stat.LinearRegression(x, y, nil, false)
	if !finite(alpha) || !finite(beta) {
		return Line{}, fmt.Errorf("%w: non-finite coefficients", ErrDegenerate)
	}
	return Line{Intercept: alpha, Slope: beta}, nil
}

func allFinite(xs []float64) bool {
	for _, v := range xs {
		if !finite(v) {
			return false
		}
	}
	return true
}
