package fit

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/benshaw2/PiDay/internal/dataset"
)

// Default LMM settings.
const (
	DefaultMaxIterations = 500
	DefaultTolerance     = 1e-8
	DefaultSingularTol   = 1e-6
)

// LMM fits Gaussian linear mixed models by maximum likelihood using the
// EM algorithm of Laird and Ware.
//
// For specimen i with n_i rows the model is
//
//	y_i = X_i β + Z_i b_i + ε_i,   b_i ~ N(0, D),   ε_i ~ N(0, σ² I)
//
// where X_i = [1, x] and Z_i is [1] for a random intercept or [1, x] for a
// random intercept and slope. Only β, the population-level intercept and
// slope, is reported.
//
// A fit fails when fewer than two specimens are present, when a variance
// component collapses towards zero (a boundary or singular fit), or when
// the log-likelihood has not settled after MaxIterations.
type LMM struct {
	MaxIterations int
	// Tolerance bounds the relative change in log-likelihood and in β
	// between iterations at convergence.
	Tolerance float64
	// SingularTol is the fraction of var(y) below which σ² or the smallest
	// eigenvalue of D counts as zero.
	SingularTol float64
}

var _ MixedEffectsEngine = (*LMM)(nil)

// NewLMM returns an engine with the default settings.
func NewLMM() *LMM {
	return &LMM{
		MaxIterations: DefaultMaxIterations,
		Tolerance:     DefaultTolerance,
		SingularTol:   DefaultSingularTol,
	}
}

func (m *LMM) Name() string { return "lmm-em" }

// Available always succeeds: the engine is pure Go.
func (m *LMM) Available() error { return nil }

type lmmGroup struct {
	x *mat.Dense    // n×2 fixed-effects design
	z *mat.Dense    // n×q random-effects design
	y *mat.VecDense // n responses
}

type emState struct {
	beta   *mat.VecDense
	d      *mat.SymDense
	sigma2 float64
	ll     float64
}

// Fit runs EM from the least-squares line until convergence.
func (m *LMM) Fit(ds dataset.Dataset, spec MixedSpec) (MixedFit, error) {
	if err := ds.Validate(); err != nil {
		return MixedFit{}, err
	}
	_, rows := ds.Groups()
	if len(rows) < 2 {
		return MixedFit{}, ErrTooFewGroups
	}

	q := 1
	if spec.RandomSlope {
		q = 2
	}
	groups := make([]lmmGroup, len(rows))
	for g, idx := range rows {
		n := len(idx)
		x := mat.NewDense(n, 2, nil)
		z := mat.NewDense(n, q, nil)
		y := mat.NewVecDense(n, nil)
		for i, row := range idx {
			meas := ds[row]
			x.Set(i, 0, 1)
			x.Set(i, 1, meas.Diameter)
			z.Set(i, 0, 1)
			if q == 2 {
				z.Set(i, 1, meas.Diameter)
			}
			y.SetVec(i, meas.Circumference)
		}
		groups[g] = lmmGroup{x: x, z: z, y: y}
	}

	ys := ds.Circumferences()
	start, err := OLS(ds.Diameters(), ys)
	if err != nil {
		return MixedFit{}, err
	}
	scale := stat.Variance(ys, nil)
	if !(scale > 0) || !finite(scale) {
		scale = 1
	}

	maxIter := m.MaxIterations
	if maxIter <= 0 {
		maxIter = DefaultMaxIterations
	}
	tol := m.Tolerance
	if tol <= 0 {
		tol = DefaultTolerance
	}
	floor := m.SingularTol
	if floor <= 0 {
		floor = DefaultSingularTol
	}
	floor *= scale

	cur := emState{
		beta:   mat.NewVecDense(2, []float64{start.Intercept, start.Slope}),
		d:      mat.NewSymDense(q, nil),
		sigma2: scale / 2,
		ll:     math.Inf(-1),
	}
	for i := 0; i < q; i++ {
		cur.d.SetSym(i, i, scale/2)
	}

	for it := 1; it <= maxIter; it++ {
		next, err := emStep(groups, cur, len(ds))
		if err != nil {
			return MixedFit{}, err
		}
		if next.sigma2 <= floor {
			return MixedFit{}, fmt.Errorf("%w: residual variance is zero", ErrSingularFit)
		}
		if low, ok := minEigen(next.d); !ok || low <= floor {
			return MixedFit{}, fmt.Errorf("%w: random-effects covariance is not positive definite", ErrSingularFit)
		}

		settled := it > 1 &&
			math.Abs(next.ll-cur.ll) < tol*(1+math.Abs(next.ll)) &&
			relChange(next.beta, cur.beta) < tol
		cur = next
		if settled {
			return MixedFit{
				Intercept:  cur.beta.AtVec(0),
				Slope:      cur.beta.AtVec(1),
				Iterations: it,
			}, nil
		}
	}
	return MixedFit{}, fmt.Errorf("%w after %d iterations", ErrNotConverged, maxIter)
}

// emStep performs one GLS update of β followed by the EM update of D and
// σ². The log-likelihood is evaluated at the new β and the old variance
// components.
func emStep(groups []lmmGroup, cur emState, nobs int) (emState, error) {
	const p = 2
	q, _ := cur.d.Dims()

	vinv := make([]*mat.SymDense, len(groups))
	logdet := make([]float64, len(groups))
	xtvx := mat.NewDense(p, p, nil)
	xtvy := mat.NewVecDense(p, nil)

	for i, g := range groups {
		v := marginalCov(g.z, cur.d, cur.sigma2)
		var ch mat.Cholesky
		if !ch.Factorize(v) {
			return emState{}, fmt.Errorf("%w: matrix is singular", ErrSingularFit)
		}
		n, _ := g.x.Dims()
		inv := mat.NewSymDense(n, nil)
		if err := ch.InverseTo(inv); err != nil {
			return emState{}, fmt.Errorf("%w: %v", ErrSingularFit, err)
		}
		vinv[i] = inv
		logdet[i] = ch.LogDet()

		var xtv mat.Dense
		xtv.Mul(g.x.T(), inv)
		var a mat.Dense
		a.Mul(&xtv, g.x)
		xtvx.Add(xtvx, &a)
		var b mat.VecDense
		b.MulVec(&xtv, g.y)
		xtvy.AddVec(xtvy, &b)
	}

	var gls mat.Cholesky
	if !gls.Factorize(symmetrize(xtvx)) {
		return emState{}, fmt.Errorf("%w: matrix is singular", ErrSingularFit)
	}
	beta := mat.NewVecDense(p, nil)
	if err := gls.SolveVecTo(beta, xtvy); err != nil {
		return emState{}, fmt.Errorf("%w: %v", ErrSingularFit, err)
	}

	dsum := mat.NewDense(q, q, nil)
	var rss, ll float64
	for i, g := range groups {
		n, _ := g.x.Dims()

		var r mat.VecDense
		r.MulVec(g.x, beta)
		r.SubVec(g.y, &r)
		ll -= 0.5 * (logdet[i] + mat.Inner(&r, vinv[i], &r) + float64(n)*math.Log(2*math.Pi))

		// K = D Zᵀ V⁻¹, b̂ = K r, C = D − K Z D.
		var dzt mat.Dense
		dzt.Mul(cur.d, g.z.T())
		var k mat.Dense
		k.Mul(&dzt, vinv[i])
		var bhat mat.VecDense
		bhat.MulVec(&k, &r)
		var kzd mat.Dense
		kzd.Mul(&k, dzt.T())
		var c mat.Dense
		c.Sub(cur.d, &kzd)

		var bb mat.Dense
		bb.Outer(1, &bhat, &bhat)
		dsum.Add(dsum, &bb)
		dsum.Add(dsum, &c)

		var e mat.VecDense
		e.MulVec(g.z, &bhat)
		e.SubVec(&r, &e)
		var zc mat.Dense
		zc.Mul(g.z, &c)
		var zczt mat.Dense
		zczt.Mul(&zc, g.z.T())
		rss += mat.Dot(&e, &e) + mat.Trace(&zczt)
	}
	dsum.Scale(1/float64(len(groups)), dsum)

	return emState{
		beta:   beta,
		d:      symmetrize(dsum),
		sigma2: rss / float64(nobs),
		ll:     ll,
	}, nil
}

// marginalCov returns Z D Zᵀ + σ² I.
func marginalCov(z *mat.Dense, d *mat.SymDense, sigma2 float64) *mat.SymDense {
	var zd mat.Dense
	zd.Mul(z, d)
	var v mat.Dense
	v.Mul(&zd, z.T())
	n, _ := v.Dims()
	for i := 0; i < n; i++ {
		v.Set(i, i, v.At(i, i)+sigma2)
	}
	return symmetrize(&v)
}

// symmetrize averages a square matrix with its transpose. EM updates drift
// off symmetry by rounding, which Cholesky does not tolerate.
func symmetrize(a mat.Matrix) *mat.SymDense {
	n, _ := a.Dims()
	s := mat.NewSymDense(n, nil)
	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			s.SetSym(i, j, (a.At(i, j)+a.At(j, i))/2)
		}
	}
	return s
}

func minEigen(d *mat.SymDense) (float64, bool) {
	var es mat.EigenSym
	if !es.Factorize(d, false) {
		return 0, false
	}
	return floats.Min(es.Values(nil)), true
}

func relChange(next, prev *mat.VecDense) float64 {
	var worst float64
	for i := 0; i < next.Len(); i++ {
		a, b := next.AtVec(i), prev.AtVec(i)
		worst = math.Max(worst, math.Abs(a-b)/(1+math.Abs(b)))
	}
	return worst
}
