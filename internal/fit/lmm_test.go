package fit

import (
	"fmt"
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/benshaw2/PiDay/internal/dataset"
)

var lmmNoise = []float64{0.3, -0.2, 0.1, -0.3, 0.2, -0.1}

// interceptData has a per-specimen offset and a common slope.
func interceptData() dataset.Dataset {
	offsets := []float64{-2, -1, 0, 1, 2}
	var ds dataset.Dataset
	for g, u := range offsets {
		for x := 1; x <= 6; x++ {
			d := float64(x)
			ds = append(ds, dataset.Measurement{
				Name:          fmt.Sprintf("s%d", g),
				Diameter:      d,
				Circumference: 0.5 + 3.14159*d + u + lmmNoise[(x+g)%6],
			})
		}
	}
	return ds
}

// slopeData varies both offset and slope per specimen.
func slopeData() dataset.Dataset {
	slopes := []float64{0.3, 0.2, -0.4, 0.1, -0.3, 0.1}
	offsets := []float64{-2, 1, 0, 2, -1, 0.5}
	var ds dataset.Dataset
	for g := range slopes {
		for x := 1; x <= 6; x++ {
			d := float64(x)
			ds = append(ds, dataset.Measurement{
				Name:          fmt.Sprintf("s%d", g),
				Diameter:      d,
				Circumference: 0.5 + (3.14159+slopes[g])*d + offsets[g] + lmmNoise[(x+g)%6],
			})
		}
	}
	return ds
}

func TestLMM_RandomIntercept(t *testing.T) {
	ds := interceptData()
	mf, err := NewLMM().Fit(ds, MixedSpec{})
	require.NoError(t, err)

	// Balanced design with a shared x grid: GLS and OLS agree.
	line, err := OLS(ds.Diameters(), ds.Circumferences())
	require.NoError(t, err)
	assert.InDelta(t, line.Slope, mf.Slope, 1e-6)
	assert.InDelta(t, 3.148447142857143, mf.Slope, 1e-6)
	assert.InDelta(t, 0.476, mf.Intercept, 1e-5)
	assert.Greater(t, mf.Iterations, 1)
}

func TestLMM_RandomSlope(t *testing.T) {
	mf, err := NewLMM().Fit(slopeData(), MixedSpec{RandomSlope: true})
	require.NoError(t, err)
	assert.InDelta(t, 3.14159, mf.Slope, 1e-4)
	assert.InDelta(t, 0.58333, mf.Intercept, 1e-3)
}

func TestLMM_TooFewGroups(t *testing.T) {
	ds := perfectLine(4)
	for i := range ds {
		ds[i].Name = "only"
	}
	_, err := NewLMM().Fit(ds, MixedSpec{})
	assert.ErrorIs(t, err, ErrTooFewGroups)
}

func TestLMM_SingularOnExactLine(t *testing.T) {
	for _, spec := range []MixedSpec{{}, {RandomSlope: true}} {
		_, err := NewLMM().Fit(endToEnd(), spec)
		assert.ErrorIs(t, err, ErrSingularFit, "random slope %v", spec.RandomSlope)
	}
}

func TestLMM_NotConverged(t *testing.T) {
	m := NewLMM()
	m.MaxIterations = 1
	_, err := m.Fit(interceptData(), MixedSpec{})
	require.ErrorIs(t, err, ErrNotConverged)
	assert.True(t, strings.HasSuffix(err.Error(), "after 1 iterations"))
}

func TestLMM_NonFinite(t *testing.T) {
	ds := interceptData()
	ds[5].Diameter = math.Inf(1)
	_, err := NewLMM().Fit(ds, MixedSpec{})
	assert.ErrorIs(t, err, dataset.ErrNumericCoercion)
}

func TestFitter_SingularMixedFallsBack(t *testing.T) {
	rep := New(NewLMM()).FitReport(endToEnd(), Request{Tier: RandomIntercept, AllowMixedEffects: true})
	require.True(t, rep.Result.OK)
	assert.InDelta(t, 3.14, *rep.Result.Slope, 1e-9)

	require.NotNil(t, rep.Mixed)
	assert.True(t, rep.Mixed.Attempted)
	assert.False(t, rep.Mixed.OK)
	assert.True(t, strings.HasPrefix(rep.Mixed.Message, "mixed-effects model failed: boundary (singular) fit"))
	assert.ErrorIs(t, rep.MixedErr, ErrSingularFit)
}

func TestFitter_MixedRecovery(t *testing.T) {
	f := New(NewLMM(), WithPreferMixed(true))
	res := f.Fit(slopeData(), Request{Tier: RandomSlopeIntercept, AllowMixedEffects: true})
	require.True(t, res.OK, res.Message)
	assert.Equal(t, MsgMixedFitted, res.Message)
	assert.InDelta(t, 3.14159, *res.Slope, 1e-4)
}
