package fit

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/benshaw2/PiDay/internal/dataset"
)

type fakeEngine struct {
	fit    MixedFit
	err    error
	probe  error
	probes int
	calls  []MixedSpec
}

func (e *fakeEngine) Name() string { return "fake" }

func (e *fakeEngine) Available() error {
	e.probes++
	return e.probe
}

func (e *fakeEngine) Fit(_ dataset.Dataset, spec MixedSpec) (MixedFit, error) {
	e.calls = append(e.calls, spec)
	return e.fit, e.err
}

func perfectLine(n int) dataset.Dataset {
	ds := make(dataset.Dataset, n)
	for i := range ds {
		d := float64(i + 1)
		ds[i] = dataset.Measurement{Name: string(rune('A' + i%3)), Diameter: d, Circumference: 3.14159 * d}
	}
	return ds
}

func endToEnd() dataset.Dataset {
	return dataset.Dataset{
		{Name: "A", Diameter: 10, Circumference: 31.4},
		{Name: "A", Diameter: 20, Circumference: 62.8},
		{Name: "B", Diameter: 5, Circumference: 15.7},
	}
}

var allRequests = []Request{
	{Tier: FixedOnly},
	{Tier: FixedOnly, AllowMixedEffects: true},
	{Tier: RandomIntercept},
	{Tier: RandomIntercept, AllowMixedEffects: true},
	{Tier: RandomSlopeIntercept},
	{Tier: RandomSlopeIntercept, AllowMixedEffects: true},
}

func TestFit_InsufficientData(t *testing.T) {
	engine := &fakeEngine{}
	f := New(engine)

	for _, ds := range []dataset.Dataset{nil, {}, perfectLine(1)} {
		for _, req := range allRequests {
			rep := f.FitReport(ds, req)
			assert.False(t, rep.Result.OK)
			assert.Equal(t, "Need at least 2 observations", rep.Result.Message)
			assert.Nil(t, rep.Result.Slope)
			assert.Nil(t, rep.Result.Intercept)
			assert.Nil(t, rep.Mixed)
			assert.True(t, IsKind(rep.Err, KindInsufficientData))
		}
	}
	assert.Empty(t, engine.calls, "no numeric work before the size check")
}

func TestFit_PerfectLine(t *testing.T) {
	f := New(nil)
	for n := 2; n <= 12; n++ {
		res := f.Fit(perfectLine(n), Request{Tier: FixedOnly})
		require.True(t, res.OK, "n=%d: %s", n, res.Message)
		assert.InDelta(t, 3.14159, *res.Slope, 1e-6)
		assert.InDelta(t, 0.0, *res.Intercept, 1e-6)
		assert.Equal(t, MsgLinearFitted, res.Message)
	}
}

func TestFit_EndToEndDataset(t *testing.T) {
	res := New(NewLMM()).Fit(endToEnd(), Request{Tier: FixedOnly})
	require.True(t, res.OK)
	assert.InDelta(t, 3.14, *res.Slope, 1e-9)
	assert.InDelta(t, 0.0, *res.Intercept, 1e-9)
}

func TestFit_DisallowedMixedEqualsFixed(t *testing.T) {
	f := New(&fakeEngine{fit: MixedFit{Slope: 9, Intercept: 9}})
	ds := endToEnd()

	fixed := f.Fit(ds, Request{Tier: FixedOnly})
	for _, tier := range []Tier{RandomIntercept, RandomSlopeIntercept} {
		got := f.Fit(ds, Request{Tier: tier, AllowMixedEffects: false})
		assert.True(t, fixed.Equal(got), "tier %s", tier)

		rep := f.FitReport(ds, Request{Tier: tier})
		assert.Nil(t, rep.Mixed)
	}
}

func TestFit_MixedUnavailable(t *testing.T) {
	for _, engine := range []MixedEffectsEngine{nil, Unavailable{}} {
		f := New(engine)
		assert.False(t, f.Capabilities().MixedEffectsAvailable)

		rep := f.FitReport(endToEnd(), Request{Tier: RandomIntercept, AllowMixedEffects: true})
		require.True(t, rep.Result.OK)
		assert.Equal(t, MsgLinearFitted, rep.Result.Message)

		require.NotNil(t, rep.Mixed)
		assert.False(t, rep.Mixed.Attempted)
		assert.False(t, rep.Mixed.OK)
		assert.Equal(t, "mixed-effects model not available in this environment", rep.Mixed.Message)
		assert.True(t, IsKind(rep.MixedErr, KindMixedUnavailable))
		assert.ErrorIs(t, rep.MixedErr, ErrMixedEffectsUnavailable)
	}
}

func TestFit_MixedFailureIsInformational(t *testing.T) {
	engine := &fakeEngine{err: errors.New("boom")}
	rep := New(engine).FitReport(endToEnd(), Request{Tier: RandomSlopeIntercept, AllowMixedEffects: true})

	require.True(t, rep.Result.OK)
	assert.InDelta(t, 3.14, *rep.Result.Slope, 1e-9)
	require.NotNil(t, rep.Mixed)
	assert.True(t, rep.Mixed.Attempted)
	assert.Equal(t, "mixed-effects model failed: boom", rep.Mixed.Message)
	assert.True(t, IsKind(rep.MixedErr, KindMixedFit))
	assert.Equal(t, []MixedSpec{{RandomSlope: true}}, engine.calls)
}

func TestFit_OrdinaryOverridesMixedSuccess(t *testing.T) {
	engine := &fakeEngine{fit: MixedFit{Slope: 3.2, Intercept: -1, Iterations: 7}}
	rep := New(engine).FitReport(endToEnd(), Request{Tier: RandomIntercept, AllowMixedEffects: true})

	require.True(t, rep.Result.OK)
	assert.Equal(t, MsgLinearFitted, rep.Result.Message)
	assert.InDelta(t, 3.14, *rep.Result.Slope, 1e-9)

	require.NotNil(t, rep.Mixed)
	assert.True(t, rep.Mixed.OK)
	assert.Equal(t, MsgMixedFitted, rep.Mixed.Message)
	assert.Equal(t, 3.2, *rep.Mixed.Slope)
	assert.Equal(t, 7, rep.Mixed.Iterations)
	assert.Equal(t, []MixedSpec{{RandomSlope: false}}, engine.calls)
}

func TestFit_PreferMixed(t *testing.T) {
	engine := &fakeEngine{fit: MixedFit{Slope: 3.2, Intercept: -1}}
	f := New(engine, WithPreferMixed(true))

	res := f.Fit(endToEnd(), Request{Tier: RandomIntercept, AllowMixedEffects: true})
	require.True(t, res.OK)
	assert.Equal(t, MsgMixedFitted, res.Message)
	assert.Equal(t, 3.2, *res.Slope)
	assert.Equal(t, -1.0, *res.Intercept)

	engine.err = errors.New("nope")
	res = f.Fit(endToEnd(), Request{Tier: RandomIntercept, AllowMixedEffects: true})
	assert.Equal(t, MsgLinearFitted, res.Message)
}

func TestFit_MixedNonFiniteIsFailure(t *testing.T) {
	engine := &fakeEngine{fit: MixedFit{Slope: math.NaN()}}
	rep := New(engine, WithPreferMixed(true)).FitReport(endToEnd(), Request{Tier: RandomIntercept, AllowMixedEffects: true})
	assert.False(t, rep.Mixed.OK)
	assert.Equal(t, MsgLinearFitted, rep.Result.Message)
}

func TestFit_ZeroVarianceDiameter(t *testing.T) {
	ds := dataset.Dataset{
		{Name: "A", Diameter: 2, Circumference: 6.2},
		{Name: "A", Diameter: 2, Circumference: 6.4},
		{Name: "B", Diameter: 2, Circumference: 6.3},
	}
	for _, req := range allRequests {
		rep := New(NewLMM()).FitReport(ds, req)
		assert.False(t, rep.Result.OK)
		assert.Nil(t, rep.Result.Slope)
		assert.Equal(t, "linear model failed: degenerate data: zero variance in Diameter", rep.Result.Message)
		assert.True(t, IsKind(rep.Err, KindOrdinaryFit))
	}
}

func TestFit_NonFiniteValue(t *testing.T) {
	ds := endToEnd()
	ds[1].Circumference = math.Inf(1)

	rep := New(nil).FitReport(ds, Request{Tier: FixedOnly})
	assert.False(t, rep.Result.OK)
	assert.Contains(t, rep.Result.Message, "row 2: Circumference")
	assert.True(t, IsKind(rep.Err, KindNumericCoercion))
}

func TestFitRaw(t *testing.T) {
	f := New(nil)

	rep := f.FitRaw([]dataset.RawMeasurement{{Name: "A", Diameter: "10", Circumference: "31.4"}, {Name: "B", Diameter: "20", Circumference: "62.8"}}, Request{Tier: FixedOnly})
	require.True(t, rep.Result.OK)
	assert.InDelta(t, 3.14, *rep.Result.Slope, 1e-9)

	rep = f.FitRaw([]dataset.RawMeasurement{{Name: "A", Diameter: "10", Circumference: "31.4"}, {Name: "B", Diameter: "20", Circumference: "abc"}}, Request{Tier: FixedOnly})
	assert.False(t, rep.Result.OK)
	assert.Equal(t, `linear model failed: row 2: Circumference "abc" is not a finite number: invalid syntax`, rep.Result.Message)
	assert.True(t, IsKind(rep.Err, KindNumericCoercion))

	rep = f.FitRaw([]dataset.RawMeasurement{{Name: "A", Diameter: "x", Circumference: "y"}}, Request{Tier: FixedOnly})
	assert.Equal(t, MsgInsufficientData, rep.Result.Message)
}

func TestNew_ProbesOnce(t *testing.T) {
	engine := &fakeEngine{}
	f := New(engine)
	for i := 0; i < 3; i++ {
		f.Fit(endToEnd(), Request{Tier: RandomIntercept, AllowMixedEffects: true})
	}
	assert.Equal(t, 1, engine.probes)
	assert.Equal(t, Capabilities{MixedEffectsAvailable: true, Engine: "fake"}, f.Capabilities())
}

func TestFit_ProbeFailureMeansUnavailable(t *testing.T) {
	engine := &fakeEngine{probe: errors.New("library missing")}
	rep := New(engine).FitReport(endToEnd(), Request{Tier: RandomIntercept, AllowMixedEffects: true})
	assert.Empty(t, engine.calls)
	assert.Equal(t, MsgMixedUnavailable, rep.Mixed.Message)
}

func TestFit_DoesNotMutateDataset(t *testing.T) {
	ds := endToEnd()
	before := append(dataset.Dataset(nil), ds...)
	New(NewLMM()).Fit(ds, Request{Tier: RandomSlopeIntercept, AllowMixedEffects: true})
	assert.Equal(t, before, ds)
}

func TestParseTier(t *testing.T) {
	for n, want := range map[int]Tier{1: FixedOnly, 2: RandomIntercept, 3: RandomSlopeIntercept} {
		got, err := ParseTier(n)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
	_, err := ParseTier(4)
	assert.Error(t, err)
	assert.Equal(t, "Circumference ~ Diameter + (1 | Name)", RandomIntercept.Formula())
}

func TestSuccess_RejectsNonFinite(t *testing.T) {
	r := Success("x", math.NaN(), 0)
	assert.False(t, r.OK)
	assert.Nil(t, r.Slope)
	assert.Nil(t, r.Intercept)
}
