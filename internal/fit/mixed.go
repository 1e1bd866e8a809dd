package fit

import "github.com/benshaw2/PiDay/internal/dataset"

// MixedSpec selects the random-effects structure of a mixed model.
type MixedSpec struct {
	// RandomSlope adds a per-specimen slope deviation to the per-specimen
	// intercept deviation.
	RandomSlope bool
}

// MixedFit holds the population-level (fixed-effect) coefficients of a
// converged mixed model.
type MixedFit struct {
	Intercept  float64
	Slope      float64
	Iterations int
}

// MixedEffectsEngine fits linear mixed models. Implementations must be
// safe to call from one goroutine at a time; Fitter never calls them
// concurrently.
type MixedEffectsEngine interface {
	// Name identifies the engine in logs and capability reports.
	Name() string

	// Available probes whether the engine can run in this environment.
	Available() error

	// Fit fits Circumference ~ Diameter with the random effects in spec,
	// grouped by Name.
	Fit(ds dataset.Dataset, spec MixedSpec) (MixedFit, error)
}

// Unavailable is the engine of environments without mixed-effects support.
type Unavailable struct{}

var _ MixedEffectsEngine = Unavailable{}

func (Unavailable) Name() string { return "unavailable" }

func (Unavailable) Available() error { return ErrMixedEffectsUnavailable }

func (Unavailable) Fit(dataset.Dataset, MixedSpec) (MixedFit, error) {
	return MixedFit{}, ErrMixedEffectsUnavailable
}
