package fit

import (
	"errors"
	"io"
	"log/slog"

	"github.com/benshaw2/PiDay/internal/dataset"
)

// Option configures a Fitter.
type Option func(*Fitter)

// WithLogger sets the logger used for fit diagnostics.
func WithLogger(l *slog.Logger) Option {
	return func(f *Fitter) {
		if l != nil {
			f.log = l
		}
	}
}

// WithPreferMixed makes a successful mixed-effects fit the returned Result
// instead of the least-squares line. Off by default.
func WithPreferMixed(prefer bool) Option {
	return func(f *Fitter) {
		f.preferMixed = prefer
	}
}

// Fitter fits measurement datasets. It holds no per-call state and may be
// shared between goroutines as long as its engine tolerates that.
type Fitter struct {
	engine      MixedEffectsEngine
	caps        Capabilities
	preferMixed bool
	log         *slog.Logger
}

// New builds a Fitter around engine, which may be nil when no
// mixed-effects support exists. The engine is probed exactly once here.
func New(engine MixedEffectsEngine, opts ...Option) *Fitter {
	f := &Fitter{
		engine: engine,
		log:    slog.New(slog.NewJSONHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(f)
	}

	f.caps = Capabilities{Engine: "none"}
	if engine != nil {
		f.caps.Engine = engine.Name()
		if err := engine.Available(); err != nil {
			f.log.Info("fit.mixed_probe", "engine", engine.Name(), "available", false, "reason", err.Error())
		} else {
			f.caps.MixedEffectsAvailable = true
			f.log.Info("fit.mixed_probe", "engine", engine.Name(), "available", true)
		}
	}
	return f
}

// Capabilities reports what was found when the Fitter was built.
func (f *Fitter) Capabilities() Capabilities {
	return f.caps
}

// Fit returns the result for ds under req.
func (f *Fitter) Fit(ds dataset.Dataset, req Request) Result {
	return f.FitReport(ds, req).Result
}

// FitRaw coerces rows and fits them. A row that fails coercion fails the
// fit with the coercion error as its reason.
func (f *Fitter) FitRaw(rows []dataset.RawMeasurement, req Request) Report {
	if len(rows) < 2 {
		return f.insufficient(len(rows), req)
	}
	ds, err := dataset.Parse(rows)
	if err != nil {
		e := &Error{Op: "fit.coerce", Kind: KindNumericCoercion, Err: err}
		rep := Report{
			Request:      req,
			Observations: len(rows),
			Result:       Failure("linear model failed: " + err.Error()),
			Err:          e,
		}
		f.logReport(rep)
		return rep
	}
	return f.FitReport(ds, req)
}

// FitReport fits ds and returns the result together with the outcome of
// any mixed-effects attempt.
//
// The least-squares line is always computed and, unless WithPreferMixed is
// set, always returned when it succeeds. The mixed-effects attempt only
// shapes Report.Mixed.
func (f *Fitter) FitReport(ds dataset.Dataset, req Request) Report {
	if len(ds) < 2 {
		return f.insufficient(len(ds), req)
	}

	rep := Report{
		Request:      req,
		Observations: len(ds),
		Fingerprint:  ds.Fingerprint(),
	}

	if req.wantsMixed() {
		outcome, err := f.fitMixed(ds, req.Tier)
		rep.Mixed = &outcome
		rep.MixedErr = err
		if err != nil {
			f.log.Info("fit.mixed_failed", "tier", req.Tier.String(), "reason", outcome.Message)
		}
	}

	line, err := f.fitOrdinary(ds)
	if err != nil {
		rep.Result = Failure("linear model failed: " + reason(err))
		rep.Err = err
	} else {
		rep.Result = Success(MsgLinearFitted, line.Slope, line.Intercept)
	}

	if f.preferMixed && rep.Mixed != nil && rep.Mixed.OK {
		rep.Result = rep.Mixed.result()
		rep.Err = nil
	}

	f.logReport(rep)
	return rep
}

func (f *Fitter) insufficient(n int, req Request) Report {
	rep := Report{
		Request:      req,
		Observations: n,
		Result:       Failure(MsgInsufficientData),
		Err:          &Error{Op: "fit", Kind: KindInsufficientData, Err: ErrInsufficientData},
	}
	f.logReport(rep)
	return rep
}

func (f *Fitter) fitMixed(ds dataset.Dataset, tier Tier) (MixedOutcome, error) {
	if !f.caps.MixedEffectsAvailable {
		return MixedOutcome{Message: MsgMixedUnavailable},
			&Error{Op: "fit.mixed", Kind: KindMixedUnavailable, Err: ErrMixedEffectsUnavailable}
	}

	mf, err := f.engine.Fit(ds, MixedSpec{RandomSlope: tier == RandomSlopeIntercept})
	if err == nil && (!finite(mf.Slope) || !finite(mf.Intercept)) {
		err = ErrNotConverged
	}
	if err != nil {
		kind := KindMixedFit
		if IsKind(err, KindNumericCoercion) {
			kind = KindNumericCoercion
		}
		return MixedOutcome{Attempted: true, Message: "mixed-effects model failed: " + err.Error()},
			&Error{Op: "fit.mixed", Kind: kind, Err: err}
	}

	slope, intercept := mf.Slope, mf.Intercept
	return MixedOutcome{
		Attempted:  true,
		OK:         true,
		Message:    MsgMixedFitted,
		Slope:      &slope,
		Intercept:  &intercept,
		Iterations: mf.Iterations,
	}, nil
}

func (f *Fitter) fitOrdinary(ds dataset.Dataset) (Line, error) {
	if err := ds.Validate(); err != nil {
		return Line{}, &Error{Op: "fit.ols", Kind: KindNumericCoercion, Err: err}
	}
	line, err := OLS(ds.Diameters(), ds.Circumferences())
	if err != nil {
		return Line{}, &Error{Op: "fit.ols", Kind: KindOrdinaryFit, Err: err}
	}
	return line, nil
}

func (f *Fitter) logReport(rep Report) {
	attrs := []any{
		"tier", rep.Request.Tier.String(),
		"allow_mixed", rep.Request.AllowMixedEffects,
		"observations", rep.Observations,
		"fingerprint", rep.Fingerprint,
		"ok", rep.Result.OK,
		"message", rep.Result.Message,
	}
	if slope, ok := rep.Result.Estimate(); ok {
		attrs = append(attrs, "slope", slope, "intercept", *rep.Result.Intercept)
	}
	if rep.Mixed != nil {
		attrs = append(attrs, "mixed_ok", rep.Mixed.OK, "mixed_message", rep.Mixed.Message)
	}
	f.log.Info("fit.completed", attrs...)
}

// reason strips the operation prefix from err for user-facing messages.
func reason(err error) string {
	var fe *Error
	if errors.As(err, &fe) && fe.Err != nil {
		return fe.Err.Error()
	}
	return err.Error()
}
