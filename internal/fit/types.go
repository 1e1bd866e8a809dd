package fit

import (
	"fmt"
	"math"
)

// Messages surfaced to users verbatim.
const (
	MsgInsufficientData = "Need at least 2 observations"
	MsgLinearFitted     = "linear model fitted"
	MsgMixedFitted      = "mixed-effects model fitted"
	MsgMixedUnavailable = "mixed-effects model not available in this environment"
)

// Tier selects the model family a caller asks for.
type Tier int

const (
	FixedOnly            Tier = 1
	RandomIntercept      Tier = 2
	RandomSlopeIntercept Tier = 3
)

// ParseTier maps the numeric tier used by forms and flags to a Tier.
func ParseTier(n int) (Tier, error) {
	t := Tier(n)
	switch t {
	case FixedOnly, RandomIntercept, RandomSlopeIntercept:
		return t, nil
	}
	return 0, fmt.Errorf("unknown model tier %d (want 1, 2 or 3)", n)
}

func (t Tier) String() string {
	switch t {
	case FixedOnly:
		return "fixed"
	case RandomIntercept:
		return "random-intercept"
	case RandomSlopeIntercept:
		return "random-slope-intercept"
	}
	return fmt.Sprintf("tier(%d)", int(t))
}

// Formula is the model formula the tier corresponds to.
func (t Tier) Formula() string {
	switch t {
	case RandomIntercept:
		return "Circumference ~ Diameter + (1 | Name)"
	case RandomSlopeIntercept:
		return "Circumference ~ Diameter + (1 + Diameter | Name)"
	}
	return "Circumference ~ Diameter"
}

// Request is what a caller asks the Fitter to do. AllowMixedEffects=false
// forces FixedOnly behaviour whatever the tier.
type Request struct {
	Tier              Tier `json:"tier"`
	AllowMixedEffects bool `json:"allow_mixed_effects"`
}

func (r Request) wantsMixed() bool {
	return r.AllowMixedEffects && (r.Tier == RandomIntercept || r.Tier == RandomSlopeIntercept)
}

// Capabilities records what the current environment can fit. It is
// determined once when a Fitter is built.
type Capabilities struct {
	MixedEffectsAvailable bool   `json:"mixed_effects_available"`
	Engine                string `json:"engine"`
}

// Result is the outcome of a fit. OK=true implies Slope and Intercept are
// both set and finite; OK=false implies both are nil.
type Result struct {
	OK        bool     `json:"ok"`
	Message   string   `json:"message"`
	Slope     *float64 `json:"slope,omitempty"`
	Intercept *float64 `json:"intercept,omitempty"`
}

// Success builds an OK result. Non-finite coefficients produce a failure
// instead so that NaN or Inf can never leak out as a valid estimate.
func Success(msg string, slope, intercept float64) Result {
	if !finite(slope) || !finite(intercept) {
		return Failure(fmt.Sprintf("non-finite coefficients (slope=%v, intercept=%v)", slope, intercept))
	}
	return Result{OK: true, Message: msg, Slope: &slope, Intercept: &intercept}
}

// Failure builds a failed result carrying msg.
func Failure(msg string) Result {
	return Result{OK: false, Message: msg}
}

// Equal compares two results by value.
func (r Result) Equal(o Result) bool {
	return r.OK == o.OK && r.Message == o.Message &&
		floatPtrEqual(r.Slope, o.Slope) && floatPtrEqual(r.Intercept, o.Intercept)
}

// Estimate returns the slope, the π estimate, when the result is OK.
func (r Result) Estimate() (float64, bool) {
	if !r.OK || r.Slope == nil {
		return 0, false
	}
	return *r.Slope, true
}

// MixedOutcome is the informational record of a mixed-effects attempt.
type MixedOutcome struct {
	Attempted  bool     `json:"attempted"`
	OK         bool     `json:"ok"`
	Message    string   `json:"message"`
	Slope      *float64 `json:"slope,omitempty"`
	Intercept  *float64 `json:"intercept,omitempty"`
	Iterations int      `json:"iterations,omitempty"`
}

func (m MixedOutcome) result() Result {
	if !m.OK {
		return Failure(m.Message)
	}
	return Success(m.Message, *m.Slope, *m.Intercept)
}

// Report is the in-process envelope around a Result. Only Result crosses
// process boundaries.
type Report struct {
	Result       Result        `json:"result"`
	Request      Request       `json:"request"`
	Mixed        *MixedOutcome `json:"mixed,omitempty"`
	Observations int           `json:"observations"`
	Fingerprint  uint64        `json:"fingerprint"`

	// Err is the typed cause behind a failed Result, nil on success.
	Err error `json:"-"`
	// MixedErr is the typed cause behind a failed mixed-effects attempt.
	MixedErr error `json:"-"`
}

func floatPtrEqual(a, b *float64) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
