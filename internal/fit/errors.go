package fit

import (
	"errors"
	"fmt"

	"github.com/benshaw2/PiDay/internal/dataset"
)

// Sentinel errors for broad classification.
var (
	ErrInsufficientData        = errors.New("need at least 2 observations")
	ErrMixedEffectsUnavailable = errors.New("mixed-effects model not available in this environment")
	ErrSingularFit             = errors.New("boundary (singular) fit")
	ErrNotConverged            = errors.New("did not converge")
	ErrTooFewGroups            = errors.New("fewer than 2 groups")
	ErrDegenerate              = errors.New("degenerate data")
)

// Kind is a coarse-grained categorization for errors.
type Kind string

const (
	KindInsufficientData Kind = "insufficient_data"
	KindNumericCoercion  Kind = "numeric_coercion"
	KindOrdinaryFit      Kind = "ordinary_fit"
	KindMixedUnavailable Kind = "mixed_unavailable"
	KindMixedFit         Kind = "mixed_fit"
	KindEncoding         Kind = "encoding"
	KindDecoding         Kind = "decoding"
)

// Error wraps an underlying error with operation context and a kind.
type Error struct {
	Op   string
	Kind Kind
	Err  error
}

func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Op, e.Kind)
	}
	return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// IsKind reports whether any *Error in err's chain has the given kind.
// Coercion failures from the dataset package count as KindNumericCoercion.
func IsKind(err error, kind Kind) bool {
	var fe *Error
	if errors.As(err, &fe) && fe.Kind == kind {
		return true
	}
	if kind == KindNumericCoercion {
		return errors.Is(err, dataset.ErrNumericCoercion)
	}
	return false
}
