package codec

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/benshaw2/PiDay/internal/fit"
)

const (
	// Separator splits the fields of a wire line.
	Separator = "|"
	// Escape replaces Separator inside messages.
	Escape = "/"
	// Absent marks a missing coefficient.
	Absent = "NA"

	fieldCount = 4
	okTrue     = "TRUE"
	okFalse    = "FALSE"
)

var (
	// ErrEncoding is the root of every encode failure.
	ErrEncoding = errors.New("encoding failure")
	// ErrDecoding is the root of every decode failure.
	ErrDecoding = errors.New("decoding failure")
)

func encodeErr(format string, args ...any) error {
	return &fit.Error{
		Op:   "codec.encode",
		Kind: fit.KindEncoding,
		Err:  fmt.Errorf("%w: "+format, append([]any{ErrEncoding}, args...)...),
	}
}

func decodeErr(format string, args ...any) error {
	return &fit.Error{
		Op:   "codec.decode",
		Kind: fit.KindDecoding,
		Err:  fmt.Errorf("%w: "+format, append([]any{ErrDecoding}, args...)...),
	}
}

// Encode renders r as a wire line.
//
// A successful result must carry two finite coefficients. A failed result
// always encodes both coefficients as NA.
func Encode(r fit.Result) (string, error) {
	flag, slope, intercept := okFalse, Absent, Absent
	if r.OK {
		if r.Slope == nil || r.Intercept == nil {
			return "", encodeErr("successful result without coefficients")
		}
		if !finite(*r.Slope) || !finite(*r.Intercept) {
			return "", encodeErr("non-finite coefficients (slope=%v, intercept=%v)", *r.Slope, *r.Intercept)
		}
		flag = okTrue
		slope = formatNumber(*r.Slope)
		intercept = formatNumber(*r.Intercept)
	}

	msg := strings.ReplaceAll(r.Message, Separator, Escape)
	return strings.Join([]string{flag, msg, slope, intercept}, Separator), nil
}

// Decode parses a wire line. Coefficients that fail to parse are treated as
// absent; coefficients on a FALSE line are ignored.
func Decode(line string) (fit.Result, error) {
	fields := strings.Split(line, Separator)
	if len(fields) != fieldCount {
		return fit.Result{}, decodeErr("want %d fields, got %d in %q", fieldCount, len(fields), line)
	}

	if fields[0] != okTrue {
		return fit.Failure(fields[1]), nil
	}

	slope, okSlope := parseNumber(fields[2])
	intercept, okIntercept := parseNumber(fields[3])
	if !okSlope || !okIntercept {
		return fit.Result{}, decodeErr("TRUE line without coefficients: %q", line)
	}
	return fit.Result{OK: true, Message: fields[1], Slope: &slope, Intercept: &intercept}, nil
}

func formatNumber(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

func parseNumber(s string) (float64, bool) {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || !finite(v) {
		return 0, false
	}
	return v, true
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
