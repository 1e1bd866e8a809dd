package dataset

import (
	"bytes"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/cespare/xxhash/v2"
)

// ErrNumericCoercion is matched by every CoercionError.
var ErrNumericCoercion = errors.New("value is not a finite number")

var errMissing = errors.New("missing value")

// Measurement is one diameter/circumference pair taken from a specimen.
type Measurement struct {
	Name          string  `json:"name"`
	Diameter      float64 `json:"diameter"`
	Circumference float64 `json:"circumference"`
}

// Dataset is an ordered sequence of measurements. Functions in this module
// never modify a Dataset they are handed.
type Dataset []Measurement

// Names returns the distinct specimen names in order of first appearance.
func (d Dataset) Names() []string {
	seen := make(map[string]struct{}, len(d))
	names := make([]string, 0)
	for _, m := range d {
		if _, ok := seen[m.Name]; ok {
			continue
		}
		seen[m.Name] = struct{}{}
		names = append(names, m.Name)
	}
	return names
}

// Diameters returns a fresh slice of the diameter column.
func (d Dataset) Diameters() []float64 {
	xs := make([]float64, len(d))
	for i, m := range d {
		xs[i] = m.Diameter
	}
	return xs
}

// Circumferences returns a fresh slice of the circumference column.
func (d Dataset) Circumferences() []float64 {
	ys := make([]float64, len(d))
	for i, m := range d {
		ys[i] = m.Circumference
	}
	return ys
}

// Groups returns the row indices of each specimen, keyed in the same order
// as Names.
func (d Dataset) Groups() (names []string, rows [][]int) {
	index := make(map[string]int)
	for i, m := range d {
		g, ok := index[m.Name]
		if !ok {
			g = len(names)
			index[m.Name] = g
			names = append(names, m.Name)
			rows = append(rows, nil)
		}
		rows[g] = append(rows[g], i)
	}
	return names, rows
}

// Validate reports the first row holding a NaN or infinite value.
func (d Dataset) Validate() error {
	for i, m := range d {
		if !isFinite(m.Diameter) {
			return &CoercionError{Row: i + 1, Field: "Diameter", Value: formatNumber(m.Diameter)}
		}
		if !isFinite(m.Circumference) {
			return &CoercionError{Row: i + 1, Field: "Circumference", Value: formatNumber(m.Circumference)}
		}
	}
	return nil
}

// Max returns the largest diameter and circumference in the dataset, or
// zeros when it is empty.
func (d Dataset) Max() (diameter, circumference float64) {
	if len(d) == 0 {
		return 0, 0
	}
	diameter, circumference = d[0].Diameter, d[0].Circumference
	for _, m := range d[1:] {
		diameter = math.Max(diameter, m.Diameter)
		circumference = math.Max(circumference, m.Circumference)
	}
	return diameter, circumference
}

// Fingerprint hashes the canonical CSV form so that two datasets with the
// same rows in the same order share a fingerprint.
func (d Dataset) Fingerprint() uint64 {
	var buf bytes.Buffer
	_ = WriteCSV(&buf, d)
	return xxhash.Sum64(buf.Bytes())
}

// RawMeasurement is a row as typed by a user or read from CSV, before any
// numeric coercion.
type RawMeasurement struct {
	Name          string `json:"name"`
	Diameter      string `json:"diameter"`
	Circumference string `json:"circumference"`
}

// CoercionError describes a value that could not be read as a finite number.
type CoercionError struct {
	Row   int // 1-based data row, header excluded
	Field string
	Value string
	Err   error
}

func (e *CoercionError) Error() string {
	if strings.TrimSpace(e.Value) == "" {
		return fmt.Sprintf("row %d: %s is missing", e.Row, e.Field)
	}
	msg := fmt.Sprintf("row %d: %s %q is not a finite number", e.Row, e.Field, e.Value)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *CoercionError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrNumericCoercion}
	}
	return []error{ErrNumericCoercion, e.Err}
}

// Coerce converts r into a Measurement. row is used only for error messages.
func (r RawMeasurement) Coerce(row int) (Measurement, error) {
	d, err := parseNumber(r.Diameter)
	if err != nil {
		return Measurement{}, &CoercionError{Row: row, Field: "Diameter", Value: r.Diameter, Err: err}
	}
	c, err := parseNumber(r.Circumference)
	if err != nil {
		return Measurement{}, &CoercionError{Row: row, Field: "Circumference", Value: r.Circumference, Err: err}
	}
	return Measurement{Name: r.Name, Diameter: d, Circumference: c}, nil
}

// Parse coerces every row, stopping at the first failure.
func Parse(rows []RawMeasurement) (Dataset, error) {
	ds := make(Dataset, 0, len(rows))
	for i, r := range rows {
		m, err := r.Coerce(i + 1)
		if err != nil {
			return nil, err
		}
		ds = append(ds, m)
	}
	return ds, nil
}

func parseNumber(s string) (float64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, errMissing
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		var ne *strconv.NumError
		if errors.As(err, &ne) {
			return 0, ne.Err
		}
		return 0, err
	}
	if !isFinite(v) {
		return 0, errors.New("non-finite value")
	}
	return v, nil
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

func formatNumber(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
