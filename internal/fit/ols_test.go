package fit

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOLS(t *testing.T) {
	tests := []struct {
		name      string
		x, y      []float64
		slope     float64
		intercept float64
	}{
		{"through origin", []float64{10, 20, 5}, []float64{31.4, 62.8, 15.7}, 3.14, 0},
		{"offset", []float64{1, 2, 3}, []float64{4, 6, 8}, 2, 2},
		{"two points", []float64{1, 3}, []float64{1, 2}, 0.5, 0.5},
		{"noisy", []float64{1, 2, 3, 4}, []float64{3, 7, 9, 13}, 3.2, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			line, err := OLS(tt.x, tt.y)
			require.NoError(t, err)
			assert.InDelta(t, tt.slope, line.Slope, 1e-9)
			assert.InDelta(t, tt.intercept, line.Intercept, 1e-9)
		})
	}
}

func TestOLS_Degenerate(t *testing.T) {
	tests := []struct {
		name string
		x, y []float64
	}{
		{"length mismatch", []float64{1, 2}, []float64{1}},
		{"one point", []float64{1}, []float64{1}},
		{"constant x", []float64{2, 2, 2}, []float64{1, 2, 3}},
		{"nan", []float64{1, math.NaN()}, []float64{1, 2}},
		{"inf", []float64{1, 2}, []float64{math.Inf(-1), 2}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := OLS(tt.x, tt.y)
			assert.ErrorIs(t, err, ErrDegenerate)
		})
	}
}

func TestLine_At(t *testing.T) {
	l := Line{Intercept: 1, Slope: 2}
	assert.Equal(t, 21.0, l.At(10))
}
