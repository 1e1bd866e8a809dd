package plot

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPalette(t *testing.T) {
	for n := 1; n <= 12; n++ {
		colors := Palette(n)
		require.Len(t, colors, n)

		seen := map[string]bool{}
		for _, c := range colors {
			assert.True(t, c.IsValid())
			assert.NotEqual(t, AccentColor, c.Hex())
			assert.False(t, seen[c.Hex()], "duplicate colour %s for n=%d", c.Hex(), n)
			seen[c.Hex()] = true
		}
	}
}

func TestPalette_KnownColours(t *testing.T) {
	hexes := func(n int) []string {
		var out []string
		for _, c := range Palette(n) {
			out = append(out, c.Hex())
		}
		return out
	}
	assert.Equal(t, []string{"#f8766d", "#00bfc4"}, hexes(2))
	assert.Equal(t, []string{"#f8766d", "#00ba38", "#619cff"}, hexes(3))

	_, _, h := Palette(4)[0].LuvLCh()
	assert.InDelta(t, 15, h, 0.5)
}

func TestLabel(t *testing.T) {
	tests := map[float64]string{
		3.14:      "π ≈ 3.14",
		3.14159:   "π ≈ 3.1416",
		3.1415:    "π ≈ 3.1415",
		3:         "π ≈ 3",
		-2.71828:  "π ≈ -2.7183",
		3.1415926: "π ≈ 3.1416",
	}
	for slope, want := range tests {
		assert.Equal(t, want, Label(slope))
	}
}

func TestClipLine(t *testing.T) {
	xr, yr := Range{0, 23}, Range{0, 72.22}

	x0, x1, ok := clipLine(3.14, 0, xr, yr)
	require.True(t, ok)
	assert.Equal(t, 0.0, x0)
	assert.InDelta(t, 23, x1, 1e-9)

	x0, x1, ok = clipLine(3.14, -10, xr, yr)
	require.True(t, ok)
	assert.InDelta(t, 10/3.14, x0, 1e-9)
	assert.InDelta(t, 23, x1, 1e-9)

	x0, x1, ok = clipLine(10, 0, xr, yr)
	require.True(t, ok)
	assert.Equal(t, 0.0, x0)
	assert.InDelta(t, 7.222, x1, 1e-9)

	_, _, ok = clipLine(0, 100, xr, yr)
	assert.False(t, ok)
	_, _, ok = clipLine(-1, -5, xr, yr)
	assert.False(t, ok)

	_, _, ok = clipLine(math.Copysign(0, -1), 5, xr, yr)
	assert.True(t, ok)
}

func TestParseFormat(t *testing.T) {
	for in, want := range map[string]Format{
		"": Unset, "raster": Raster, "PNG": Raster, "jpg": Raster,
		"vector": Vector, "svg": Vector, "svgz": Vector,
	} {
		got, err := ParseFormat(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
	_, err := ParseFormat("pdf")
	assert.ErrorIs(t, err, ErrInvalidSpec)
}
