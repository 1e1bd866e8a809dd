package imaging

import (
	"fmt"
	"image"
	"math"
	"sort"

	"github.com/anthonynsimon/bild/clone"
	"github.com/lucasb-eyer/go-colorful"
)

// DefaultTolerance is the CIE Lab distance within which a pixel counts as a
// given colour. Roughly the point where two colours stop looking the same.
const DefaultTolerance = 0.05

// HSLColor is a colour in HSL space.
type HSLColor struct {
	H int `json:"h"` // Hue: 0-360 degrees
	S int `json:"s"` // Saturation: 0-100 percent
	L int `json:"l"` // Lightness: 0-100 percent
}

// ColorResult describes one sampled pixel.
type ColorResult struct {
	Hex   string   `json:"hex"`
	Alpha uint8    `json:"alpha"`
	HSL   HSLColor `json:"hsl"`
}

// SampleColor returns the colour at (x, y).
func SampleColor(img image.Image, x, y int) (*ColorResult, error) {
	bounds := img.Bounds()
	if x < bounds.Min.X || x >= bounds.Max.X || y < bounds.Min.Y || y >= bounds.Max.Y {
		return nil, fmt.Errorf("coordinates (%d,%d) outside image bounds", x, y)
	}

	c, _ := colorful.MakeColor(img.At(x, y))
	_, _, _, a := img.At(x, y).RGBA()
	h, s, l := c.Hsl()
	return &ColorResult{
		Hex:   c.Hex(),
		Alpha: uint8(a >> 8),
		HSL:   HSLColor{H: int(math.Round(h)) % 360, S: int(math.Round(s * 100)), L: int(math.Round(l * 100))},
	}, nil
}

// Coverage is how much of an image is painted in one colour.
type Coverage struct {
	Hex        string  `json:"hex"`
	Pixels     int     `json:"pixels"`
	Percentage float64 `json:"percentage"` // of opaque pixels, 0-100
}

// CoverageResult lists Coverage in the order the colours were requested.
type CoverageResult struct {
	OpaquePixels int        `json:"opaque_pixels"`
	Colors       []Coverage `json:"colors"`
}

// Find returns the coverage entry for hex.
func (r *CoverageResult) Find(hex string) (Coverage, bool) {
	want, err := colorful.Hex(hex)
	if err != nil {
		return Coverage{}, false
	}
	for _, c := range r.Colors {
		if got, err := colorful.Hex(c.Hex); err == nil && got == want {
			return c, true
		}
	}
	return Coverage{}, false
}

// PaletteCoverage counts, for each colour in hexes, the opaque pixels whose
// nearest palette colour it is, provided that distance is within tolerance.
// A tolerance of 0 or less means DefaultTolerance.
func PaletteCoverage(img image.Image, hexes []string, tolerance float64) (*CoverageResult, error) {
	if tolerance <= 0 {
		tolerance = DefaultTolerance
	}
	palette := make([]colorful.Color, len(hexes))
	for i, h := range hexes {
		c, err := colorful.Hex(h)
		if err != nil {
			return nil, fmt.Errorf("invalid colour %q: %w", h, err)
		}
		palette[i] = c
	}

	counts, opaque := histogram(img)
	result := &CoverageResult{
		OpaquePixels: opaque,
		Colors:       make([]Coverage, len(hexes)),
	}
	for i, c := range palette {
		result.Colors[i].Hex = c.Hex()
	}

	for key, n := range counts {
		px := unpack(key)
		best, bestDist := -1, tolerance
		for i, c := range palette {
			if d := px.DistanceLab(c); d <= bestDist {
				best, bestDist = i, d
			}
		}
		if best >= 0 {
			result.Colors[best].Pixels += n
		}
	}
	if opaque > 0 {
		for i := range result.Colors {
			result.Colors[i].Percentage = float64(result.Colors[i].Pixels) / float64(opaque) * 100
		}
	}
	return result, nil
}

// DominantColors returns up to count of the most frequent opaque colours,
// after quantising each channel to 16 levels.
func DominantColors(img image.Image, count int) (*CoverageResult, error) {
	if count <= 0 {
		return nil, fmt.Errorf("count must be positive, got %d", count)
	}

	counts, opaque := histogram(img)
	quantised := make(map[uint32]int)
	for key, n := range counts {
		quantised[key&0xF0F0F0] += n
	}

	colors := make([]Coverage, 0, len(quantised))
	for key, n := range quantised {
		colors = append(colors, Coverage{
			Hex:        unpack(key).Hex(),
			Pixels:     n,
			Percentage: float64(n) / float64(opaque) * 100,
		})
	}
	sort.Slice(colors, func(i, j int) bool {
		if colors[i].Pixels != colors[j].Pixels {
			return colors[i].Pixels > colors[j].Pixels
		}
		return colors[i].Hex < colors[j].Hex
	})
	if len(colors) > count {
		colors = colors[:count]
	}
	return &CoverageResult{OpaquePixels: opaque, Colors: colors}, nil
}

// histogram counts opaque pixels by packed 0xRRGGBB value. Pixels with
// partial alpha are composited over white first.
func histogram(img image.Image) (map[uint32]int, int) {
	rgba := clone.AsShallowRGBA(img)
	counts := make(map[uint32]int)
	opaque := 0
	b := rgba.Bounds()
	for y := b.Min.Y; y < b.Max.Y; y++ {
		row := rgba.Pix[(y-b.Min.Y)*rgba.Stride:]
		for x := 0; x < b.Dx(); x++ {
			p := row[x*4 : x*4+4]
			if p[3] == 0 {
				continue
			}
			counts[overWhite(p)]++
			opaque++
		}
	}
	return counts, opaque
}

// overWhite packs an alpha-premultiplied RGBA pixel composited over white.
func overWhite(p []byte) uint32 {
	fill := 255 - uint32(p[3])
	return (uint32(p[0])+fill)<<16 | (uint32(p[1])+fill)<<8 | (uint32(p[2]) + fill)
}

func unpack(key uint32) colorful.Color {
	return colorful.Color{
		R: float64(key>>16&0xFF) / 255,
		G: float64(key>>8&0xFF) / 255,
		B: float64(key&0xFF) / 255,
	}
}
