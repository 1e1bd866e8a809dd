package plot

import (
	"github.com/lucasb-eyer/go-colorful"
	"github.com/wcharczuk/go-chart/v2/drawing"
)

// Parameters of the specimen palette, in CIE LCh(uv).
const (
	paletteStartHue  = 15.0
	paletteChroma    = 1.0
	paletteLuminance = 0.65
)

// AccentColor is used for the fitted line and its label.
const AccentColor = "#000000"

// Palette returns n evenly spaced hues, starting at 15°.
func Palette(n int) []colorful.Color {
	colors := make([]colorful.Color, n)
	for i := range colors {
		hue := paletteStartHue + float64(i)*360/float64(n)
		colors[i] = colorful.LuvLCh(paletteLuminance, paletteChroma, hue).Clamped()
	}
	return colors
}

// assignColors maps each name to its palette colour, in order.
func assignColors(names []string) map[string]colorful.Color {
	palette := Palette(len(names))
	out := make(map[string]colorful.Color, len(names))
	for i, name := range names {
		out[name] = palette[i]
	}
	return out
}

func toDrawing(c colorful.Color) drawing.Color {
	r, g, b := c.RGB255()
	return drawing.Color{R: r, G: g, B: b, A: 255}
}
