package imaging

import (
	"image"
	"image/color"
	"testing"
)

// quadrantImage has red, green, blue and white quadrants.
func quadrantImage(width, height int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			var c color.Color
			switch {
			case x < width/2 && y < height/2:
				c = color.RGBA{255, 0, 0, 255}
			case x >= width/2 && y < height/2:
				c = color.RGBA{0, 255, 0, 255}
			case x < width/2:
				c = color.RGBA{0, 0, 255, 255}
			default:
				c = color.RGBA{255, 255, 255, 255}
			}
			img.Set(x, y, c)
		}
	}
	return img
}

func TestSampleColor(t *testing.T) {
	img := solidImage(10, 10, color.RGBA{255, 128, 64, 255})

	result, err := SampleColor(img, 5, 5)
	if err != nil {
		t.Fatalf("SampleColor failed: %v", err)
	}
	if result.Hex != "#ff8040" {
		t.Errorf("Hex: got %s, want #ff8040", result.Hex)
	}
	if result.Alpha != 255 {
		t.Errorf("Alpha: got %d, want 255", result.Alpha)
	}
	if result.HSL.H != 20 || result.HSL.S != 100 || result.HSL.L != 63 {
		t.Errorf("HSL: got %+v, want {20 100 63}", result.HSL)
	}
}

func TestSampleColor_OutOfBounds(t *testing.T) {
	img := solidImage(10, 10, color.White)
	for _, p := range []image.Point{{-1, 0}, {0, -1}, {10, 0}, {0, 10}} {
		if _, err := SampleColor(img, p.X, p.Y); err == nil {
			t.Errorf("SampleColor(%d,%d) should fail", p.X, p.Y)
		}
	}
}

func TestPaletteCoverage(t *testing.T) {
	img := quadrantImage(100, 100)

	result, err := PaletteCoverage(img, []string{"#FF0000", "#00ff00", "#000000"}, 0)
	if err != nil {
		t.Fatalf("PaletteCoverage failed: %v", err)
	}
	if result.OpaquePixels != 10000 {
		t.Errorf("OpaquePixels: got %d, want 10000", result.OpaquePixels)
	}

	want := []struct {
		hex    string
		pixels int
	}{
		{"#ff0000", 2500},
		{"#00ff00", 2500},
		{"#000000", 0},
	}
	for i, w := range want {
		got := result.Colors[i]
		if got.Hex != w.hex || got.Pixels != w.pixels {
			t.Errorf("Colors[%d]: got %s=%d, want %s=%d", i, got.Hex, got.Pixels, w.hex, w.pixels)
		}
	}
	if c, ok := result.Find("#FF0000"); !ok || c.Percentage != 25 {
		t.Errorf("Find(#FF0000): got %+v, %v", c, ok)
	}
}

func TestPaletteCoverage_NearbyShades(t *testing.T) {
	img := solidImage(10, 10, color.RGBA{252, 2, 1, 255})
	result, err := PaletteCoverage(img, []string{"#ff0000"}, 0)
	if err != nil {
		t.Fatal(err)
	}
	if result.Colors[0].Pixels != 100 {
		t.Errorf("near-identical shade should count, got %d pixels", result.Colors[0].Pixels)
	}
}

func TestPaletteCoverage_SkipsTransparent(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 4, 4))
	img.Set(0, 0, color.RGBA{0, 0, 0, 255})

	result, err := PaletteCoverage(img, []string{"#000000"}, 0)
	if err != nil {
		t.Fatal(err)
	}
	if result.OpaquePixels != 1 || result.Colors[0].Pixels != 1 {
		t.Errorf("got %+v", result)
	}
}

func TestPaletteCoverage_InvalidColour(t *testing.T) {
	if _, err := PaletteCoverage(solidImage(2, 2, color.White), []string{"red"}, 0); err == nil {
		t.Error("expected error for a non-hex colour")
	}
}

func TestDominantColors(t *testing.T) {
	img := quadrantImage(100, 100)

	result, err := DominantColors(img, 2)
	if err != nil {
		t.Fatalf("DominantColors failed: %v", err)
	}
	if len(result.Colors) != 2 {
		t.Fatalf("expected 2 colours, got %d", len(result.Colors))
	}
	for _, c := range result.Colors {
		if c.Percentage != 25 {
			t.Errorf("%s: got %.1f%%, want 25%%", c.Hex, c.Percentage)
		}
	}

	if _, err := DominantColors(img, 0); err == nil {
		t.Error("expected error for count 0")
	}
}
