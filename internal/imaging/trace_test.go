package imaging

import (
	"image"
	"image/color"
	"math"
	"testing"
)

func whiteImage(width, height int) *image.RGBA {
	return solidImage(width, height, color.RGBA{255, 255, 255, 255})
}

func TestTraceLine_Diagonal(t *testing.T) {
	img := whiteImage(120, 120)
	black := color.RGBA{0, 0, 0, 255}
	for x := 10; x <= 110; x++ {
		img.Set(x, 120-x, black)
	}
	// A label-sized block and some stray pixels in the same colour.
	for y := 90; y < 96; y++ {
		for x := 80; x < 90; x++ {
			img.Set(x, y, black)
		}
	}
	img.Set(5, 5, black)
	img.Set(115, 115, black)

	seg, err := TraceLine(img, "#000000", 0)
	if err != nil {
		t.Fatalf("TraceLine failed: %v", err)
	}
	if seg.Start != (Point{10, 110}) || seg.End != (Point{110, 10}) {
		t.Errorf("endpoints: got %v -> %v, want {10 110} -> {110 10}", seg.Start, seg.End)
	}
	if math.Abs(seg.AngleDegrees+45) > 0.5 {
		t.Errorf("AngleDegrees: got %v, want -45", seg.AngleDegrees)
	}
	if math.Abs(seg.Slope()-1) > 0.01 {
		t.Errorf("Slope: got %v, want 1", seg.Slope())
	}
	if seg.Pixels != 101 {
		t.Errorf("Pixels: got %d, want 101", seg.Pixels)
	}
	if seg.Color != "#000000" {
		t.Errorf("Color: got %s", seg.Color)
	}
}

func TestTraceLine_Thickness(t *testing.T) {
	img := whiteImage(120, 100)
	teal := color.RGBA{0, 191, 196, 255}
	for y := 49; y <= 51; y++ {
		for x := 10; x < 110; x++ {
			img.Set(x, y, teal)
		}
	}

	seg, err := TraceLine(img, "#00bfc4", 0)
	if err != nil {
		t.Fatalf("TraceLine failed: %v", err)
	}
	if seg.Start != (Point{10, 50}) || seg.End != (Point{109, 50}) {
		t.Errorf("endpoints: got %v -> %v", seg.Start, seg.End)
	}
	if seg.AngleDegrees != 0 {
		t.Errorf("AngleDegrees: got %v, want 0", seg.AngleDegrees)
	}
	if seg.ThicknessApprox != 3 {
		t.Errorf("ThicknessApprox: got %d, want 3", seg.ThicknessApprox)
	}
	if seg.Length != 99 {
		t.Errorf("Length: got %v, want 99", seg.Length)
	}
}

func TestTraceLine_BandsOfEveryThickness(t *testing.T) {
	for thickness := 1; thickness <= 6; thickness++ {
		img := whiteImage(120, 100)
		top := 50 - thickness/2
		for y := top; y < top+thickness; y++ {
			for x := 10; x < 110; x++ {
				img.Set(x, y, color.Black)
			}
		}

		seg, err := TraceLine(img, "#000000", 0)
		if err != nil {
			t.Fatalf("thickness %d: TraceLine failed: %v", thickness, err)
		}
		if seg.AngleDegrees != 0 {
			t.Errorf("thickness %d: AngleDegrees got %v, want 0", thickness, seg.AngleDegrees)
		}
		if seg.Start.X != 10 || seg.End.X != 109 || seg.Start.Y != seg.End.Y {
			t.Errorf("thickness %d: endpoints %v -> %v", thickness, seg.Start, seg.End)
		}
		if seg.Pixels != 100*thickness {
			t.Errorf("thickness %d: Pixels got %d, want %d", thickness, seg.Pixels, 100*thickness)
		}
		if seg.ThicknessApprox != thickness {
			t.Errorf("ThicknessApprox got %d, want %d", seg.ThicknessApprox, thickness)
		}
	}
}

func TestTraceLine_Vertical(t *testing.T) {
	img := whiteImage(100, 100)
	for y := 10; y <= 90; y++ {
		img.Set(50, y, color.RGBA{255, 0, 0, 255})
	}

	seg, err := TraceLine(img, "#ff0000", 0)
	if err != nil {
		t.Fatalf("TraceLine failed: %v", err)
	}
	if seg.Start != (Point{50, 10}) || seg.End != (Point{50, 90}) {
		t.Errorf("endpoints: got %v -> %v", seg.Start, seg.End)
	}
	if seg.AngleDegrees != 90 {
		t.Errorf("AngleDegrees: got %v, want 90", seg.AngleDegrees)
	}
}

func TestTraceLine_OffsetBounds(t *testing.T) {
	img := image.NewRGBA(image.Rect(20, 30, 120, 130))
	for y := 30; y < 130; y++ {
		for x := 20; x < 120; x++ {
			img.Set(x, y, color.White)
		}
	}
	for x := 40; x <= 100; x++ {
		img.Set(x, 80, color.Black)
	}

	seg, err := TraceLine(img, "#000000", 0)
	if err != nil {
		t.Fatalf("TraceLine failed: %v", err)
	}
	if seg.Start != (Point{40, 80}) || seg.End != (Point{100, 80}) {
		t.Errorf("endpoints: got %v -> %v, want image coordinates", seg.Start, seg.End)
	}
}

func TestTraceLine_Errors(t *testing.T) {
	img := whiteImage(50, 50)

	if _, err := TraceLine(img, "#000000", 0); err == nil {
		t.Error("expected error when no pixel matches")
	}
	if _, err := TraceLine(img, "black", 0); err == nil {
		t.Error("expected error for invalid colour")
	}

	img.Set(10, 10, color.Black)
	if _, err := TraceLine(img, "#000000", 0); err == nil {
		t.Error("expected error for a single pixel")
	}
}
