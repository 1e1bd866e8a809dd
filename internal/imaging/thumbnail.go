package imaging

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	"image/color"
	"image/draw"

	"github.com/disintegration/imaging"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

// captionPadding surrounds caption text on every side.
const captionPadding = 3

// ThumbnailResult contains a scaled-down preview.
type ThumbnailResult struct {
	Width       int    `json:"width"`
	Height      int    `json:"height"`
	ImageBase64 string `json:"image_base64"`
	MimeType    string `json:"mime_type"`
}

// Thumbnail fits img within maxWidth×maxHeight, preserving aspect ratio and
// never upscaling, then adds caption in a strip beneath it when non-empty.
// The result is PNG.
func Thumbnail(img image.Image, maxWidth, maxHeight int, caption string) (*ThumbnailResult, error) {
	if maxWidth <= 0 || maxHeight <= 0 {
		return nil, fmt.Errorf("thumbnail bounds must be positive, got %dx%d", maxWidth, maxHeight)
	}

	thumb := imaging.Fit(img, maxWidth, maxHeight, imaging.Lanczos)
	out := image.Image(thumb)
	if caption != "" {
		out = withCaption(thumb, caption)
	}

	var buf bytes.Buffer
	if err := Encode(&buf, out, imaging.PNG); err != nil {
		return nil, err
	}
	bounds := out.Bounds()
	return &ThumbnailResult{
		Width:       bounds.Dx(),
		Height:      bounds.Dy(),
		ImageBase64: base64.StdEncoding.EncodeToString(buf.Bytes()),
		MimeType:    MimeType(imaging.PNG),
	}, nil
}

func withCaption(img image.Image, caption string) *image.RGBA {
	face := basicfont.Face7x13
	strip := face.Metrics().Height.Ceil() + 2*captionPadding

	b := img.Bounds()
	canvas := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()+strip))
	draw.Draw(canvas, canvas.Bounds(), image.White, image.Point{}, draw.Src)
	draw.Draw(canvas, image.Rect(0, 0, b.Dx(), b.Dy()), img, b.Min, draw.Over)

	drawLabel(canvas, captionPadding, b.Dy()+captionPadding, caption, color.Black, color.White)
	return canvas
}

// drawLabel draws text with its top-left corner at (x, y) over a filled
// background box. Text past the right edge is clipped.
func drawLabel(img *image.RGBA, x, y int, text string, fg, bg color.Color) {
	face := basicfont.Face7x13
	metrics := face.Metrics()
	width := font.MeasureString(face, text).Ceil()

	box := image.Rect(x-1, y-1, x+width+1, y+metrics.Height.Ceil()+1).Intersect(img.Bounds())
	draw.Draw(img, box, image.NewUniform(bg), image.Point{}, draw.Src)

	d := &font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(fg),
		Face: face,
		Dot:  fixed.P(x, y+metrics.Ascent.Ceil()),
	}
	d.DrawString(text)
}
