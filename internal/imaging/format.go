package imaging

import (
	"bytes"
	"fmt"
	"image"
	"io"

	"github.com/disintegration/imaging"
)

// JPEGQuality is used for every JPEG this package writes.
const JPEGQuality = 92

// FormatForPath picks the raster encoding for path from its extension.
// PNG, JPEG and GIF are recognised; anything else is PNG.
func FormatForPath(path string) imaging.Format {
	f, err := imaging.FormatFromFilename(path)
	if err != nil {
		return imaging.PNG
	}
	switch f {
	case imaging.PNG, imaging.JPEG, imaging.GIF:
		return f
	default:
		return imaging.PNG
	}
}

// MimeType returns the media type for f.
func MimeType(f imaging.Format) string {
	switch f {
	case imaging.JPEG:
		return "image/jpeg"
	case imaging.GIF:
		return "image/gif"
	case imaging.TIFF:
		return "image/tiff"
	case imaging.BMP:
		return "image/bmp"
	default:
		return "image/png"
	}
}

// Encode writes img to w in format f.
func Encode(w io.Writer, img image.Image, f imaging.Format) error {
	if err := imaging.Encode(w, img, f, imaging.JPEGQuality(JPEGQuality)); err != nil {
		return fmt.Errorf("failed to encode %s: %w", f, err)
	}
	return nil
}

// Transcode writes the PNG in pngData to w in format f. PNG passes through
// untouched.
func Transcode(w io.Writer, pngData []byte, f imaging.Format) error {
	if f == imaging.PNG {
		_, err := w.Write(pngData)
		return err
	}
	img, err := imaging.Decode(bytes.NewReader(pngData))
	if err != nil {
		return fmt.Errorf("failed to decode image: %w", err)
	}
	return Encode(w, img, f)
}
