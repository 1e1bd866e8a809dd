// Package imaging holds the raster helpers behind plot output and plot
// inspection.
//
// It covers five concerns:
//
//   - Choosing and applying a raster encoding from a file name (PNG, JPEG,
//     GIF), with PNG as the fallback for anything unrecognised.
//   - Staging rendered images in a per-session scratch directory and caching
//     decoded copies (Store).
//   - Measuring how much of an image is painted in a given set of colours,
//     using perceptual (CIE Lab) distance so anti-aliased edges still count.
//   - Tracing the straight line drawn in one colour (TraceLine), so a
//     rendered regression line can be read back from the pixels.
//   - Producing small captioned thumbnails for previews.
//
// # Coordinate System
//
// Pixel coordinates are 0-based with the origin at the top-left corner, X
// increasing rightward and Y increasing downward.
//
// # Thread Safety
//
// Store is safe for concurrent use. The remaining functions are stateless.
//
// # Color Representation
//
// Colours are reported as lowercase "#rrggbb" hex strings, the form produced
// by go-colorful, so they compare directly with the palette reported by the
// plot package.
package imaging
