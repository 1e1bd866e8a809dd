// Package plot draws the diagnostic chart for a fit: one dot per
// measurement, coloured by specimen, with the fitted line on top.
//
// Both axes start at zero and end 15% above the largest observed value, so
// the origin is always in view and a line through it can be judged by eye.
// Specimen colours come from an evenly spaced hue wheel in HCL space, in the
// order names first appear, so the same dataset always gets the same
// colours. The fitted line is black, which the wheel never produces.
//
// Raster output (PNG, JPEG, GIF) is drawn at the requested pixel size.
// Vector output (SVG, optionally gzip-compressed) uses the same size at
// 100 DPI, so both show the same picture.
//
// Every render returns a Result describing what was drawn (ranges, legend,
// colours, label) so callers can check the picture without decoding it.
package plot
