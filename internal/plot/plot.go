package plot

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/benshaw2/PiDay/internal/dataset"
	pimaging "github.com/benshaw2/PiDay/internal/imaging"
)

// Default raster size in pixels.
const (
	DefaultWidth  = 800
	DefaultHeight = 600

	// DPI is used for both raster and vector output.
	DPI = 100

	// Headroom scales the largest observed value to the axis upper bound.
	Headroom = 1.15
)

// ErrInvalidSpec reports a Spec that cannot be drawn.
var ErrInvalidSpec = errors.New("invalid plot spec")

// Format is the kind of image produced.
type Format int

const (
	// Unset lets RenderFile choose from the file extension. Render treats
	// it as Raster.
	Unset Format = iota
	Raster
	Vector
)

func (f Format) String() string {
	switch f {
	case Raster:
		return "raster"
	case Vector:
		return "vector"
	default:
		return "unset"
	}
}

func (f Format) MarshalText() ([]byte, error) {
	return []byte(f.String()), nil
}

func (f *Format) UnmarshalText(b []byte) error {
	parsed, err := ParseFormat(string(b))
	if err != nil {
		return err
	}
	*f = parsed
	return nil
}

// ParseFormat accepts "raster", "vector", an encoding name such as "png" or
// "svg", or "" for Unset.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "unset", "auto":
		return Unset, nil
	case "raster", EncodingPNG, EncodingJPEG, "jpg", EncodingGIF:
		return Raster, nil
	case "vector", EncodingSVG, EncodingSVGZ:
		return Vector, nil
	}
	return Unset, fmt.Errorf("%w: unknown format %q", ErrInvalidSpec, s)
}

// Encodings refine a Format into a concrete file type.
const (
	EncodingPNG  = "png"
	EncodingJPEG = "jpeg"
	EncodingGIF  = "gif"
	EncodingSVG  = "svg"
	EncodingSVGZ = "svgz"
)

// ForPath returns the format and encoding implied by path's extension.
// Unknown extensions are PNG.
func ForPath(path string) (Format, string) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".svg":
		return Vector, EncodingSVG
	case ".svgz":
		return Vector, EncodingSVGZ
	default:
		return Raster, rasterEncoding(pimaging.FormatForPath(path))
	}
}

// Spec describes one plot.
type Spec struct {
	Dataset dataset.Dataset
	// Slope and Intercept draw the fitted line when both are set.
	Slope     *float64
	Intercept *float64

	Format Format
	// Encoding picks the file type within Format. Empty means PNG for
	// raster and SVG for vector.
	Encoding string

	// Width and Height are pixels; zero means the default size.
	Width  int
	Height int
}

// Range is a closed axis interval.
type Range struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
}

// LegendEntry pairs a specimen name with its colour.
type LegendEntry struct {
	Name  string `json:"name"`
	Color string `json:"color"`
}

// Result describes a rendered plot.
type Result struct {
	Format   Format `json:"format"`
	Encoding string `json:"encoding"`
	MimeType string `json:"mime_type"`
	Width    int    `json:"width"`
	Height   int    `json:"height"`

	XRange Range `json:"x_range"`
	YRange Range `json:"y_range"`

	// Legend is empty unless more than one specimen is present.
	Legend      []LegendEntry     `json:"legend"`
	PointColors map[string]string `json:"point_colors"`
	// LineColor and Label are empty when no line was drawn.
	LineColor string `json:"line_color,omitempty"`
	Label     string `json:"label,omitempty"`

	Bytes int `json:"bytes"`
}

// HasLine reports whether the fitted line was drawn.
func (r *Result) HasLine() bool {
	return r.LineColor != ""
}

// normalize fills defaults and checks s.
func (s Spec) normalize() (Spec, error) {
	if len(s.Dataset) == 0 {
		return s, fmt.Errorf("%w: no measurements to plot", ErrInvalidSpec)
	}
	if err := s.Dataset.Validate(); err != nil {
		return s, fmt.Errorf("%w: %v", ErrInvalidSpec, err)
	}
	if s.Width < 0 || s.Height < 0 {
		return s, fmt.Errorf("%w: negative size %dx%d", ErrInvalidSpec, s.Width, s.Height)
	}
	if s.Width == 0 {
		s.Width = DefaultWidth
	}
	if s.Height == 0 {
		s.Height = DefaultHeight
	}
	if s.Format == Unset {
		s.Format = Raster
	}

	s.Encoding = strings.ToLower(s.Encoding)
	if s.Encoding == "jpg" {
		s.Encoding = EncodingJPEG
	}
	switch s.Format {
	case Raster:
		switch s.Encoding {
		case "":
			s.Encoding = EncodingPNG
		case EncodingPNG, EncodingJPEG, EncodingGIF:
		default:
			return s, fmt.Errorf("%w: %q is not a raster encoding", ErrInvalidSpec, s.Encoding)
		}
	case Vector:
		switch s.Encoding {
		case "":
			s.Encoding = EncodingSVG
		case EncodingSVG, EncodingSVGZ:
		default:
			return s, fmt.Errorf("%w: %q is not a vector encoding", ErrInvalidSpec, s.Encoding)
		}
	default:
		return s, fmt.Errorf("%w: unknown format %d", ErrInvalidSpec, s.Format)
	}

	if (s.Slope != nil && !finite(*s.Slope)) || (s.Intercept != nil && !finite(*s.Intercept)) {
		return s, fmt.Errorf("%w: non-finite coefficients", ErrInvalidSpec)
	}
	return s, nil
}

func (s Spec) hasLine() bool {
	return s.Slope != nil && s.Intercept != nil
}
