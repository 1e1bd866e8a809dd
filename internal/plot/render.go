package plot

import (
	"bytes"
	"fmt"
	"io"
	"log/slog"
	"math"
	"os"
	"strconv"

	"github.com/disintegration/imaging"
	"github.com/klauspost/compress/gzip"
	"github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"

	pimaging "github.com/benshaw2/PiDay/internal/imaging"
)

const (
	dotWidth  = 5
	lineWidth = 2
)

// Option configures a Renderer.
type Option func(*Renderer)

// WithLogger sets the logger used for render diagnostics.
func WithLogger(l *slog.Logger) Option {
	return func(r *Renderer) {
		if l != nil {
			r.log = l
		}
	}
}

// Renderer draws plots. It holds no per-call state.
type Renderer struct {
	log *slog.Logger
}

// New returns a Renderer.
func New(opts ...Option) *Renderer {
	r := &Renderer{log: slog.New(slog.NewJSONHandler(io.Discard, nil))}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Render draws spec and writes the encoded image to w.
func (r *Renderer) Render(spec Spec, w io.Writer) (*Result, error) {
	spec, err := spec.normalize()
	if err != nil {
		return nil, err
	}

	res, ch := layout(spec)

	cw := &countingWriter{w: w}
	switch spec.Format {
	case Vector:
		err = renderVector(ch, cw, spec.Encoding == EncodingSVGZ)
	default:
		err = renderRaster(ch, cw, spec.Encoding)
	}
	if err != nil {
		return nil, err
	}
	res.Bytes = cw.n

	r.log.Debug("plot.rendered",
		"format", res.Format.String(),
		"encoding", res.Encoding,
		"width", res.Width,
		"height", res.Height,
		"points", len(spec.Dataset),
		"specimens", len(res.PointColors),
		"x_max", res.XRange.Max,
		"y_max", res.YRange.Max,
		"bytes", res.Bytes,
	)
	return res, nil
}

// RenderFile renders spec into the file at path. An Unset format is taken
// from the extension, as is the encoding when it is empty and the extension
// agrees with the format.
func (r *Renderer) RenderFile(spec Spec, path string) (*Result, error) {
	format, encoding := ForPath(path)
	switch {
	case spec.Format == Unset:
		spec.Format, spec.Encoding = format, encoding
	case spec.Encoding == "" && spec.Format == format:
		spec.Encoding = encoding
	}

	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create plot file: %w", err)
	}
	res, err := r.Render(spec, f)
	if cerr := f.Close(); err == nil && cerr != nil {
		err = fmt.Errorf("failed to write plot file: %w", cerr)
	}
	if err != nil {
		os.Remove(path)
		return nil, err
	}
	return res, nil
}

// layout builds the chart for a normalized spec and the Result describing
// it. Bytes is left for the caller.
func layout(spec Spec) (*Result, chart.Chart) {
	maxD, maxC := spec.Dataset.Max()
	xr := Range{Min: 0, Max: upperBound(maxD)}
	yr := Range{Min: 0, Max: upperBound(maxC)}

	names, rows := spec.Dataset.Groups()
	colors := assignColors(names)

	res := &Result{
		Format:      spec.Format,
		Encoding:    spec.Encoding,
		MimeType:    mimeType(spec.Encoding),
		Width:       spec.Width,
		Height:      spec.Height,
		XRange:      xr,
		YRange:      yr,
		Legend:      []LegendEntry{},
		PointColors: make(map[string]string, len(names)),
	}

	var series, legend []chart.Series
	for i, name := range names {
		xs := make([]float64, len(rows[i]))
		ys := make([]float64, len(rows[i]))
		for j, row := range rows[i] {
			xs[j] = spec.Dataset[row].Diameter
			ys[j] = spec.Dataset[row].Circumference
		}
		col := toDrawing(colors[name])
		series = append(series, chart.ContinuousSeries{
			Name:    name,
			XValues: xs,
			YValues: ys,
			Style:   pointStyle(col),
		})
		legend = append(legend, chart.ContinuousSeries{
			Name:    name,
			XValues: xs,
			YValues: ys,
			Style:   chart.Style{StrokeColor: col, StrokeWidth: dotWidth},
		})
		res.PointColors[name] = colors[name].Hex()
	}
	if len(names) > 1 {
		for _, name := range names {
			res.Legend = append(res.Legend, LegendEntry{Name: name, Color: colors[name].Hex()})
		}
	}

	if spec.hasLine() {
		slope, intercept := *spec.Slope, *spec.Intercept
		accent := drawing.ColorFromHex(AccentColor)
		res.LineColor = AccentColor
		res.Label = Label(slope)

		if x0, x1, ok := clipLine(slope, intercept, xr, yr); ok {
			series = append(series,
				chart.ContinuousSeries{
					Name:    "fit",
					XValues: []float64{x0, x1},
					YValues: []float64{intercept + slope*x0, intercept + slope*x1},
					Style:   chart.Style{StrokeColor: accent, StrokeWidth: lineWidth},
				},
				chart.AnnotationSeries{
					Name: "label",
					Style: chart.Style{
						FontColor:   accent,
						StrokeColor: accent,
						FillColor:   drawing.ColorWhite,
					},
					Annotations: []chart.Value2{{
						XValue: x1,
						YValue: intercept + slope*x1,
						Label:  res.Label,
					}},
				},
			)
		}
	}

	ch := chart.Chart{
		Width:      spec.Width,
		Height:     spec.Height,
		DPI:        DPI,
		Background: chart.Style{Padding: chart.Box{Top: 20, Left: 16, Right: 20, Bottom: 16}},
		XAxis: chart.XAxis{
			Name:  "Diameter",
			Range: &chart.ContinuousRange{Min: xr.Min, Max: xr.Max},
		},
		YAxis: chart.YAxis{
			Name:  "Circumference",
			Range: &chart.ContinuousRange{Min: yr.Min, Max: yr.Max},
		},
		Series: series,
	}
	if len(names) > 1 {
		key := chart.Chart{Series: legend}
		ch.Elements = []chart.Renderable{chart.Legend(&key)}
	}
	return res, ch
}

// pointStyle draws dots without connecting lines.
func pointStyle(col drawing.Color) chart.Style {
	return chart.Style{
		StrokeWidth: chart.Disabled,
		DotWidth:    dotWidth,
		DotColor:    col,
	}
}

func renderRaster(ch chart.Chart, w io.Writer, encoding string) error {
	var buf bytes.Buffer
	if err := ch.Render(chart.PNG, &buf); err != nil {
		return fmt.Errorf("failed to render chart: %w", err)
	}
	return pimaging.Transcode(w, buf.Bytes(), rasterFormat(encoding))
}

func rasterFormat(encoding string) imaging.Format {
	switch encoding {
	case EncodingJPEG:
		return imaging.JPEG
	case EncodingGIF:
		return imaging.GIF
	default:
		return imaging.PNG
	}
}

func rasterEncoding(f imaging.Format) string {
	switch f {
	case imaging.JPEG:
		return EncodingJPEG
	case imaging.GIF:
		return EncodingGIF
	default:
		return EncodingPNG
	}
}

func renderVector(ch chart.Chart, w io.Writer, compress bool) error {
	var buf bytes.Buffer
	if err := ch.Render(chart.SVG, &buf); err != nil {
		return fmt.Errorf("failed to render chart: %w", err)
	}
	svg := withPhysicalSize(buf.Bytes(), ch.Width, ch.Height)

	if !compress {
		_, err := w.Write(svg)
		return err
	}
	zw, err := gzip.NewWriterLevel(w, gzip.BestCompression)
	if err != nil {
		return err
	}
	if _, err := zw.Write(svg); err != nil {
		zw.Close()
		return err
	}
	return zw.Close()
}

// withPhysicalSize gives the root element a width and height in inches at
// DPI, next to the pixel viewBox go-chart writes.
func withPhysicalSize(svg []byte, width, height int) []byte {
	inches := func(px int) string {
		return strconv.FormatFloat(float64(px)/DPI, 'f', -1, 64) + "in"
	}
	viewBox := fmt.Sprintf(`viewBox="0 0 %d %d"`, width, height)
	sized := fmt.Sprintf(`width="%s" height="%s" %s`, inches(width), inches(height), viewBox)
	return bytes.Replace(svg, []byte(viewBox), []byte(sized), 1)
}

// upperBound is the axis maximum for the largest observed value.
func upperBound(v float64) float64 {
	if v <= 0 {
		return 1
	}
	return v * Headroom
}

// clipLine returns the part of [0, xr.Max] on which the line stays inside
// yr.
func clipLine(slope, intercept float64, xr, yr Range) (x0, x1 float64, ok bool) {
	x0, x1 = xr.Min, xr.Max
	if slope == 0 {
		return x0, x1, intercept >= yr.Min && intercept <= yr.Max
	}
	a := (yr.Min - intercept) / slope
	b := (yr.Max - intercept) / slope
	x0 = max(x0, min(a, b))
	x1 = min(x1, max(a, b))
	return x0, x1, x1 > x0
}

// Label is the annotation text for slope.
func Label(slope float64) string {
	return "π ≈ " + strconv.FormatFloat(math.Round(slope*1e4)/1e4, 'f', -1, 64)
}

func mimeType(encoding string) string {
	switch encoding {
	case EncodingSVG, EncodingSVGZ:
		return "image/svg+xml"
	default:
		return pimaging.MimeType(rasterFormat(encoding))
	}
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

type countingWriter struct {
	w io.Writer
	n int
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += n
	return n, err
}
