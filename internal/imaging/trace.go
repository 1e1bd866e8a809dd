package imaging

import (
	"fmt"
	"image"
	"math"

	"github.com/anthonynsimon/bild/clone"
	"github.com/lucasb-eyer/go-colorful"
	"gonum.org/v1/gonum/stat"
)

// Point is a pixel position.
type Point struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// Segment is a straight line found in an image.
type Segment struct {
	Start Point `json:"start"`
	End   Point `json:"end"`
	// AngleDegrees is measured from Start to End in image coordinates, so a
	// line rising to the right has a negative angle.
	AngleDegrees    float64 `json:"angle_degrees"`
	Length          float64 `json:"length"`
	Color           string  `json:"color"`
	Pixels          int     `json:"pixels"`
	ThicknessApprox int     `json:"thickness_approx"`
}

// Slope is the line's rise over run with Y pointing up, the way a chart
// reads.
func (s *Segment) Slope() float64 {
	return -float64(s.End.Y-s.Start.Y) / float64(s.End.X-s.Start.X)
}

const (
	houghAngles = 180
	// inlierDist is how far, in pixels, a pixel may sit from the line and
	// still belong to it.
	inlierDist = 2.0
)

// TraceLine finds the longest straight line painted in hex. Pixels of that
// colour that are not on the line, such as a label, are ignored.
//
// The line is located with a Hough transform over the matching pixels and
// then refined by least squares over the pixels close to it.
func TraceLine(img image.Image, hex string, tolerance float64) (*Segment, error) {
	if tolerance <= 0 {
		tolerance = DefaultTolerance
	}
	target, err := colorful.Hex(hex)
	if err != nil {
		return nil, fmt.Errorf("invalid colour %q: %w", hex, err)
	}

	points := matchingPixels(img, target, tolerance)
	if len(points) < 2 {
		return nil, fmt.Errorf("no line in colour %s", target.Hex())
	}

	bounds := img.Bounds()
	maxDist := int(math.Hypot(float64(bounds.Dx()), float64(bounds.Dy()))) + 1
	accumulator := make([][]int, maxDist*2)
	for i := range accumulator {
		accumulator[i] = make([]int, houghAngles)
	}
	cos, sin := make([]float64, houghAngles), make([]float64, houghAngles)
	for theta := range cos {
		angle := float64(theta) * math.Pi / houghAngles
		cos[theta], sin[theta] = math.Cos(angle), math.Sin(angle)
	}

	peak := 0
	for _, p := range points {
		for theta := 0; theta < houghAngles; theta++ {
			rho := int(math.Round(float64(p.X)*cos[theta]+float64(p.Y)*sin[theta])) + maxDist
			accumulator[rho][theta]++
			peak = max(peak, accumulator[rho][theta])
		}
	}

	// A band several pixels thick puts near-identical counts in neighbouring
	// cells, some of them slightly tilted. Among the cells close to the peak,
	// keep the one holding the most pixels within inlierDist, then the one
	// they sit tightest around.
	var best band
	for r, row := range accumulator {
		for theta, votes := range row {
			if votes*10 < peak*9 {
				continue
			}
			b := collectBand(points, float64(r-maxDist), cos[theta], sin[theta], inlierDist)
			b.theta = theta
			if len(b.inliers) > len(best.inliers) ||
				(len(b.inliers) == len(best.inliers) && b.spread < best.spread) {
				best = b
			}
		}
	}
	if len(best.inliers) < 2 {
		return nil, fmt.Errorf("no line in colour %s", target.Hex())
	}

	// Widen the window to the band's own thickness.
	if half := float64(best.thickness())/2 + 0.5; half > inlierDist {
		theta := best.theta
		best = collectBand(points, best.rho, cos[theta], sin[theta], half)
		best.theta = theta
	}
	inliers := best.inliers
	bestTheta := best.theta

	seg := fitSegment(inliers, math.Abs(sin[bestTheta]) >= 0.5)
	seg.Start.X += bounds.Min.X
	seg.Start.Y += bounds.Min.Y
	seg.End.X += bounds.Min.X
	seg.End.Y += bounds.Min.Y
	seg.Color = target.Hex()
	return seg, nil
}

type band struct {
	rho     float64
	theta   int
	inliers []Point
	// spread is the summed squared distance of the inliers from the line.
	spread  float64
	// extent is the inliers' span along the line.
	extent  float64
}

func collectBand(points []Point, rho, cos, sin, dist float64) band {
	b := band{rho: rho}
	lo, hi := math.Inf(1), math.Inf(-1)
	for _, p := range points {
		x, y := float64(p.X), float64(p.Y)
		d := x*cos + y*sin - rho
		if math.Abs(d) > dist {
			continue
		}
		b.inliers = append(b.inliers, p)
		b.spread += d * d
		t := y*cos - x*sin
		lo, hi = math.Min(lo, t), math.Max(hi, t)
	}
	if len(b.inliers) > 0 {
		b.extent = hi - lo
	}
	return b
}

func (b band) thickness() int {
	return max(1, int(math.Round(float64(len(b.inliers))/(b.extent+1))))
}

// fitSegment regresses the inliers along the axis the line runs closest to
// and spans their extent on that axis.
func fitSegment(points []Point, shallow bool) *Segment {
	along := make([]float64, len(points))
	across := make([]float64, len(points))
	for i, p := range points {
		if shallow {
			along[i], across[i] = float64(p.X), float64(p.Y)
		} else {
			along[i], across[i] = float64(p.Y), float64(p.X)
		}
	}

	lo, hi := along[0], along[0]
	for _, v := range along {
		lo, hi = math.Min(lo, v), math.Max(hi, v)
	}

	var a, b float64
	if hi > lo {
		a, b = stat.LinearRegression(along, across, nil, false)
	} else {
		a = stat.Mean(across, nil)
	}
	at := func(t float64) Point {
		c := int(math.Round(a + b*t))
		if shallow {
			return Point{X: int(t), Y: c}
		}
		return Point{X: c, Y: int(t)}
	}

	seg := &Segment{Start: at(lo), End: at(hi), Pixels: len(points)}
	dx := float64(seg.End.X - seg.Start.X)
	dy := float64(seg.End.Y - seg.Start.Y)
	seg.Length = math.Round(math.Hypot(dx, dy)*10) / 10
	seg.AngleDegrees = math.Round(math.Atan2(dy, dx)*180/math.Pi*10) / 10
	seg.ThicknessApprox = 1
	if span := hi - lo + 1; span > 0 {
		seg.ThicknessApprox = max(1, int(math.Round(float64(len(points))/span)))
	}
	return seg
}

// matchingPixels returns the positions, relative to the image origin, of
// opaque pixels within tolerance of target.
func matchingPixels(img image.Image, target colorful.Color, tolerance float64) []Point {
	rgba := clone.AsShallowRGBA(img)
	b := rgba.Bounds()
	var points []Point
	for y := 0; y < b.Dy(); y++ {
		row := rgba.Pix[y*rgba.Stride:]
		for x := 0; x < b.Dx(); x++ {
			p := row[x*4 : x*4+4]
			if p[3] == 0 {
				continue
			}
			if unpack(overWhite(p)).DistanceLab(target) <= tolerance {
				points = append(points, Point{X: x, Y: y})
			}
		}
	}
	return points
}
