// Package landmark turns raw detector output into frame-normalized landmark
// sets and measures the inter-ocular distance used as the scale reference by
// every later stage.
package landmark

import (
	"math"
	"time"

	"github.com/byosync/facecommit/pkg/failure"
	"github.com/samber/mo"
)

// dimensionEpsilon is the smallest frame dimension treated as real.
const dimensionEpsilon = 1e-6

type Space int

const (
	SpaceNormalized Space = iota
	SpacePixel
)

func (s Space) String() string {
	switch s {
	case SpaceNormalized:
		return "normalized"
	case SpacePixel:
		return "pixel"
	default:
		return "unknown"
	}
}

type Point struct {
	X float64
	Y float64
	Z float64
}

// Frame is one detector result as handed over by the capture collaborator.
type Frame struct {
	Points []Point
	Width  float64
	Height float64
	Space  Space
	// PoseStable is the detector's head-direction classification reduced to "steady enough".
	PoseStable bool
	Direction  string
	Timestamp  time.Time
	// Image is an optional encoded frame for the debug upload collaborator.
	Image []byte
}

// Set is a landmark set in frame-normalized coordinates together with the
// source frame size it was derived from.
type Set struct {
	Points []Point
	Width  float64
	Height float64
}

// Pixel maps the i-th landmark back to source pixel coordinates.
func (s Set) Pixel(i int) (float64, float64) {
	p := s.Points[i]
	return p.X * s.Width, p.Y * s.Height
}

// IOD is the inter-ocular distance of one frame.
type IOD struct {
	Pixels float64
	// Normalized is Pixels divided by the frame width.
	Normalized float64
}

type Measured struct {
	Set Set
	IOD IOD
}

// Normalize validates a detector frame and maps it into normalized space.
// Frames with non-positive dimensions, a landmark count other than
// cardinality, or non-finite coordinates fail with failure.ErrInvalidInput.
func Normalize(frame Frame, cardinality int) mo.Result[Measured] {
	if !finite(frame.Width) || !finite(frame.Height) ||
		frame.Width <= dimensionEpsilon || frame.Height <= dimensionEpsilon {
		return mo.Err[Measured](failure.WithMessage(failure.ErrInvalidInput, "non-positive frame dimensions"))
	}
	if len(frame.Points) == 0 || len(frame.Points) != cardinality {
		return mo.Err[Measured](failure.WithMessage(failure.ErrInvalidInput, "unexpected landmark count"))
	}
	if cardinality <= max(RightEyeOuter, LeftEyeOuter) {
		return mo.Err[Measured](failure.WithMessage(failure.ErrInvalidInput, "landmark count below eye corner indices"))
	}

	points := make([]Point, len(frame.Points))
	for i, p := range frame.Points {
		if !finite(p.X) || !finite(p.Y) || !finite(p.Z) {
			return mo.Err[Measured](failure.WithMessage(failure.ErrInvalidInput, "non-finite landmark coordinate"))
		}
		if frame.Space == SpacePixel {
			p.X /= frame.Width
			p.Y /= frame.Height
		}
		points[i] = p
	}

	set := Set{
		Points: points,
		Width:  frame.Width,
		Height: frame.Height,
	}

	return mo.Ok(Measured{
		Set: set,
		IOD: MeasureIOD(set),
	})
}

// MeasureIOD computes the outer eye corner distance of a set in pixels and as
// a fraction of frame width. The set must contain both eye corner indices.
func MeasureIOD(s Set) IOD {
	rx, ry := s.Pixel(RightEyeOuter)
	lx, ly := s.Pixel(LeftEyeOuter)
	pixels := Distance(rx, ry, lx, ly)

	return IOD{
		Pixels:     pixels,
		Normalized: pixels / s.Width,
	}
}

// Distance is the Euclidean distance between two points. The explicit
// conversions keep the compiler from fusing multiply-add, so results are
// bit-identical across architectures.
func Distance(x1, y1, x2, y2 float64) float64 {
	dx := x1 - x2
	dy := y1 - y2
	return math.Sqrt(float64(dx*dx) + float64(dy*dy))
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
