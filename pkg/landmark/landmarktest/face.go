// Package landmarktest builds synthetic face-mesh landmark sets for tests.
package landmarktest

import (
	"math"

	"github.com/byosync/facecommit/pkg/landmark"
)

const (
	ovalRadiusX = 0.20
	ovalRadiusY = 0.28
	goldenAngle = 2.399963229728653
)

// Fixed anatomical positions relative to the face center, before scaling.
var anchors = map[int]landmark.Point{
	landmark.RightEyeOuter: {X: -0.11, Y: -0.05},
	landmark.LeftEyeOuter:  {X: 0.11, Y: -0.05},
	133:                    {X: -0.04, Y: -0.05},
	362:                    {X: 0.04, Y: -0.05},
	159:                    {X: -0.075, Y: -0.07},
	145:                    {X: -0.075, Y: -0.03},
	386:                    {X: 0.075, Y: -0.07},
	374:                    {X: 0.075, Y: -0.03},
	168:                    {X: 0, Y: -0.05},
	1:                      {X: 0, Y: 0.02},
	61:                     {X: -0.06, Y: 0.1},
	291:                    {X: 0.06, Y: 0.1},
	199:                    {X: 0, Y: 0.17},
}

// Face describes a synthetic face placed in a frame.
type Face struct {
	// CenterX and CenterY locate the face center in normalized frame coordinates.
	CenterX float64
	CenterY float64
	// Size scales the whole face; 1 gives a normalized IOD of 0.22 in a square frame.
	Size float64
	// Seed varies the filler landmarks so different seeds look like different people.
	Seed int
}

// Centered returns a unit-size face in the middle of the frame.
func Centered() Face {
	return Face{CenterX: 0.5, CenterY: 0.5, Size: 1}
}

// Points returns landmark.Cardinality normalized points.
func (f Face) Points() []landmark.Point {
	size := f.Size
	if size == 0 {
		size = 1
	}

	rel := make([]landmark.Point, landmark.Cardinality)
	for i := range rel {
		bucket := (i*37 + f.Seed*13) % 101
		if bucket < 0 {
			bucket += 101
		}
		r := math.Sqrt(float64(bucket)/101) * 0.85
		theta := float64(i) * goldenAngle
		rel[i] = landmark.Point{
			X: ovalRadiusX * r * math.Cos(theta),
			Y: ovalRadiusY * r * math.Sin(theta),
		}
	}

	for k, idx := range landmark.FaceOval {
		theta := -math.Pi/2 + 2*math.Pi*float64(k)/float64(len(landmark.FaceOval))
		rel[idx] = landmark.Point{
			X: ovalRadiusX * math.Cos(theta),
			Y: ovalRadiusY * math.Sin(theta),
		}
	}

	for idx, p := range anchors {
		rel[idx] = p
	}

	points := make([]landmark.Point, len(rel))
	for i, p := range rel {
		points[i] = landmark.Point{
			X: f.CenterX + p.X*size,
			Y: f.CenterY + p.Y*size,
		}
	}

	return points
}

// Frame wraps the face into a normalized-space detector frame with a stable pose.
func (f Face) Frame(width, height float64) landmark.Frame {
	return landmark.Frame{
		Points:     f.Points(),
		Width:      width,
		Height:     height,
		Space:      landmark.SpaceNormalized,
		PoseStable: true,
		Direction:  "forward",
	}
}

// PixelFrame is Frame with the points expressed in source pixels.
func (f Face) PixelFrame(width, height float64) landmark.Frame {
	frame := f.Frame(width, height)
	for i, p := range frame.Points {
		frame.Points[i] = landmark.Point{X: p.X * width, Y: p.Y * height}
	}
	frame.Space = landmark.SpacePixel

	return frame
}
