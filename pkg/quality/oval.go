package quality

import (
	"github.com/byosync/facecommit/pkg/landmark"
)

// degenerateIOD is the normalized IOD below which the IOD-derived oval scale is not trusted.
const degenerateIOD = 1e-9

type ScreenPoint struct {
	X float64
	Y float64
}

// preview maps normalized frame coordinates onto the screen the way an
// aspect-fill camera preview does: uniform scale, centered, overflow cropped.
type preview struct {
	frameW  float64
	frameH  float64
	screenW float64
	screenH float64
	factor  float64
}

func newPreview(set landmark.Set, screen Screen) preview {
	return preview{
		frameW:  set.Width,
		frameH:  set.Height,
		screenW: screen.Width,
		screenH: screen.Height,
		factor:  max(screen.Width/set.Width, screen.Height/set.Height),
	}
}

func (p preview) point(q landmark.Point) ScreenPoint {
	return ScreenPoint{
		X: (q.X*p.frameW-p.frameW/2)*p.factor + p.screenW/2,
		Y: (q.Y*p.frameH-p.frameH/2)*p.factor + p.screenH/2,
	}
}

// Oval reports whether the check landmarks sit inside the guide oval and the
// fraction of them that do.
func (g *Gate) Oval(m landmark.Measured, screen Screen) (bool, float64) {
	if !(screen.Width > 0) || !(screen.Height > 0) {
		return false, 0
	}

	pv := newPreview(m.Set, screen)
	polygon := g.OvalPolygon(m, screen)

	inside := 0
	for _, idx := range landmark.OvalCheck {
		if pointInPolygon(pv.point(m.Set.Points[idx]), polygon) {
			inside++
		}
	}
	fraction := float64(inside) / float64(len(landmark.OvalCheck))

	return fraction >= g.cfg.MinInsideFraction, fraction
}

// OvalPolygon builds the on-screen guide oval: the face contour landmarks,
// recentered on mid-screen and scaled by onScreenIOD / normalizedIOD.
func (g *Gate) OvalPolygon(m landmark.Measured, screen Screen) []ScreenPoint {
	pv := newPreview(m.Set, screen)
	points := m.Set.Points

	right := pv.point(points[landmark.RightEyeOuter])
	left := pv.point(points[landmark.LeftEyeOuter])
	onScreenIOD := landmark.Distance(right.X, right.Y, left.X, left.Y)

	scale := g.cfg.FallbackScale
	if m.IOD.Normalized > degenerateIOD {
		scale = onScreenIOD / m.IOD.Normalized
	}
	scale *= g.cfg.OvalInflation

	var cx, cy float64
	for _, idx := range landmark.FaceOval {
		cx += points[idx].X
		cy += points[idx].Y
	}
	n := float64(len(landmark.FaceOval))
	cx /= n
	cy /= n

	// Normalized y units are frame-height pixels, x units frame-width pixels.
	aspect := m.Set.Height / m.Set.Width

	polygon := make([]ScreenPoint, len(landmark.FaceOval))
	for i, idx := range landmark.FaceOval {
		p := points[idx]
		polygon[i] = ScreenPoint{
			X: screen.Width/2 + (p.X-cx)*scale,
			Y: screen.Height/2 + (p.Y-cy)*aspect*scale,
		}
	}

	return polygon
}

// pointInPolygon is the even-odd ray casting test.
func pointInPolygon(p ScreenPoint, polygon []ScreenPoint) bool {
	inside := false
	for i, j := 0, len(polygon)-1; i < len(polygon); j, i = i, i+1 {
		a, b := polygon[i], polygon[j]
		if (a.Y > p.Y) != (b.Y > p.Y) &&
			p.X < (b.X-a.X)*(p.Y-a.Y)/(b.Y-a.Y)+a.X {
			inside = !inside
		}
	}
	return inside
}
