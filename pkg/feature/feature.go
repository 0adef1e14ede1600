// Package feature turns a normalized landmark set into the fixed-length
// vector of pairwise distances that represents one frame's face geometry.
package feature

import (
	"math"

	"github.com/byosync/facecommit/pkg/failure"
	"github.com/byosync/facecommit/pkg/landmark"
	"github.com/samber/mo"
)

// minIOD is the smallest pixel IOD usable as a distance unit.
const minIOD = 1e-9

// Vector holds exactly Length distances, each expressed in IODs.
type Vector []float64

// Valid reports whether v has the fixed length and only finite values.
func (v Vector) Valid() bool {
	if len(v) != Length {
		return false
	}
	for _, x := range v {
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return false
		}
	}
	return true
}

// Extract computes the feature vector of a set. Distances are measured in
// source pixels, so they keep the frame aspect ratio, and divided by the pixel
// IOD, so they do not depend on how far the face is from the camera. A set too
// short for the pair table or with coincident eye corners yields
// failure.ErrInvalidInput and no vector.
func Extract(set landmark.Set) mo.Result[Vector] {
	if len(set.Points) <= maxIndex {
		return mo.Err[Vector](failure.WithMessage(failure.ErrInvalidInput, "landmark set too short for feature table"))
	}

	iod := landmark.MeasureIOD(set).Pixels
	if !(iod > minIOD) || math.IsInf(iod, 0) {
		return mo.Err[Vector](failure.WithMessage(failure.ErrInvalidInput, "degenerate inter-ocular distance"))
	}

	v := make(Vector, Length)
	for i, p := range Pairs {
		ax, ay := set.Pixel(p.A)
		bx, by := set.Pixel(p.B)
		v[i] = landmark.Distance(ax, ay, bx, by) / iod
	}

	if !v.Valid() {
		return mo.Err[Vector](failure.WithMessage(failure.ErrInvalidInput, "non-finite feature"))
	}

	return mo.Ok(v)
}
