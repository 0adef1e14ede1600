// Package quality decides per frame whether a face is at the right distance,
// framed inside the guide oval and holding a steady pose, and tracks the
// enrollment capture phase.
package quality

import (
	"math"

	"github.com/byosync/facecommit/pkg/landmark"
)

type DistanceGuidance int

const (
	NoFace DistanceGuidance = iota
	MoveCloser
	MoveFarther
	DistanceOK
)

func (g DistanceGuidance) String() string {
	switch g {
	case NoFace:
		return "noFace"
	case MoveCloser:
		return "moveCloser"
	case MoveFarther:
		return "moveFarther"
	case DistanceOK:
		return "ok"
	default:
		return "unknown"
	}
}

// Screen is the on-screen preview size reported by the UI collaborator.
type Screen struct {
	Width  float64
	Height float64
}

// State is the per-frame quality verdict. It is recomputed for every frame.
type State struct {
	Distance       DistanceGuidance
	OvalAligned    bool
	PoseStable     bool
	InsideFraction float64
}

// Acceptable reports whether the frame may enter the aggregator.
func (s State) Acceptable() bool {
	return s.Distance == DistanceOK && s.OvalAligned && s.PoseStable
}

// NoFaceState is the state reported for frames that failed normalization.
func NoFaceState() State {
	return State{Distance: NoFace}
}

type Config struct {
	// IODMin and IODMax bound the accepted normalized IOD, inclusive. A larger
	// normalized IOD means the face is closer to the camera.
	IODMin float64
	IODMax float64
	// OvalInflation grows the guide oval around its centroid.
	OvalInflation float64
	// MinInsideFraction is the share of check landmarks that must fall inside the oval.
	MinInsideFraction float64
	// FallbackScale replaces the IOD-derived scale when the normalized IOD is degenerate.
	FallbackScale float64
}

func DefaultConfig() Config {
	return Config{
		IODMin:            0.18,
		IODMax:            0.32,
		OvalInflation:     1.15,
		MinInsideFraction: 1.0,
		FallbackScale:     1.0,
	}
}

type Gate struct {
	cfg Config
}

func NewGate(cfg Config) *Gate {
	return &Gate{cfg: cfg}
}

// Evaluate computes the full quality state of a normalized frame.
func (g *Gate) Evaluate(m landmark.Measured, poseStable bool, screen Screen) State {
	aligned, fraction := g.Oval(m, screen)

	return State{
		Distance:       g.Distance(m.IOD),
		OvalAligned:    aligned,
		PoseStable:     poseStable,
		InsideFraction: fraction,
	}
}

// Distance classifies the normalized IOD against the closed acceptance interval.
func (g *Gate) Distance(iod landmark.IOD) DistanceGuidance {
	v := iod.Normalized
	switch {
	case math.IsNaN(v) || math.IsInf(v, 0):
		return NoFace
	case v < g.cfg.IODMin:
		return MoveCloser
	case v > g.cfg.IODMax:
		return MoveFarther
	default:
		return DistanceOK
	}
}
