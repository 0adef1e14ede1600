// Package aggregator keeps the most recent feature vectors of a capture
// session in a fixed-capacity ring buffer.
//
// An Aggregator has exactly one writer, the frame processing path, and takes
// no locks.
package aggregator

import (
	"slices"
	"time"

	"github.com/byosync/facecommit/pkg/failure"
	"github.com/byosync/facecommit/pkg/feature"
	"github.com/samber/lo"
)

// DefaultCapacity holds one full enrollment: 60 center frames and 20 movement frames.
const DefaultCapacity = 80

type Tag int

const (
	TagCenter Tag = iota
	TagMovement
	TagVerification
)

func (t Tag) String() string {
	switch t {
	case TagCenter:
		return "center"
	case TagMovement:
		return "movement"
	case TagVerification:
		return "verification"
	default:
		return "unknown"
	}
}

type Frame struct {
	// Seq is assigned on append and increases for the lifetime of the aggregator.
	Seq        uint64
	Tag        Tag
	Vector     feature.Vector
	IOD        float64
	CapturedAt time.Time
}

// Aggregator is a ring buffer of frames. The zero value holds
// DefaultCapacity frames.
type Aggregator struct {
	slots []Frame
	next  int
	count int
	seq   uint64
}

func New(capacity int) *Aggregator {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Aggregator{slots: make([]Frame, capacity)}
}

func (a *Aggregator) Cap() int {
	if a.slots == nil {
		return DefaultCapacity
	}
	return len(a.slots)
}

func (a *Aggregator) Len() int {
	return a.count
}

// Append stores a copy of the frame, overwriting the oldest one when full,
// and returns the sequence number it was given.
func (a *Aggregator) Append(f Frame) uint64 {
	if a.slots == nil {
		a.slots = make([]Frame, DefaultCapacity)
	}

	a.seq++
	f.Seq = a.seq
	f.Vector = slices.Clone(f.Vector)

	a.slots[a.next] = f
	a.next = (a.next + 1) % len(a.slots)
	if a.count < len(a.slots) {
		a.count++
	}

	return f.Seq
}

// Frames returns the buffered frames, oldest first.
func (a *Aggregator) Frames() []Frame {
	out := make([]Frame, 0, a.count)
	if a.count == 0 {
		return out
	}
	start := (a.next - a.count + len(a.slots)) % len(a.slots)
	for i := 0; i < a.count; i++ {
		out = append(out, a.slots[(start+i)%len(a.slots)])
	}
	return out
}

// SelectLast returns the n most recent frames with a valid feature vector,
// oldest first. With fewer than n such frames it returns an
// *failure.InsufficientFramesError and no frames.
func (a *Aggregator) SelectLast(n int) ([]Frame, error) {
	return a.selectLast(n, func(Frame) bool { return true })
}

// SelectLastTagged is SelectLast restricted to one capture phase.
func (a *Aggregator) SelectLastTagged(tag Tag, n int) ([]Frame, error) {
	return a.selectLast(n, func(f Frame) bool { return f.Tag == tag })
}

func (a *Aggregator) selectLast(n int, keep func(Frame) bool) ([]Frame, error) {
	valid := lo.Filter(a.Frames(), func(f Frame, _ int) bool {
		return keep(f) && f.Vector.Valid()
	})
	if n <= 0 || len(valid) < n {
		return nil, failure.NewInsufficientFrames(len(valid), n)
	}

	selected := valid[len(valid)-n:]
	out := make([]Frame, len(selected))
	for i, f := range selected {
		f.Vector = slices.Clone(f.Vector)
		out[i] = f
	}

	return out, nil
}

// Reset discards every buffered frame.
func (a *Aggregator) Reset() {
	clear(a.slots)
	a.next = 0
	a.count = 0
}
