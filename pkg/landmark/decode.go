package landmark

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"iter"
	"time"
)

const maxLineSize = 16 * 1024 * 1024

type frameLine struct {
	Points     [][]float64 `json:"points"`
	Width      float64     `json:"width"`
	Height     float64     `json:"height"`
	Space      string      `json:"space"`
	PoseStable bool        `json:"pose_stable"`
	Direction  string      `json:"direction"`
	TimeMillis int64       `json:"t_ms"`
	Image      []byte      `json:"image,omitempty"`
}

// DecodeFrames reads detector frames encoded as JSON lines. Blank lines are
// skipped. A malformed point yields a frame with no points, so it is rejected
// downstream like any other invalid frame; malformed JSON stops the sequence.
func DecodeFrames(r io.Reader) iter.Seq2[Frame, error] {
	return func(yield func(Frame, error) bool) {
		scanner := bufio.NewScanner(r)
		scanner.Buffer(make([]byte, 64*1024), maxLineSize)

		line := 0
		for scanner.Scan() {
			line++
			raw := scanner.Bytes()
			if len(raw) == 0 {
				continue
			}

			var fl frameLine
			if err := json.Unmarshal(raw, &fl); err != nil {
				yield(Frame{}, fmt.Errorf("line %d: cannot decode frame: %w", line, err))
				return
			}

			if !yield(fl.frame(), nil) {
				return
			}
		}

		if err := scanner.Err(); err != nil {
			yield(Frame{}, fmt.Errorf("cannot read frames: %w", err))
		}
	}
}

func (fl frameLine) frame() Frame {
	f := Frame{
		Width:      fl.Width,
		Height:     fl.Height,
		PoseStable: fl.PoseStable,
		Direction:  fl.Direction,
		Image:      fl.Image,
	}
	if fl.Space == SpacePixel.String() {
		f.Space = SpacePixel
	}
	if fl.TimeMillis != 0 {
		f.Timestamp = time.UnixMilli(fl.TimeMillis)
	}

	points := make([]Point, 0, len(fl.Points))
	for _, p := range fl.Points {
		switch len(p) {
		case 2:
			points = append(points, Point{X: p[0], Y: p[1]})
		case 3:
			points = append(points, Point{X: p[0], Y: p[1], Z: p[2]})
		default:
			return f
		}
	}
	f.Points = points

	return f
}
