package landmark_test

import (
	"math"
	"strings"
	"testing"

	"github.com/byosync/facecommit/pkg/failure"
	"github.com/byosync/facecommit/pkg/landmark"
	"github.com/byosync/facecommit/pkg/landmark/landmarktest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalize(t *testing.T) {
	frame := landmarktest.Centered().Frame(720, 720)

	m, err := landmark.Normalize(frame, landmark.Cardinality).Get()
	require.NoError(t, err)

	assert.Len(t, m.Set.Points, landmark.Cardinality)
	assert.InDelta(t, 0.22*720, m.IOD.Pixels, 1e-9)
	assert.InDelta(t, 0.22, m.IOD.Normalized, 1e-12)
}

func TestNormalizePixelSpace(t *testing.T) {
	face := landmarktest.Centered()
	normalized, err := landmark.Normalize(face.Frame(1280, 720), landmark.Cardinality).Get()
	require.NoError(t, err)

	pixel, err := landmark.Normalize(face.PixelFrame(1280, 720), landmark.Cardinality).Get()
	require.NoError(t, err)

	for i := range normalized.Set.Points {
		assert.InDelta(t, normalized.Set.Points[i].X, pixel.Set.Points[i].X, 1e-12)
		assert.InDelta(t, normalized.Set.Points[i].Y, pixel.Set.Points[i].Y, 1e-12)
	}
	assert.InDelta(t, normalized.IOD.Normalized, pixel.IOD.Normalized, 1e-12)
	assert.InDelta(t, 0.22*1280, pixel.IOD.Pixels, 1e-9)
}

func TestNormalizeRejectsInvalidFrames(t *testing.T) {
	valid := landmarktest.Centered().Frame(640, 480)

	nan := landmarktest.Centered().Frame(640, 480)
	nan.Points[10].X = math.NaN()

	cases := map[string]landmark.Frame{
		"empty":        {Width: 640, Height: 480},
		"short":        {Points: valid.Points[:200], Width: 640, Height: 480},
		"long":         {Points: append(append([]landmark.Point{}, valid.Points...), landmark.Point{}), Width: 640, Height: 480},
		"zero width":   {Points: valid.Points, Width: 0, Height: 480},
		"tiny height":  {Points: valid.Points, Width: 640, Height: 1e-9},
		"negative":     {Points: valid.Points, Width: -640, Height: 480},
		"infinite":     {Points: valid.Points, Width: math.Inf(1), Height: 480},
		"nan landmark": nan,
	}

	for name, frame := range cases {
		t.Run(name, func(t *testing.T) {
			res := landmark.Normalize(frame, landmark.Cardinality)
			require.True(t, res.IsError())
			assert.ErrorIs(t, res.Error(), failure.ErrInvalidInput)
		})
	}
}

func TestDistanceIsDeterministic(t *testing.T) {
	a := landmark.Distance(0.1, 0.2, 0.4, 0.6)
	b := landmark.Distance(0.1, 0.2, 0.4, 0.6)

	assert.Equal(t, math.Float64bits(a), math.Float64bits(b))
	assert.InDelta(t, 0.5, a, 1e-15)
}

func TestDecodeFrames(t *testing.T) {
	input := strings.Join([]string{
		`{"points":[[0.1,0.2],[0.3,0.4,0.5]],"width":640,"height":480,"pose_stable":true,"direction":"left","t_ms":1700000000000}`,
		``,
		`{"points":[[10,20]],"width":640,"height":480,"space":"pixel"}`,
		`{"points":[[1]],"width":640,"height":480}`,
	}, "\n")

	frames := make([]landmark.Frame, 0)
	for frame, err := range landmark.DecodeFrames(strings.NewReader(input)) {
		require.NoError(t, err)
		frames = append(frames, frame)
	}
	require.Len(t, frames, 3)

	assert.Equal(t, []landmark.Point{{X: 0.1, Y: 0.2}, {X: 0.3, Y: 0.4, Z: 0.5}}, frames[0].Points)
	assert.True(t, frames[0].PoseStable)
	assert.Equal(t, "left", frames[0].Direction)
	assert.Equal(t, int64(1700000000000), frames[0].Timestamp.UnixMilli())
	assert.Equal(t, landmark.SpaceNormalized, frames[0].Space)

	assert.Equal(t, landmark.SpacePixel, frames[1].Space)
	assert.True(t, frames[1].Timestamp.IsZero())

	assert.Empty(t, frames[2].Points)
}

func TestDecodeFramesStopsOnMalformedJSON(t *testing.T) {
	input := "{\"points\":[],\"width\":1,\"height\":1}\n{not json\n{\"points\":[]}\n"

	var decoded int
	var lastErr error
	for _, err := range landmark.DecodeFrames(strings.NewReader(input)) {
		if err != nil {
			lastErr = err
			continue
		}
		decoded++
	}

	assert.Equal(t, 1, decoded)
	require.Error(t, lastErr)
	assert.Contains(t, lastErr.Error(), "line 2")
}
