package feature

import (
	"math"
	"testing"

	"github.com/byosync/facecommit/pkg/failure"
	"github.com/byosync/facecommit/pkg/landmark"
	"github.com/byosync/facecommit/pkg/landmark/landmarktest"
	"github.com/samber/lo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func normalized(t *testing.T, face landmarktest.Face, width, height float64) landmark.Set {
	t.Helper()

	m, err := landmark.Normalize(face.Frame(width, height), landmark.Cardinality).Get()
	require.NoError(t, err)
	return m.Set
}

func TestPairTable(t *testing.T) {
	require.Len(t, Pairs, Length)

	keys := lo.Map(Pairs, func(p Pair, _ int) Pair {
		if p.A > p.B {
			return Pair{A: p.B, B: p.A}
		}
		return p
	})
	assert.Len(t, lo.Uniq(keys), Length, "every pair is measured once")

	for _, p := range Pairs {
		assert.NotEqual(t, p.A, p.B)
		assert.Less(t, p.A, landmark.Cardinality)
		assert.Less(t, p.B, landmark.Cardinality)
	}
}

func TestExtractLength(t *testing.T) {
	for _, face := range []landmarktest.Face{
		landmarktest.Centered(),
		{CenterX: 0.4, CenterY: 0.6, Size: 0.8, Seed: 3},
		{CenterX: 0.55, CenterY: 0.45, Size: 1.3, Seed: 11},
	} {
		v, err := Extract(normalized(t, face, 720, 1280)).Get()
		require.NoError(t, err)
		assert.Len(t, v, Length)
		assert.True(t, v.Valid())
	}
}

func TestExtractIsBitIdentical(t *testing.T) {
	set := normalized(t, landmarktest.Face{CenterX: 0.47, CenterY: 0.52, Size: 1.1, Seed: 5}, 1080, 1920)

	a := Extract(set).MustGet()
	b := Extract(set).MustGet()

	for i := range a {
		assert.Equal(t, math.Float64bits(a[i]), math.Float64bits(b[i]), "feature %d", i)
	}
}

func TestExtractIsScaleInvariant(t *testing.T) {
	small := Extract(normalized(t, landmarktest.Face{CenterX: 0.5, CenterY: 0.5, Size: 0.9, Seed: 2}, 720, 720)).MustGet()
	large := Extract(normalized(t, landmarktest.Face{CenterX: 0.5, CenterY: 0.5, Size: 1.3, Seed: 2}, 720, 720)).MustGet()

	for i := range small {
		assert.InDelta(t, small[i], large[i], 1e-9, "feature %d", i)
	}
}

func TestExtractEyeDistanceIsUnit(t *testing.T) {
	v := Extract(normalized(t, landmarktest.Centered(), 720, 720)).MustGet()

	// The first pair is (33, 133); (33, 263) is the third.
	require.Equal(t, Pair{A: 33, B: 263}, Pairs[2])
	assert.InDelta(t, 1.0, v[2], 1e-12)
}

func TestExtractFailsClosed(t *testing.T) {
	full := normalized(t, landmarktest.Centered(), 720, 720)

	short := full
	short.Points = full.Points[:maxIndex]
	res := Extract(short)
	require.True(t, res.IsError())
	assert.ErrorIs(t, res.Error(), failure.ErrInvalidInput)

	empty := landmark.Set{Width: 720, Height: 720}
	assert.True(t, Extract(empty).IsError())

	collapsed := full
	collapsed.Points = append([]landmark.Point{}, full.Points...)
	collapsed.Points[landmark.LeftEyeOuter] = collapsed.Points[landmark.RightEyeOuter]
	res = Extract(collapsed)
	require.True(t, res.IsError())
	assert.ErrorIs(t, res.Error(), failure.ErrInvalidInput)
}

func TestVectorValid(t *testing.T) {
	assert.False(t, Vector(make([]float64, Length-1)).Valid())
	assert.False(t, Vector(make([]float64, Length+1)).Valid())

	v := make(Vector, Length)
	assert.True(t, v.Valid())
	v[10] = math.NaN()
	assert.False(t, v.Valid())
}
