package commitment

import (
	"bytes"
	"math"
	"strings"
	"testing"

	"github.com/byosync/facecommit/pkg/failure"
	"github.com/byosync/facecommit/pkg/feature"
	"github.com/byosync/facecommit/pkg/landmark"
	"github.com/byosync/facecommit/pkg/landmark/landmarktest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func filled(x float64) feature.Vector {
	v := make(feature.Vector, feature.Length)
	for i := range v {
		v[i] = x
	}
	return v
}

func TestBuildReferenceQuantiles(t *testing.T) {
	population := []feature.Vector{filled(1), filled(2), filled(3), filled(4), filled(5)}

	ref, err := BuildReference(population)
	require.NoError(t, err)
	require.Len(t, ref.Thresholds, CodewordBits)

	assert.Equal(t, 3.0, ref.Thresholds[0])
	assert.Equal(t, 3.0, ref.Thresholds[feature.Length-1])
	assert.Equal(t, 4.0, ref.Thresholds[feature.Length])
	assert.Equal(t, 4.0, ref.Thresholds[CodewordBits-1])

	even, err := BuildReference([]feature.Vector{filled(1), filled(2)})
	require.NoError(t, err)
	assert.Equal(t, 1.5, even.Thresholds[0])
	assert.Equal(t, 1.75, even.Thresholds[feature.Length])
}

func TestBuildReferenceSkipsInvalid(t *testing.T) {
	_, err := BuildReference([]feature.Vector{{1, 2}, nil})
	assert.ErrorIs(t, err, failure.ErrInsufficientFrames)

	ref, err := BuildReference([]feature.Vector{{1, 2}, filled(7)})
	require.NoError(t, err)
	assert.Equal(t, 7.0, ref.Thresholds[42])
}

func TestQuantizeWrapsAround(t *testing.T) {
	thresholds := make([]float64, CodewordBits)
	for i := range thresholds {
		thresholds[i] = 1
	}
	thresholds[feature.Length+2] = 2

	ref, err := NewReference(thresholds)
	require.NoError(t, err)

	v := filled(0.5)
	v[2] = 1.5

	bits, err := ref.Quantize(v)
	require.NoError(t, err)
	assert.Equal(t, byte(1), bits[2])
	assert.Equal(t, byte(0), bits[feature.Length+2], "the wrapped bit has its own threshold")
	assert.Equal(t, byte(0), bits[3])

	v[2] = 1
	bits, err = ref.Quantize(v)
	require.NoError(t, err)
	assert.Equal(t, byte(1), bits[2], "a feature equal to its threshold sets the bit")

	_, err = ref.Quantize(feature.Vector{1})
	assert.ErrorIs(t, err, failure.ErrInvalidInput)
}

func TestNewReferenceValidates(t *testing.T) {
	_, err := NewReference(make([]float64, feature.Length))
	assert.ErrorIs(t, err, failure.ErrInvalidInput)

	thresholds := make([]float64, CodewordBits)
	thresholds[9] = math.NaN()
	_, err = NewReference(thresholds)
	assert.ErrorIs(t, err, failure.ErrInvalidInput)
}

func TestReferenceYAML(t *testing.T) {
	var population []feature.Vector
	for seed := 0; seed < 12; seed++ {
		face := landmarktest.Face{CenterX: 0.5, CenterY: 0.5, Size: 1, Seed: seed}
		m, err := landmark.Normalize(face.Frame(720, 1280), landmark.Cardinality).Get()
		require.NoError(t, err)
		population = append(population, feature.Extract(m.Set).MustGet())
	}

	ref, err := BuildReference(population)
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, ref.Write(&buf))
	assert.True(t, strings.HasPrefix(buf.String(), "thresholds:"))

	back, err := LoadReference(&buf)
	require.NoError(t, err)
	assert.Equal(t, ref.Thresholds, back.Thresholds)

	_, err = LoadReference(strings.NewReader("thresholds: [1, 2, 3]\n"))
	assert.ErrorIs(t, err, failure.ErrInvalidInput)
}
