package feature

import (
	"github.com/byosync/facecommit/pkg/landmark"
)

// Pair is an ordered landmark index pair whose distance is one feature.
type Pair struct {
	A int
	B int
}

// anchorLandmarks are the stable face-mesh points measured against each other:
// eye corners and lids, nose, lips, chin, forehead, cheekbones and brows.
var anchorLandmarks = [...]int{
	33, 133, 362, 263, 159, 145, 386, 374,
	1, 4, 168, 6,
	61, 291, 13, 14, 0, 17,
	152, 10, 234, 454,
	70, 300,
}

// extraPairs are brow-to-lid, cheek-to-cheek and inner-lip widths.
var extraPairs = [...]Pair{
	{105, 159},
	{334, 386},
	{50, 280},
	{78, 308},
}

// Pairs is the fixed feature layout. Its order defines the vector order and never changes.
var Pairs = buildPairs()

// Length is the number of features in a vector.
const Length = 316

func buildPairs() []Pair {
	pairs := make([]Pair, 0, Length)

	for i := 0; i < len(anchorLandmarks); i++ {
		for j := i + 1; j < len(anchorLandmarks); j++ {
			pairs = append(pairs, Pair{A: anchorLandmarks[i], B: anchorLandmarks[j]})
		}
	}

	for i, a := range landmark.FaceOval {
		b := landmark.FaceOval[(i+1)%len(landmark.FaceOval)]
		pairs = append(pairs, Pair{A: a, B: b})
	}

	pairs = append(pairs, extraPairs[:]...)

	if len(pairs) != Length {
		panic("feature: pair table does not match Length")
	}

	return pairs
}

// maxIndex is the highest landmark index the table reads.
var maxIndex = func() int {
	m := 0
	for _, p := range Pairs {
		m = max(m, p.A, p.B)
	}
	return m
}()
