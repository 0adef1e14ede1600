package commitment

import (
	"fmt"
	"io"
	"math"
	"slices"

	"github.com/byosync/facecommit/pkg/codeword"
	"github.com/byosync/facecommit/pkg/failure"
	"github.com/byosync/facecommit/pkg/feature"
	"github.com/samber/lo"
	"gopkg.in/yaml.v3"
)

// Reference holds one quantization threshold per codeword bit. Bit i is set
// when feature i mod feature.Length reaches Thresholds[i]. The thresholds are
// fixed for a deployment: enrollment and verification must use the same ones.
type Reference struct {
	Thresholds []float64 `yaml:"thresholds"`
}

func NewReference(thresholds []float64) (*Reference, error) {
	ref := &Reference{Thresholds: slices.Clone(thresholds)}
	if err := ref.validate(); err != nil {
		return nil, err
	}
	return ref, nil
}

func (r *Reference) validate() error {
	if len(r.Thresholds) != CodewordBits {
		return failure.WithMessage(failure.ErrInvalidInput, fmt.Sprintf("reference has %d thresholds, want %d", len(r.Thresholds), CodewordBits))
	}
	for i, t := range r.Thresholds {
		if math.IsNaN(t) || math.IsInf(t, 0) {
			return failure.WithMessage(failure.ErrInvalidInput, fmt.Sprintf("threshold %d is not finite", i))
		}
	}
	return nil
}

// Quantize maps a feature vector to CodewordBits bits.
func (r *Reference) Quantize(v feature.Vector) (codeword.Bits, error) {
	if !v.Valid() {
		return nil, failure.WithMessage(failure.ErrInvalidInput, "feature vector has wrong length or non-finite values")
	}

	bits := make(codeword.Bits, CodewordBits)
	for i, t := range r.Thresholds {
		if v[i%feature.Length] >= t {
			bits[i] = 1
		}
	}
	return bits, nil
}

// BuildReference derives thresholds from a population of vectors: the median
// of each feature for the first feature.Length bits and the upper quartile
// for the bits that wrap around, so repeated features quantize differently.
func BuildReference(population []feature.Vector) (*Reference, error) {
	valid := lo.Filter(population, func(v feature.Vector, _ int) bool {
		return v.Valid()
	})
	if len(valid) == 0 {
		return nil, failure.NewInsufficientFrames(0, 1)
	}

	column := make([]float64, len(valid))
	thresholds := make([]float64, CodewordBits)
	for i := range thresholds {
		f := i % feature.Length
		for j, v := range valid {
			column[j] = v[f]
		}
		slices.Sort(column)

		q := 0.5
		if i >= feature.Length {
			q = 0.75
		}
		thresholds[i] = quantile(column, q)
	}

	return &Reference{Thresholds: thresholds}, nil
}

// quantile interpolates linearly between the closest ranks of sorted.
func quantile(sorted []float64, q float64) float64 {
	pos := q * float64(len(sorted)-1)
	lower := int(math.Floor(pos))
	upper := min(lower+1, len(sorted)-1)
	frac := pos - float64(lower)
	return sorted[lower] + float64(frac*(sorted[upper]-sorted[lower]))
}

func LoadReference(r io.Reader) (*Reference, error) {
	var ref Reference
	if err := yaml.NewDecoder(r).Decode(&ref); err != nil {
		return nil, fmt.Errorf("cannot decode reference: %w", err)
	}
	if err := ref.validate(); err != nil {
		return nil, err
	}
	return &ref, nil
}

func (r *Reference) Write(w io.Writer) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(r); err != nil {
		return fmt.Errorf("cannot encode reference: %w", err)
	}
	return enc.Close()
}
