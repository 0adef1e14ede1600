// Package matcher decides whether fresh feature vectors open an enrollment
// store.
package matcher

import (
	"fmt"
	"log/slog"

	"github.com/byosync/facecommit/pkg/codeword"
	"github.com/byosync/facecommit/pkg/commitment"
	"github.com/byosync/facecommit/pkg/crypto"
	"github.com/byosync/facecommit/pkg/enrollment"
	"github.com/byosync/facecommit/pkg/failure"
	"github.com/byosync/facecommit/pkg/feature"
	"github.com/byosync/facecommit/pkg/options"
	"github.com/samber/lo"
)

const (
	DefaultSampleSize = 10
	DefaultMinMatches = 5
)

type Config struct {
	SampleSize int
	// MinMatches is the number of matching frames needed to accept. It is
	// never less than 2.
	MinMatches int
}

func DefaultConfig() Config {
	return Config{
		SampleSize: DefaultSampleSize,
		MinMatches: DefaultMinMatches,
	}
}

// Decision is the verification outcome for one sample of frames.
type Decision struct {
	Matched  int
	Required int
	Sampled  int
	Accepted bool
}

type Matcher struct {
	ref    *commitment.Reference
	cfg    Config
	logger *slog.Logger
}

func New(ref *commitment.Reference, cfg Config, opts ...options.Option) *Matcher {
	oo := options.NewOptions(opts...)

	if cfg.SampleSize <= 0 {
		cfg.SampleSize = DefaultSampleSize
	}
	cfg.MinMatches = max(cfg.MinMatches, 2)

	return &Matcher{
		ref:    ref,
		cfg:    cfg,
		logger: oo.Logger,
	}
}

func (m *Matcher) Config() Config {
	return m.cfg
}

// MatchFrame reports whether v decodes the secret committed in record.
func (m *Matcher) MatchFrame(v feature.Vector, record enrollment.Record) (bool, error) {
	bits, err := m.ref.Quantize(v)
	if err != nil {
		return false, err
	}

	c, err := record.Helper.Xor(bits)
	if err != nil {
		return false, failure.WithMessage(failure.ErrEncodingFailure, err.Error())
	}

	k, err := codeword.Decode(c)
	if err != nil {
		return false, failure.WithMessage(failure.ErrEncodingFailure, err.Error())
	}

	secretHash := commitment.SecretHash(k)
	if len(record.SecretHash) > 0 && !crypto.Equal(secretHash, record.SecretHash) {
		return false, nil
	}

	return crypto.Equal(commitment.Token(record.K2, secretHash), record.Token), nil
}

// Verify checks a sample of fresh vectors against a store. A vector counts as
// matched when it opens any record; the store is accepted once at least
// MinMatches vectors match.
func (m *Matcher) Verify(vectors []feature.Vector, store *enrollment.Store) (Decision, error) {
	if store.Len() == 0 {
		return Decision{}, failure.ErrNoEnrollment
	}
	if err := store.Validate(); err != nil {
		return Decision{}, err
	}

	d := Decision{Required: m.cfg.MinMatches, Sampled: len(vectors)}
	for i, v := range vectors {
		matched, err := m.matchAny(v, store.Records)
		if err != nil {
			return Decision{}, fmt.Errorf("frame %d: %w", i, err)
		}
		if matched {
			d.Matched++
		}
	}
	d.Accepted = d.Matched >= d.Required

	m.logger.Debug("verification sample evaluated",
		"matched", d.Matched,
		"required", d.Required,
		"sampled", d.Sampled,
		"accepted", d.Accepted,
	)

	return d, nil
}

func (m *Matcher) matchAny(v feature.Vector, records []enrollment.Record) (bool, error) {
	var firstErr error
	matched := lo.ContainsBy(records, func(r enrollment.Record) bool {
		ok, err := m.MatchFrame(v, r)
		if err != nil && firstErr == nil {
			firstErr = err
		}
		return ok
	})
	if firstErr != nil {
		return false, firstErr
	}
	return matched, nil
}
