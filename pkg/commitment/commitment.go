// Package commitment turns feature vectors into fuzzy-commitment enrollment
// records.
//
// For each vector the encoder quantizes the geometry to CodewordBits bits,
// derives a secret message from those bits and the session salt, encodes the
// message with the repetition code and publishes only helper = codeword XOR
// bits, a hash of the secret and a token binding a per-record random k2 to
// that hash. A later frame whose bits are close enough to the enrolled ones
// decodes helper XOR bits' back to the same secret.
package commitment

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/byosync/facecommit/pkg/codeword"
	"github.com/byosync/facecommit/pkg/crypto"
	"github.com/byosync/facecommit/pkg/enrollment"
	"github.com/byosync/facecommit/pkg/failure"
	"github.com/byosync/facecommit/pkg/feature"
	"github.com/byosync/facecommit/pkg/options"
	"github.com/samber/mo"
)

const (
	SecretBits   = codeword.SecretBits
	Repetition   = codeword.Repetition
	CodewordBits = codeword.Length
)

const messageInfo = "facecommit/v1 codeword"

// Input is one selected frame.
type Input struct {
	Vector     feature.Vector
	IOD        float64
	CapturedAt time.Time
}

type Encoder struct {
	ref    *Reference
	logger *slog.Logger
	clock  func() time.Time
	opts   *options.Options
}

func NewEncoder(ref *Reference, opts ...options.Option) *Encoder {
	oo := options.NewOptions(opts...)
	return &Encoder{
		ref:    ref,
		logger: oo.Logger,
		clock:  oo.Clock,
		opts:   oo,
	}
}

// Encode commits a batch under a fresh random salt.
func (e *Encoder) Encode(inputs []Input) (*enrollment.Store, error) {
	salt, err := crypto.RandomBytes(e.opts.Rand, enrollment.SaltSize)
	if err != nil {
		return nil, failure.WithMessage(failure.ErrEncodingFailure, err.Error())
	}
	return e.EncodeWithSalt(salt, inputs)
}

// EncodeWithSalt commits a batch under the given salt. Every record gets its
// own random k2. Any failing vector fails the whole batch; no partial store is
// returned.
func (e *Encoder) EncodeWithSalt(salt []byte, inputs []Input) (*enrollment.Store, error) {
	if len(inputs) == 0 {
		return nil, failure.NewInsufficientFrames(0, 1)
	}
	if len(salt) == 0 {
		return nil, failure.WithMessage(failure.ErrEncodingFailure, "empty salt")
	}

	records := make([]enrollment.Record, len(inputs))
	for i, in := range inputs {
		k2, err := crypto.RandomBytes(e.opts.Rand, enrollment.K2Size)
		if err != nil {
			return nil, failure.WithMessage(failure.ErrEncodingFailure, err.Error())
		}

		r, err := e.commit(in.Vector, salt, k2)
		if err != nil {
			return nil, fmt.Errorf("record %d: %w", i, err)
		}

		r.Index = i
		r.IOD = in.IOD
		r.Timestamp = in.CapturedAt
		if r.Timestamp.IsZero() {
			r.Timestamp = e.clock()
		}
		records[i] = r
	}

	store := &enrollment.Store{SavedAt: e.clock(), Records: records}
	e.logger.Debug("commitment batch encoded", "records", len(records))

	return store, nil
}

// EncodeAsync runs Encode on its own goroutine. The channel yields exactly
// one result; a cancelled context yields its error instead of a store.
func (e *Encoder) EncodeAsync(ctx context.Context, inputs []Input) <-chan mo.Result[*enrollment.Store] {
	out := make(chan mo.Result[*enrollment.Store], 1)

	go func() {
		defer close(out)

		if err := ctx.Err(); err != nil {
			out <- mo.Err[*enrollment.Store](err)
			return
		}

		store, err := e.Encode(inputs)
		if err == nil {
			err = ctx.Err()
		}
		if err != nil {
			out <- mo.Err[*enrollment.Store](err)
			return
		}
		out <- mo.Ok(store)
	}()

	return out
}

func (e *Encoder) commit(v feature.Vector, salt, k2 []byte) (enrollment.Record, error) {
	bits, err := e.ref.Quantize(v)
	if err != nil {
		return enrollment.Record{}, err
	}

	message, err := deriveMessage(bits, salt)
	if err != nil {
		return enrollment.Record{}, failure.WithMessage(failure.ErrEncodingFailure, err.Error())
	}

	c, err := codeword.Encode(message)
	if err != nil {
		return enrollment.Record{}, failure.WithMessage(failure.ErrEncodingFailure, err.Error())
	}

	helper, err := c.Xor(bits)
	if err != nil {
		return enrollment.Record{}, failure.WithMessage(failure.ErrEncodingFailure, err.Error())
	}

	k, err := codeword.Decode(c)
	if err != nil || !k.Equal(message) {
		return enrollment.Record{}, failure.WithMessage(failure.ErrEncodingFailure, "codeword does not decode to its message")
	}

	secretHash := SecretHash(k)

	return enrollment.Record{
		Helper:     helper,
		SecretHash: secretHash,
		Salt:       salt,
		K2:         k2,
		Token:      Token(k2, secretHash),
	}, nil
}

// deriveMessage binds the secret to both the enrolled bits and the salt, so
// identical geometry under one salt always commits to the same secret.
func deriveMessage(bits codeword.Bits, salt []byte) (codeword.Bits, error) {
	b, err := crypto.Derive(bits.Pack(), salt, messageInfo, SecretBits/8)
	if err != nil {
		return nil, err
	}
	return codeword.FromBytes(b, SecretBits)
}

// SecretHash hashes the secret's '0'/'1' text form.
func SecretHash(k codeword.Bits) []byte {
	return crypto.Hash([]byte(k.String()))
}

// Token binds a record's k2 to the secret hash.
func Token(k2, secretHash []byte) []byte {
	return crypto.Hash(k2, secretHash)
}
