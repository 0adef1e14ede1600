// Package storage persists enrollment stores keyed by user and device.
//
// Backends hold the CBOR encoding of a store, optionally sealed with
// AES-256-GCM, except File which writes the JSON form for inspection.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/byosync/facecommit/pkg/crypto"
	"github.com/byosync/facecommit/pkg/enrollment"
	"github.com/byosync/facecommit/pkg/failure"
	"github.com/byosync/facecommit/pkg/options"
	"github.com/fxamacker/cbor/v2"
)

var ErrInvalidIdentity = errors.New("storage: identity has no user id")

type Repository interface {
	Save(ctx context.Context, id enrollment.Identity, store *enrollment.Store) error
	// Load returns failure.ErrNoEnrollment when nothing is stored for id.
	Load(ctx context.Context, id enrollment.Identity) (*enrollment.Store, error)
	Delete(ctx context.Context, id enrollment.Identity) error
}

type envelope struct {
	Plain  []byte         `cbor:"1,keyasint,omitempty"`
	Sealed *crypto.Sealed `cbor:"2,keyasint,omitempty"`
}

// Codec turns stores into backend payloads.
type Codec struct {
	encMode cbor.EncMode
	key     []byte
	rand    io.Reader
}

// NewCodec returns a codec that seals payloads when sealKey is set. The key
// must be empty or 32 bytes.
func NewCodec(sealKey []byte, opts ...options.Option) (*Codec, error) {
	if len(sealKey) != 0 && len(sealKey) != 32 {
		return nil, crypto.ErrInvalidKey
	}

	oo := options.NewOptions(opts...)
	return &Codec{
		encMode: oo.EncMode,
		key:     sealKey,
		rand:    oo.Rand,
	}, nil
}

func (c *Codec) Encode(store *enrollment.Store) ([]byte, error) {
	if err := store.Validate(); err != nil {
		return nil, err
	}

	plain, err := store.EncodeCBOR(c.encMode)
	if err != nil {
		return nil, fmt.Errorf("cannot encode enrollment store: %w", err)
	}

	env := envelope{Plain: plain}
	if len(c.key) > 0 {
		sealed, err := crypto.Seal(c.key, plain, c.rand)
		if err != nil {
			return nil, fmt.Errorf("cannot seal enrollment store: %w", err)
		}
		env = envelope{Sealed: sealed}
	}

	return c.encMode.Marshal(env)
}

func (c *Codec) Decode(data []byte) (*enrollment.Store, error) {
	var env envelope
	if err := cbor.Unmarshal(data, &env); err != nil {
		return nil, failure.WithMessage(failure.ErrEncodingFailure, err.Error())
	}

	plain := env.Plain
	if env.Sealed != nil {
		if len(c.key) == 0 {
			return nil, failure.WithMessage(failure.ErrEncodingFailure, "store is sealed and no key is configured")
		}

		var err error
		if plain, err = crypto.Open(c.key, env.Sealed); err != nil {
			return nil, failure.WithMessage(failure.ErrEncodingFailure, "cannot open sealed store: "+err.Error())
		}
	}

	store, err := enrollment.DecodeCBOR(plain)
	if err != nil {
		return nil, failure.WithMessage(failure.ErrEncodingFailure, err.Error())
	}
	if err := store.Validate(); err != nil {
		return nil, err
	}

	return store, nil
}

func key(prefix string, id enrollment.Identity) (string, error) {
	if !id.Valid() {
		return "", ErrInvalidIdentity
	}
	return prefix + id.String(), nil
}
