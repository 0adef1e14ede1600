package options

import (
	"context"
	"crypto/rand"
	"io"
	"log/slog"
	"time"

	"github.com/fxamacker/cbor/v2"
)

type Options struct {
	Logger  *slog.Logger
	EncMode cbor.EncMode
	Context context.Context
	// Clock supplies the wall time for frames that carry no timestamp and for record timestamps.
	Clock func() time.Time
	// Rand is the entropy source for salts and per-record k2 values.
	Rand io.Reader
}

type Option func(*Options)

func WithLogger(logger *slog.Logger) Option {
	return func(opts *Options) {
		opts.Logger = logger
	}
}

func WithEncMode(encMode cbor.EncMode) Option {
	return func(opts *Options) {
		opts.EncMode = encMode
	}
}

func WithContext(ctx context.Context) Option {
	return func(opts *Options) {
		opts.Context = ctx
	}
}

func WithClock(clock func() time.Time) Option {
	return func(opts *Options) {
		opts.Clock = clock
	}
}

func WithRand(r io.Reader) Option {
	return func(opts *Options) {
		opts.Rand = r
	}
}

func NewOptions(opts ...Option) *Options {
	encMode, _ := cbor.CoreDetEncOptions().EncMode()
	oo := &Options{
		Logger:  slog.Default(),
		EncMode: encMode,
		Context: context.Background(),
		Clock:   time.Now,
		Rand:    rand.Reader,
	}

	for _, opt := range opts {
		opt(oo)
	}

	return oo
}
