package main

import (
	"context"
	"encoding/hex"
	"fmt"
	"io"
	"iter"
	"os"
	"strings"

	"github.com/byosync/facecommit/pkg/commitment"
	"github.com/byosync/facecommit/pkg/enrollment"
	"github.com/byosync/facecommit/pkg/landmark"
	"github.com/byosync/facecommit/pkg/options"
	"github.com/byosync/facecommit/pkg/storage"
	"github.com/go-redis/redis/v8"
)

// openRepository builds the configured storage backend. Connection details
// come from the environment.
func openRepository(ctx context.Context) (storage.Repository, error) {
	codec, err := newCodec()
	if err != nil {
		return nil, err
	}

	switch cfg.Storage.Backend {
	case "memory":
		return storage.NewMemory(), nil
	case "file":
		return storage.NewFile(cfg.Storage.Dir)
	case "redis":
		addr := os.Getenv("FACECOMMIT_REDIS_ADDR")
		if addr == "" {
			addr = "localhost:6379"
		}
		client := redis.NewClient(&redis.Options{
			Addr:     addr,
			Password: os.Getenv("FACECOMMIT_REDIS_PASSWORD"),
		})
		closers = append(closers, func(context.Context) error {
			return client.Close()
		})
		return storage.NewRedis(storage.NewRedisCache(client), codec, cfg.Storage.RedisTTL, options.WithLogger(logger)), nil
	case "postgres":
		url := os.Getenv("FACECOMMIT_DATABASE_URL")
		if url == "" {
			url = "postgres://localhost:5432/facecommit"
		}
		repo, err := storage.NewPostgres(ctx, url, codec, options.WithLogger(logger))
		if err != nil {
			return nil, fmt.Errorf("failed to connect to database: %w", err)
		}
		closers = append(closers, repo.Close)
		return repo, nil
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Storage.Backend)
	}
}

// newCodec seals payloads when FACECOMMIT_SEAL_KEY holds a hex AES-256 key.
func newCodec() (*storage.Codec, error) {
	var key []byte
	if s := os.Getenv("FACECOMMIT_SEAL_KEY"); s != "" {
		var err error
		if key, err = hex.DecodeString(s); err != nil {
			return nil, fmt.Errorf("FACECOMMIT_SEAL_KEY: %w", err)
		}
	}

	return storage.NewCodec(key, options.WithLogger(logger))
}

func loadReference() (*commitment.Reference, error) {
	f, err := os.Open(cfg.Reference)
	if err != nil {
		return nil, fmt.Errorf("cannot open reference: %w", err)
	}
	defer func() {
		_ = f.Close()
	}()

	return commitment.LoadReference(f)
}

// openFrames reads JSON-lines frames from path, or stdin for "" and "-".
func openFrames(path string) (iter.Seq2[landmark.Frame, error], error) {
	var r io.Reader = os.Stdin
	if path != "" && path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return nil, err
		}
		closers = append(closers, func(context.Context) error {
			return f.Close()
		})
		r = f
	}

	return landmark.DecodeFrames(r), nil
}

// parseIdentity accepts "user" or "user/device".
func parseIdentity(s string) (enrollment.Identity, error) {
	user, device, _ := strings.Cut(s, "/")
	id := enrollment.Identity{UserID: user, DeviceID: device}
	if !id.Valid() {
		return enrollment.Identity{}, fmt.Errorf("invalid identity %q", s)
	}
	return id, nil
}
