package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"

	"github.com/byosync/facecommit/pkg/enrollment"
	"github.com/byosync/facecommit/pkg/failure"
)

// File writes one JSON document per identity under a directory.
type File struct {
	dir string
}

func NewFile(dir string) (*File, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("cannot create store directory: %w", err)
	}
	return &File{dir: dir}, nil
}

func (f *File) path(id enrollment.Identity) (string, error) {
	name, err := key("", id)
	if err != nil {
		return "", err
	}
	return filepath.Join(f.dir, url.PathEscape(name)+".json"), nil
}

func (f *File) Save(_ context.Context, id enrollment.Identity, store *enrollment.Store) error {
	path, err := f.path(id)
	if err != nil {
		return err
	}
	if err := store.Validate(); err != nil {
		return err
	}

	data, err := json.MarshalIndent(store, "", "  ")
	if err != nil {
		return fmt.Errorf("cannot encode enrollment store: %w", err)
	}

	tmp, err := os.CreateTemp(f.dir, ".store-*")
	if err != nil {
		return err
	}
	defer func() {
		_ = os.Remove(tmp.Name())
	}()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}

	return os.Rename(tmp.Name(), path)
}

func (f *File) Load(_ context.Context, id enrollment.Identity) (*enrollment.Store, error) {
	path, err := f.path(id)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, failure.ErrNoEnrollment
	}
	if err != nil {
		return nil, err
	}

	var store enrollment.Store
	if err := json.Unmarshal(data, &store); err != nil {
		return nil, failure.WithMessage(failure.ErrEncodingFailure, err.Error())
	}
	if err := store.Validate(); err != nil {
		return nil, err
	}

	return &store, nil
}

func (f *File) Delete(_ context.Context, id enrollment.Identity) error {
	path, err := f.path(id)
	if err != nil {
		return err
	}

	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}
