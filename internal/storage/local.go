package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
)

var _ Store = (*LocalStore)(nil)

// LocalStore keeps blobs as files in a single flat directory.
type LocalStore struct {
	dir string
}

// NewLocalStore creates the directory if needed and returns a store over it.
func NewLocalStore(dir string) (*LocalStore, error) {
	if dir == "" {
		return nil, fmt.Errorf("storage: directory must not be empty")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("storage: creating directory %s: %w", dir, err)
	}
	return &LocalStore{dir: dir}, nil
}

// path resolves a blob name inside the store directory. filepath.Base
// strips any path components, so a name can never escape the directory.
func (s *LocalStore) path(name string) string {
	return filepath.Join(s.dir, filepath.Base(name))
}

func (s *LocalStore) Save(_ context.Context, name string, data []byte, _ string) error {
	if err := os.WriteFile(s.path(name), data, 0o644); err != nil {
		return fmt.Errorf("storage: writing %s: %w", name, err)
	}
	return nil
}

func (s *LocalStore) Open(_ context.Context, name string) (io.ReadCloser, error) {
	f, err := os.Open(s.path(name))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ErrNotExist
		}
		return nil, fmt.Errorf("storage: opening %s: %w", name, err)
	}
	return f, nil
}

func (s *LocalStore) Delete(_ context.Context, name string) error {
	if err := os.Remove(s.path(name)); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return ErrNotExist
		}
		return fmt.Errorf("storage: deleting %s: %w", name, err)
	}
	return nil
}
