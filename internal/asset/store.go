// Package asset locates widget archives for the download gate.
package asset

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
)

// Store opens an archive by file name for streaming.
type Store interface {
	Open(ctx context.Context, name string) (io.ReadCloser, error)
}

// DirStore serves archives from a single directory. Names that would resolve
// outside of it are rejected.
type DirStore struct {
	dir string
}

func NewDirStore(dir string) (*DirStore, error) {
	dir = strings.TrimSpace(dir)
	if dir == "" {
		return nil, fmt.Errorf("assets directory is required")
	}
	return &DirStore{dir: dir}, nil
}

func (s *DirStore) Open(_ context.Context, name string) (io.ReadCloser, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("asset name is required")
	}

	root, err := os.OpenRoot(s.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to open assets directory: %w", err)
	}
	defer root.Close()

	f, err := root.Open(name)
	if err != nil {
		return nil, fmt.Errorf("failed to open asset %q: %w", name, err)
	}
	return f, nil
}
