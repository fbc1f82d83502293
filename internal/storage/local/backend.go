// Package local keeps the state record in a file on the local filesystem.
package local

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/JakeFAU/page-watcher/internal/storage"
)

// Config captures the parameters for the file backend.
type Config struct {
	// Path is the state file. Parent directories are created on first write.
	Path string `mapstructure:"path" yaml:"path"`
}

// Backend reads and atomically replaces a single file.
type Backend struct {
	path string
}

var _ storage.Backend = (*Backend)(nil)

// New creates a file-backed backend.
func New(cfg Config) (*Backend, error) {
	path := strings.TrimSpace(cfg.Path)
	if path == "" {
		return nil, fmt.Errorf("state path is required")
	}
	return &Backend{path: filepath.Clean(path)}, nil
}

// Read returns the file contents or storage.ErrNotFound when the file is absent.
func (b *Backend) Read(_ context.Context) ([]byte, error) {
	data, err := os.ReadFile(b.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("read state file: %w", err)
	}
	return data, nil
}

// Write stages data in a temp file beside the target, syncs it, then renames it
// over the target so readers see either the old or the new record.
func (b *Backend) Write(_ context.Context, data []byte) (err error) {
	dir := filepath.Dir(b.path)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return fmt.Errorf("failed to create state directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(b.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer func() {
		if err != nil {
			_ = tmp.Close()
			_ = os.Remove(tmpName)
		}
	}()

	if _, err = tmp.Write(data); err != nil {
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if err = tmp.Sync(); err != nil {
		return fmt.Errorf("failed to sync temp file: %w", err)
	}
	if err = tmp.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if err = os.Rename(tmpName, b.path); err != nil {
		return fmt.Errorf("failed to replace state file: %w", err)
	}
	return nil
}

// Location returns the file path.
func (b *Backend) Location() string {
	return b.path
}
