package storage

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"

	"ticketsync/internal/config"
	"ticketsync/internal/fileutil"
	"ticketsync/internal/services"
)

// Local writes attachments beneath a root directory.
type Local struct {
	root string
}

// NewLocal returns a Local sink rooted at dir.
func NewLocal(dir string) (*Local, error) {
	if dir == "" {
		return nil, services.Wrap(services.ErrConfiguration, "storage", "open", "attachment directory is empty", nil)
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("resolve attachment directory: %w", err)
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("create attachment directory: %w", err)
	}
	return &Local{root: abs}, nil
}

func (l *Local) Type() string { return config.StorageLocal }

// Path maps key to its filesystem location.
func (l *Local) Path(key string) string {
	return filepath.Join(l.root, filepath.FromSlash(key))
}

func (l *Local) Exists(_ context.Context, key string) (bool, error) {
	return fileutil.Exists(l.Path(key)), nil
}

// Put writes atomically so a partial download never looks complete.
func (l *Local) Put(_ context.Context, key string, r io.Reader, _ string) (int64, error) {
	n, err := fileutil.WriteReaderAtomic(l.Path(key), r, 0o644)
	if err != nil {
		return 0, services.Wrap(services.ErrTransient, "storage", "put", key, err)
	}
	return n, nil
}

// Location returns a file:// URL for key.
func (l *Local) Location(key string) string {
	return (&url.URL{Scheme: "file", Path: filepath.ToSlash(l.Path(key))}).String()
}

func (l *Local) Close() error { return nil }
