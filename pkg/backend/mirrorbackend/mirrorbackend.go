// Package mirrorbackend implements the object backend contract over a
// plain filesystem directory, using positioned file I/O. It is also the
// concrete type the Cache Manager's own write-through mirror and
// read-through fallback fall back to under the cache root (§4.6): this
// package is shared by both roles.
package mirrorbackend

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/marmos91/cachefs/pkg/backend"
)

// Backend serves objects from files under a root directory, one file
// per object path.
type Backend struct {
	root string
}

// New returns a Backend rooted at dir. The directory is created if absent.
func New(dir string) (*Backend, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("mirrorbackend: create root %q: %w", dir, err)
	}
	return &Backend{root: dir}, nil
}

// Root returns the directory the mirror was constructed with.
func (b *Backend) Root() string {
	return b.root
}

func (b *Backend) filePath(path string) string {
	return filepath.Join(b.root, filepath.FromSlash(path))
}

// GetRange reads up to len(buf) bytes of path starting at offset from
// the mirror directory.
func (b *Backend) GetRange(_ context.Context, path string, buf []byte, offset int64) (int, error) {
	f, err := os.Open(b.filePath(path))
	if err != nil {
		if os.IsNotExist(err) {
			return 0, backend.ErrUnsupported
		}
		return 0, fmt.Errorf("mirrorbackend: open %q: %w", path, err)
	}
	defer f.Close()

	n, err := f.ReadAt(buf, offset)
	if err != nil && err != io.EOF {
		return n, fmt.Errorf("mirrorbackend: read %q at %d: %w", path, offset, err)
	}
	return n, nil
}

// PutRange writes buf to path at offset, creating the file and any
// parent directories as needed.
func (b *Backend) PutRange(_ context.Context, path string, buf []byte, offset int64) (int, error) {
	full := b.filePath(path)
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return 0, fmt.Errorf("mirrorbackend: create parent dir for %q: %w", path, err)
	}

	f, err := os.OpenFile(full, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return 0, fmt.Errorf("mirrorbackend: open %q: %w", path, err)
	}
	defer f.Close()

	if _, err := f.WriteAt(buf, offset); err != nil {
		return 0, fmt.Errorf("mirrorbackend: write %q at %d: %w", path, offset, err)
	}
	return len(buf), nil
}

// Delete removes path's mirror file. A missing file is not an error.
func (b *Backend) Delete(_ context.Context, path string) error {
	if err := os.Remove(b.filePath(path)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("mirrorbackend: delete %q: %w", path, err)
	}
	return nil
}

var _ backend.Backend = (*Backend)(nil)
