// Package backend defines the object backend contract the Cache
// Manager fetches missed blocks from, plus three implementations: an
// HTTP client, a local-mirror filesystem backend, and an S3 backend.
package backend

import (
	"context"
	"errors"
)

// ErrUnsupported is returned by a backend operation the implementation
// does not offer (e.g. uploads disabled on a read-only mirror).
var ErrUnsupported = errors.New("backend: operation not supported")

// Backend is the object store the Cache Manager consults on a miss. The
// Cache Manager does not upload dirty blocks through it; PutRange is
// called only on its own write-through mirror. All three operations are
// range-oriented:
// a single object is addressed by path and never read or written in
// full, since objects may be larger than memory.
type Backend interface {
	// GetRange reads up to len(buf) bytes of path starting at offset
	// and returns the number of bytes actually read. A short read (n <
	// len(buf)) at end of object is not an error. Returning (0, err)
	// signals the object or range could not be fetched at all.
	GetRange(ctx context.Context, path string, buf []byte, offset int64) (int, error)

	// PutRange writes buf to path at offset and returns the number of
	// bytes written.
	PutRange(ctx context.Context, path string, buf []byte, offset int64) (int, error)

	// Delete removes path from the backend entirely.
	Delete(ctx context.Context, path string) error
}
