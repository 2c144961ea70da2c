// Package blockstore persists object parts to disk in the two-level
// shard layout (<root>/<ff>/<ff>/<fingerprint>.<part>.blk) and provides
// the raw byte-range read/write/delete primitives the Cache Manager
// builds on. It holds no per-entry state of its own: every call is
// addressed by fingerprint and part index, and concurrent calls against
// different (fingerprint, part) pairs never contend.
package blockstore

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/hashicorp/go-multierror"

	"github.com/marmos91/cachefs/internal/logger"
	"github.com/marmos91/cachefs/pkg/pathhash"
)

// BlockSize is the fixed unit of cache accounting and eviction, in bytes.
const BlockSize = 64 * 1024

// PartMax is the maximum size of a single on-disk part file, in bytes.
// An object's byte range [0, PartMax) lives in part 0, [PartMax, 2*PartMax)
// in part 1, and so on.
const PartMax = 2 * 1024 * 1024 * 1024

// BlocksPerPart is the fixed number of block-sized slots a part's dirty
// bitmap accounts for, regardless of how much of the part is populated.
const BlocksPerPart = PartMax / BlockSize

// Store reads, writes, and deletes cached object parts under a root
// directory. The zero value is not usable; construct with New.
type Store struct {
	root string
}

// New returns a Store rooted at dir. The directory is created if absent.
func New(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("blockstore: create root %q: %w", dir, err)
	}
	return &Store{root: dir}, nil
}

// Root returns the store's root directory.
func (s *Store) Root() string {
	return s.root
}

// PartOffset splits a byte offset within an object into the part index
// that holds it and the offset within that part.
func PartOffset(objectOffset int64) (partIdx uint32, offsetInPart int64) {
	return uint32(objectOffset / PartMax), objectOffset % PartMax
}

// Read reads up to len(buf) bytes from the given part of fp starting at
// offsetInPart. It returns io.EOF-wrapped behavior identical to
// os.File.ReadAt: a short read at end of file returns the bytes read and
// a non-nil error.
func (s *Store) Read(fp pathhash.Fingerprint, partIdx uint32, offsetInPart int64, buf []byte) (int, error) {
	path := DataPartPath(s.root, fp, partIdx)
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, io.EOF
		}
		return 0, fmt.Errorf("blockstore: open %q: %w", path, err)
	}
	defer f.Close()

	n, err := f.ReadAt(buf, offsetInPart)
	if err != nil && err != io.EOF {
		return n, fmt.Errorf("blockstore: read %q at %d: %w", path, offsetInPart, err)
	}
	return n, err
}

// Write writes buf to the given part of fp at offsetInPart, creating the
// part file and its shard directory as needed.
func (s *Store) Write(fp pathhash.Fingerprint, partIdx uint32, offsetInPart int64, buf []byte) error {
	dir := ShardDir(s.root, fp)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("blockstore: create shard dir %q: %w", dir, err)
	}

	path := DataPartPath(s.root, fp, partIdx)
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return fmt.Errorf("blockstore: open %q: %w", path, err)
	}
	defer f.Close()

	if _, err := f.WriteAt(buf, offsetInPart); err != nil {
		return fmt.Errorf("blockstore: write %q at %d: %w", path, offsetInPart, err)
	}
	return nil
}

// DeleteObject removes every part and bitmap file belonging to fp, across
// all part indices present on disk. Missing files are not an error.
// Failures are aggregated: DeleteObject attempts every removal before
// returning, rather than stopping at the first error.
func (s *Store) DeleteObject(fp pathhash.Fingerprint) error {
	dir := ShardDir(s.root, fp)
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("blockstore: list %q: %w", dir, err)
	}

	prefix := fp.String() + "."
	var result *multierror.Error
	removed := 0
	for _, ent := range entries {
		if ent.IsDir() {
			continue
		}
		name := ent.Name()
		if len(name) <= len(prefix) || name[:len(prefix)] != prefix {
			continue
		}
		full := filepath.Join(dir, name)
		if err := os.Remove(full); err != nil && !os.IsNotExist(err) {
			result = multierror.Append(result, fmt.Errorf("remove %q: %w", full, err))
			continue
		}
		removed++
	}

	// Shard directories are shared across many fingerprints; removal is
	// best effort and errors (e.g. ENOTEMPTY when siblings remain) are
	// ignored. Both levels of the two-level "<ff>/<ff>" shard path are
	// attempted, innermost first.
	_ = os.Remove(dir)
	_ = os.Remove(filepath.Dir(dir))

	logger.Debug("block store deleted object", logger.Path(fp.String()), "files_removed", removed)
	if result != nil {
		return fmt.Errorf("blockstore: delete object %s: %w", fp, result)
	}
	return nil
}
