package metadatastore

import (
	"os"
	"sync"

	"github.com/boljen/go-bitmap"

	"github.com/marmos91/cachefs/internal/logger"
	"github.com/marmos91/cachefs/pkg/blockstore"
	"github.com/marmos91/cachefs/pkg/pathhash"
)

// bitmapKey addresses a single part's dirty bitmap.
type bitmapKey struct {
	fp      pathhash.Fingerprint
	partIdx uint32
}

// bitmapTable holds every loaded per-part dirty bitmap in memory, keyed
// by (fingerprint, part_idx) as §4.3 requires. Bitmaps are lazily
// loaded from <fingerprint>.<part>.dmap on first touch; a missing file
// means all-clean, not an error.
type bitmapTable struct {
	mu    sync.Mutex
	root  string
	bits  map[bitmapKey]bitmap.Bitmap
	dirty map[bitmapKey]bool // modified since last flush
}

func newBitmapTable(cacheRoot string) *bitmapTable {
	return &bitmapTable{
		root:  cacheRoot,
		bits:  make(map[bitmapKey]bitmap.Bitmap),
		dirty: make(map[bitmapKey]bool),
	}
}

func (t *bitmapTable) load(key bitmapKey) bitmap.Bitmap {
	if bm, ok := t.bits[key]; ok {
		return bm
	}

	path := blockstore.BitmapPath(t.root, key.fp, key.partIdx)
	data, err := os.ReadFile(path)
	var bm bitmap.Bitmap
	switch {
	case err == nil:
		bm = bitmap.Bitmap(data)
	case os.IsNotExist(err):
		bm = bitmap.NewSlice(blockstore.BlocksPerPart)
	default:
		logger.Warn("metadata store failed to load dirty bitmap, treating as clean",
			logger.Path(path), logger.Err(err))
		bm = bitmap.NewSlice(blockstore.BlocksPerPart)
	}

	t.bits[key] = bm
	return bm
}

// MarkDirtyBlock sets the dirty bit for blockIdx within (fp, partIdx).
func (s *Store) MarkDirtyBlock(fp pathhash.Fingerprint, partIdx uint32, blockIdx uint32) {
	s.bitmaps.mu.Lock()
	defer s.bitmaps.mu.Unlock()

	key := bitmapKey{fp: fp, partIdx: partIdx}
	bm := s.bitmaps.load(key)
	bm.Set(int(blockIdx), true)
	s.bitmaps.dirty[key] = true
}

// IsBlockDirty reports whether blockIdx within (fp, partIdx) is marked
// dirty. The eviction driver does not consult it; it decides on the
// object row's Dirty flag instead.
func (s *Store) IsBlockDirty(fp pathhash.Fingerprint, partIdx uint32, blockIdx uint32) bool {
	s.bitmaps.mu.Lock()
	defer s.bitmaps.mu.Unlock()

	bm := s.bitmaps.load(bitmapKey{fp: fp, partIdx: partIdx})
	return bm.Get(int(blockIdx))
}

// FlushBitmaps persists every modified in-memory bitmap belonging to fp
// to its <fingerprint>.<part>.dmap file, per §4.3.
func (s *Store) FlushBitmaps(fp pathhash.Fingerprint) error {
	s.bitmaps.mu.Lock()
	defer s.bitmaps.mu.Unlock()

	for key, bm := range s.bitmaps.bits {
		if key.fp != fp || !s.bitmaps.dirty[key] {
			continue
		}
		if err := os.MkdirAll(blockstore.ShardDir(s.bitmaps.root, key.fp), 0o755); err != nil {
			return err
		}
		path := blockstore.BitmapPath(s.bitmaps.root, key.fp, key.partIdx)
		if err := os.WriteFile(path, []byte(bm), 0o644); err != nil {
			return err
		}
		s.bitmaps.dirty[key] = false
	}
	return nil
}

// DropBitmaps discards every in-memory bitmap for fp without persisting
// them, used by the eviction driver once an entry's blocks and bitmap
// files are deleted (§3 invariant: an evicted entry has zero blocks and
// zero bitmap bits set).
func (s *Store) DropBitmaps(fp pathhash.Fingerprint) {
	s.bitmaps.mu.Lock()
	defer s.bitmaps.mu.Unlock()

	for key := range s.bitmaps.bits {
		if key.fp == fp {
			delete(s.bitmaps.bits, key)
			delete(s.bitmaps.dirty, key)
		}
	}
}
