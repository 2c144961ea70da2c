// Package cachemanager implements the central subsystem described in
// §4.6: it owns the Block Store, Metadata Store, Eviction Policy, and
// Prefetch Pool behind a single entry table, and drives the read,
// write, prefetch, flush, and eviction paths described there. Its
// locking discipline is the coarse, single-mutex baseline §5 names as
// acceptable ("most latency is in the backend and the block store"),
// matching the single globalMu the reference cache layer
// (pkg/cache/cache.go) uses around its own file table.
package cachemanager

import (
	"context"
	"fmt"
	"io/fs"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/hashicorp/go-multierror"

	"github.com/marmos91/cachefs/internal/logger"
	"github.com/marmos91/cachefs/pkg/backend"
	"github.com/marmos91/cachefs/pkg/backend/mirrorbackend"
	"github.com/marmos91/cachefs/pkg/blockstore"
	"github.com/marmos91/cachefs/pkg/cacheerrors"
	"github.com/marmos91/cachefs/pkg/evictionpolicy"
	"github.com/marmos91/cachefs/pkg/metadatastore"
	"github.com/marmos91/cachefs/pkg/metrics"
	"github.com/marmos91/cachefs/pkg/pathhash"
	"github.com/marmos91/cachefs/pkg/prefetchpool"
)

// hotness tags, per §4.4: fetch-on-demand and writes are tagged hottest,
// prefetch-populated blocks are tagged most evictable.
const (
	hotnessFetched  = 1.0
	hotnessPrefetch = 0.25
)

// Manager is the Cache Manager. The zero value is not usable;
// construct with New.
type Manager struct {
	mu          sync.Mutex // the table lock; a prefetch job takes it only for capacity eviction
	entries     map[string]*Entry
	byID        map[uint32]*Entry
	nextEntryID atomic.Uint32

	// blocksMu guards blocksByID independently of the table lock so
	// prefetch jobs can record the blocks they populate without
	// touching mu, per §4.5's "prefetch must never acquire the Cache
	// Manager's table lock".
	blocksMu   sync.Mutex
	blocksByID map[uint32]map[uint32]struct{} // entry id -> resident block indices

	cacheHits   atomic.Int64
	cacheMisses atomic.Int64

	cacheRoot      string
	prefetchWindow int
	blocks         *blockstore.Store
	meta           *metadatastore.Store
	policy         *evictionpolicy.Policy
	prefetch       *prefetchpool.Pool
	remote         backend.Backend
	mirror         *mirrorbackend.Backend
	metrics        metrics.CacheMetrics

	allowDirtyEviction bool
}

// New builds a Manager over cfg.CacheRoot, fetching misses from remote.
func New(cfg Config, remote backend.Backend) (*Manager, error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	blocks, err := blockstore.New(cfg.CacheRoot)
	if err != nil {
		return nil, fmt.Errorf("cachemanager: %w", err)
	}

	meta, err := metadatastore.New(&metadatastore.Config{CacheRoot: cfg.CacheRoot})
	if err != nil {
		return nil, fmt.Errorf("cachemanager: %w", err)
	}

	mirror, err := mirrorbackend.New(filepath.Join(cfg.CacheRoot, "mirror"))
	if err != nil {
		return nil, fmt.Errorf("cachemanager: %w", err)
	}

	return &Manager{
		entries:            make(map[string]*Entry),
		byID:               make(map[uint32]*Entry),
		blocksByID:         make(map[uint32]map[uint32]struct{}),
		cacheRoot:          cfg.CacheRoot,
		prefetchWindow:     cfg.PrefetchWindow,
		blocks:             blocks,
		meta:               meta,
		policy:             evictionpolicy.New(cfg.CacheBlocksCapacity),
		prefetch:           prefetchpool.New(cfg.PrefetchWorkers, DefaultPrefetchQueueDepth),
		remote:             remote,
		mirror:             mirror,
		metrics:            metrics.NewCacheMetrics(),
		allowDirtyEviction: cfg.AllowDirtyEviction,
	}, nil
}

// Close drains the prefetch pool, letting in-flight jobs finish.
func (m *Manager) Close() {
	m.prefetch.Close()
}

// resolveOrCreateEntry returns the live entry for path, allocating one
// if absent. A previously evicted entry is replaced by a fresh one
// rather than revived, per the §4.6 state machine.
func (m *Manager) resolveOrCreateEntry(path string) *Entry {
	if e, ok := m.entries[path]; ok && !e.Evicted() {
		return e
	}

	e := &Entry{
		id:          m.nextEntryID.Add(1),
		Path:        path,
		Fingerprint: pathhash.Hash(path),
		LastBlock:   noBlockRead,
		state:       stateLive,
	}
	m.entries[path] = e
	m.byID[e.id] = e

	// A fresh entry needs its object row before MarkDirty can update it:
	// MarkDirty issues a plain UPDATE, which silently affects zero rows
	// against a path that was never Put.
	now := time.Now()
	m.meta.Put(&metadatastore.ObjectRow{
		Path:         path,
		LocalPath:    filepath.Join(m.mirror.Root(), filepath.FromSlash(path)),
		Timestamp:    now,
		LastAccessed: now,
	})
	return e
}

func blockRange(offset int64, length int) (first, last int64) {
	first = offset / blockstore.BlockSize
	last = (offset + int64(length) - 1) / blockstore.BlockSize
	return
}

func (m *Manager) trackBlock(entryID uint32, block int64) {
	m.blocksMu.Lock()
	defer m.blocksMu.Unlock()

	set := m.blocksByID[entryID]
	if set == nil {
		set = make(map[uint32]struct{})
		m.blocksByID[entryID] = set
	}
	set[uint32(block)] = struct{}{}
}

// Read implements the §4.6 read path: the table lock is held across
// the whole call, blocks are served from the Block Store on a hit or
// fetched from the object backend (falling back to the local mirror)
// on a miss, and a sequential access pattern schedules a prefetch.
func (m *Manager) Read(path string, buf []byte, offset int64) (int, error) {
	if len(buf) == 0 {
		return 0, nil
	}

	start := time.Now()
	m.mu.Lock()
	defer m.mu.Unlock()

	entry := m.resolveOrCreateEntry(path)

	firstBlock, lastBlock := blockRange(offset, len(buf))
	delivered := 0
	anyHit := false

	for b := firstBlock; b <= lastBlock; b++ {
		blockOffset := b * blockstore.BlockSize
		partIdx, offsetInPart := blockstore.PartOffset(blockOffset)

		tmp := make([]byte, blockstore.BlockSize)
		n, _ := m.blocks.Read(entry.Fingerprint, partIdx, offsetInPart, tmp)

		hit := n == blockstore.BlockSize
		if hit {
			m.cacheHits.Add(1)
			anyHit = true
		} else {
			m.cacheMisses.Add(1)

			got, err := m.remote.GetRange(context.Background(), path, tmp, blockOffset)
			if got <= 0 {
				got, err = m.mirror.GetRange(context.Background(), path, tmp, blockOffset)
			}
			if got <= 0 {
				if delivered == 0 {
					if err == nil {
						err = cacheerrors.BackendNotFound(path)
					}
					m.recordRead(delivered, start, anyHit)
					return -1, err
				}
				m.recordRead(delivered, start, anyHit)
				return delivered, nil
			}
			n = got
			if werr := m.blocks.Write(entry.Fingerprint, partIdx, offsetInPart, tmp[:n]); werr != nil {
				logger.Warn("cache manager failed to persist fetched block", logger.Path(path), logger.Err(werr))
			}
		}

		// Copy the slice of this block that the caller's range covers.
		blockStart := b * blockstore.BlockSize
		copyStart := int64(0)
		if offset > blockStart {
			copyStart = offset - blockStart
		}
		bufStart := blockStart + copyStart - offset
		available := int64(n) - copyStart
		if available <= 0 {
			break
		}
		remaining := int64(len(buf)) - bufStart
		if available > remaining {
			available = remaining
		}
		copy(buf[bufStart:bufStart+available], tmp[copyStart:copyStart+available])
		delivered += int(available)

		evicted, evictedOK := m.policy.Touch(evictionpolicy.Key{EntryID: entry.id, BlockIdx: uint32(b)}, blockstore.BlockSize, hotnessFetched)
		m.trackBlock(entry.id, b)
		m.applyCapacityEviction(evicted, evictedOK, entry.id)

		sequential := b == entry.LastBlock+1
		entry.LastBlock = b
		if sequential {
			m.schedulePrefetch(entrySnapshot{id: entry.id, path: entry.Path, fp: entry.Fingerprint}, b+1)
		}
	}

	m.recordRead(delivered, start, anyHit)
	return delivered, nil
}

func (m *Manager) recordRead(n int, start time.Time, hit bool) {
	if m.metrics != nil {
		m.metrics.ObserveRead(int64(n), time.Since(start), hit)
	}
}

// Write implements the §4.6 write path: each intersecting block is
// read (zero-filled if absent), spliced with the caller's bytes, and
// written back in full so the block stays byte-aligned for future
// full-length hits.
func (m *Manager) Write(path string, buf []byte, offset int64) (int, error) {
	if len(buf) == 0 {
		return 0, nil
	}

	start := time.Now()
	m.mu.Lock()
	defer m.mu.Unlock()

	entry := m.resolveOrCreateEntry(path)

	firstBlock, lastBlock := blockRange(offset, len(buf))

	for b := firstBlock; b <= lastBlock; b++ {
		blockOffset := b * blockstore.BlockSize
		partIdx, offsetInPart := blockstore.PartOffset(blockOffset)

		// A missing or short existing block reads as zero-filled; tmp is
		// already zeroed by make([]byte, ...).
		tmp := make([]byte, blockstore.BlockSize)
		_, _ = m.blocks.Read(entry.Fingerprint, partIdx, offsetInPart, tmp)

		blockStart := b * blockstore.BlockSize
		spliceStart := int64(0)
		if offset > blockStart {
			spliceStart = offset - blockStart
		}
		srcStart := blockStart + spliceStart - offset
		n := blockstore.BlockSize - spliceStart
		if remaining := int64(len(buf)) - srcStart; n > remaining {
			n = remaining
		}
		copy(tmp[spliceStart:spliceStart+n], buf[srcStart:srcStart+n])

		if err := m.blocks.Write(entry.Fingerprint, partIdx, offsetInPart, tmp); err != nil {
			return int(srcStart), fmt.Errorf("cachemanager: write %q: %w", path, err)
		}

		m.meta.MarkDirtyBlock(entry.Fingerprint, partIdx, uint32(offsetInPart/blockstore.BlockSize))
		m.meta.MarkDirty(path, true)
		evicted, evictedOK := m.policy.Touch(evictionpolicy.Key{EntryID: entry.id, BlockIdx: uint32(b)}, blockstore.BlockSize, hotnessFetched)
		m.trackBlock(entry.id, b)
		m.applyCapacityEviction(evicted, evictedOK, entry.id)
	}

	// Best-effort write-through mirror; failures here never fail the write.
	if _, err := m.mirror.PutRange(context.Background(), path, buf, offset); err != nil {
		logger.Debug("cache manager write-through mirror failed", logger.Path(path), logger.Err(err))
	}

	if m.metrics != nil {
		m.metrics.ObserveWrite(int64(len(buf)), time.Since(start))
	}
	return len(buf), nil
}

// entrySnapshot is the immutable copy of the fields a prefetch job
// needs. Prefetch never dereferences the live Entry, so an entry that
// gets evicted mid-prefetch cannot race with the prefetch job's reads
// of entry state. A prefetch job fetches and stores blocks without the
// table lock; it acquires it only when its own Policy.Touch sheds
// another entry's block for capacity, through evictionAllowed and
// evictEntry.
type entrySnapshot struct {
	id   uint32
	path string
	fp   pathhash.Fingerprint
}

// schedulePrefetch enqueues a job populating up to PrefetchWindow
// blocks starting at firstBlock. Enqueue is non-blocking: a full queue
// simply skips the prefetch rather than stalling the foreground read.
func (m *Manager) schedulePrefetch(snap entrySnapshot, firstBlock int64) {
	window := m.prefetchWindow
	m.prefetch.TryEnqueue(func() {
		fetched := 0
		for i := int64(0); i < int64(window); i++ {
			b := firstBlock + i
			off := b * blockstore.BlockSize
			partIdx, offsetInPart := blockstore.PartOffset(off)

			tmp := make([]byte, blockstore.BlockSize)
			n, _ := m.blocks.Read(snap.fp, partIdx, offsetInPart, tmp)
			if n == blockstore.BlockSize {
				continue
			}

			got, _ := m.remote.GetRange(context.Background(), snap.path, tmp, off)
			if got <= 0 {
				continue
			}
			if err := m.blocks.Write(snap.fp, partIdx, offsetInPart, tmp[:got]); err != nil {
				logger.Debug("prefetch failed to persist block", logger.Path(snap.path), logger.Err(err))
				continue
			}

			// Neither Policy.Touch nor trackBlock touches the table
			// lock: Policy guards its own state, and trackBlock guards
			// blocksByID with its own mutex.
			evicted, evictedOK := m.policy.Touch(evictionpolicy.Key{EntryID: snap.id, BlockIdx: uint32(b)}, blockstore.BlockSize, hotnessPrefetch)
			m.trackBlock(snap.id, b)
			// This goroutine holds no locks (§4.5), unlike Read/Write,
			// so capacity eviction here uses the self-locking evictEntry
			// rather than applyCapacityEviction's Locked variant.
			if evictedOK && evicted.EntryID != snap.id && m.evictionAllowed(evicted) {
				if err := m.evictEntry(evicted.EntryID); err != nil {
					logger.Debug("prefetch capacity eviction failed", logger.Err(err))
				}
			}
			fetched++
		}
		if fetched > 0 && m.metrics != nil {
			m.metrics.RecordPrefetch(fetched)
		}
	})
}

// FlushAll persists every modified in-memory dirty bitmap to disk, for
// every entry currently in the table.
func (m *Manager) FlushAll() error {
	start := time.Now()
	m.mu.Lock()
	fingerprints := make([]pathhash.Fingerprint, 0, len(m.entries))
	for _, e := range m.entries {
		fingerprints = append(fingerprints, e.Fingerprint)
	}
	m.mu.Unlock()

	var result *multierror.Error
	for _, fp := range fingerprints {
		if err := m.meta.FlushBitmaps(fp); err != nil {
			result = multierror.Append(result, err)
		}
	}
	if m.metrics != nil {
		m.metrics.RecordFlush(len(fingerprints), time.Since(start))
	}
	if result != nil {
		return fmt.Errorf("cachemanager: flush_all: %w", result)
	}
	return nil
}

// EvictUntilGB drains the eviction policy for victims until the bytes
// resident under the cache root fall to or below targetGB, or the
// policy has nothing left to offer. Dirty entries are skipped unless
// the manager was configured with AllowDirtyEviction.
func (m *Manager) EvictUntilGB(targetGB float64) error {
	targetBytes := int64(targetGB * float64(1<<30))

	var result *multierror.Error
	for {
		used, err := m.diskUsageBytes()
		if err != nil {
			return fmt.Errorf("cachemanager: evict_until_gb: %w", err)
		}
		if used <= targetBytes {
			return result.ErrorOrNil()
		}

		key, ok := m.policy.EvictMatching(m.evictionAllowed)
		if !ok {
			return result.ErrorOrNil()
		}

		if err := m.evictEntry(key.EntryID); err != nil {
			result = multierror.Append(result, err)
		}
	}
}

func (m *Manager) evictionAllowed(key evictionpolicy.Key) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.evictionAllowedLocked(key)
}

// evictionAllowedLocked is evictionAllowed's body for callers that
// already hold m.mu.
func (m *Manager) evictionAllowedLocked(key evictionpolicy.Key) bool {
	entry, ok := m.byID[key.EntryID]
	if !ok || entry.Evicted() {
		return true // stale key, let it fall out of the policy
	}
	if m.allowDirtyEviction {
		return true
	}
	row, err := m.meta.Get(entry.Path)
	if err != nil {
		return true
	}
	return !row.Dirty
}

// applyCapacityEviction performs the on-disk cleanup for a block the
// Policy's Touch shed due to §4.4's capacity bound. evicted/evictedOK
// are Touch's return values; currentEntryID is the entry the in-flight
// Read/Write call is itself operating on.
//
// Two cases are deliberately left as a tracked-but-not-deleted anomaly
// rather than torn down here:
//   - evicted belongs to the entry currently being read or written:
//     deleting its on-disk state mid-operation would corrupt that
//     operation, so the block simply stops being tracked by the Policy
//     without being removed from disk.
//   - evicted is dirty and the manager was not configured with
//     AllowDirtyEviction: deleting unflushed writer data would violate
//     the no-silent-data-loss invariant that EvictUntilGB otherwise
//     enforces via evictionAllowed.
//
// The caller (Read or Write) already holds m.mu, so this and everything
// it calls must assume that lock is held, not acquire it.
func (m *Manager) applyCapacityEviction(evicted evictionpolicy.Key, evictedOK bool, currentEntryID uint32) {
	if !evictedOK || evicted.EntryID == currentEntryID {
		return
	}
	if !m.evictionAllowedLocked(evicted) {
		return
	}
	if err := m.evictEntryLocked(evicted.EntryID); err != nil {
		logger.Warn("capacity eviction failed", logger.Err(err))
	}
}

// evictEntry deletes every on-disk block and bitmap for the entry owning
// entryID and marks it evicted. It is a no-op if the entry is already
// gone or evicted.
func (m *Manager) evictEntry(entryID uint32) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.evictEntryLocked(entryID)
}

// evictEntryLocked is evictEntry's body for callers that already hold
// m.mu for the duration of the call, including the disk I/O: it is used
// by applyCapacityEviction from inside Read/Write, where re-locking m.mu
// would deadlock.
func (m *Manager) evictEntryLocked(entryID uint32) error {
	entry, ok := m.byID[entryID]
	if !ok || entry.Evicted() {
		return nil
	}
	entry.state = stateEvicted
	fp := entry.Fingerprint
	path := entry.Path

	m.blocksMu.Lock()
	blocks := m.blocksByID[entryID]
	delete(m.blocksByID, entryID)
	m.blocksMu.Unlock()
	for b := range blocks {
		m.policy.Remove(evictionpolicy.Key{EntryID: entryID, BlockIdx: b})
	}

	if err := m.blocks.DeleteObject(fp); err != nil {
		return fmt.Errorf("cachemanager: evict %q: %w", path, err)
	}

	// §3 invariant: an evicted entry has zero bitmap bits set. The part
	// and .dmap files are already gone; drop the matching in-memory
	// bitmap state so a later lookup doesn't see stale dirty bits.
	m.meta.DropBitmaps(fp)
	m.meta.MarkDirty(path, false)

	if m.metrics != nil {
		m.metrics.RecordEviction("capacity")
	}
	return nil
}

// diskUsageBytes sums the size of every part file under the cache root.
func (m *Manager) diskUsageBytes() (int64, error) {
	var total int64
	err := filepath.WalkDir(m.cacheRoot, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || filepath.Ext(path) != ".blk" {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		total += info.Size()
		return nil
	})
	return total, err
}

// HasValidEntry reports whether path has a live (non-evicted) entry.
func (m *Manager) HasValidEntry(path string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[path]
	return ok && !e.Evicted()
}

// GetEntry returns path's entry, if any (live or evicted).
func (m *Manager) GetEntry(path string) (*Entry, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[path]
	return e, ok
}

// ResetStats zeroes the hit and miss counters.
func (m *Manager) ResetStats() {
	m.cacheHits.Store(0)
	m.cacheMisses.Store(0)
}

// GetCacheHits returns the monotonic hit counter's current value.
func (m *Manager) GetCacheHits() int64 {
	return m.cacheHits.Load()
}

// GetCacheMisses returns the monotonic miss counter's current value.
func (m *Manager) GetCacheMisses() int64 {
	return m.cacheMisses.Load()
}
