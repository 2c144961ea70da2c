package metadatastore

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marmos91/cachefs/pkg/cacheerrors"
	"github.com/marmos91/cachefs/pkg/pathhash"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	root := t.TempDir()
	s, err := New(&Config{CacheRoot: root})
	require.NoError(t, err)
	return s
}

func TestPutThenGetRoundTrips(t *testing.T) {
	s := newTestStore(t)
	row := &ObjectRow{Path: "/a.txt", LocalPath: filepath.Join("mirror", "a.txt"), Size: 5, Timestamp: time.Now()}
	require.True(t, s.Put(row))

	got, err := s.Get("/a.txt")
	require.NoError(t, err)
	assert.Equal(t, row.Path, got.Path)
	assert.Equal(t, row.Size, got.Size)
}

func TestGetMissingReturnsNotFound(t *testing.T) {
	s := newTestStore(t)
	_, err := s.Get("/missing.txt")
	require.Error(t, err)
	assert.True(t, cacheerrors.Is(err, cacheerrors.ErrNotFound))
}

func TestPutIsInsertOrReplace(t *testing.T) {
	s := newTestStore(t)
	require.True(t, s.Put(&ObjectRow{Path: "/a.txt", Size: 1}))
	require.True(t, s.Put(&ObjectRow{Path: "/a.txt", Size: 2}))

	got, err := s.Get("/a.txt")
	require.NoError(t, err)
	assert.Equal(t, int64(2), got.Size)
}

func TestMarkDirtyUpdatesFlag(t *testing.T) {
	s := newTestStore(t)
	require.True(t, s.Put(&ObjectRow{Path: "/a.txt"}))
	require.True(t, s.MarkDirty("/a.txt", true))

	got, err := s.Get("/a.txt")
	require.NoError(t, err)
	assert.True(t, got.Dirty)
}

func TestTouchUpdatesLastAccessed(t *testing.T) {
	s := newTestStore(t)
	require.True(t, s.Put(&ObjectRow{Path: "/a.txt"}))

	later := time.Now().Add(time.Hour)
	s.Touch("/a.txt", later)

	got, err := s.Get("/a.txt")
	require.NoError(t, err)
	assert.WithinDuration(t, later, got.LastAccessed, time.Second)
}

func TestRemoveDropsRow(t *testing.T) {
	s := newTestStore(t)
	require.True(t, s.Put(&ObjectRow{Path: "/a.txt"}))
	require.True(t, s.Remove("/a.txt"))

	_, err := s.Get("/a.txt")
	assert.True(t, cacheerrors.Is(err, cacheerrors.ErrNotFound))
}

func TestAllEntriesListsEveryRow(t *testing.T) {
	s := newTestStore(t)
	require.True(t, s.Put(&ObjectRow{Path: "/a.txt"}))
	require.True(t, s.Put(&ObjectRow{Path: "/b.txt"}))

	rows, err := s.AllEntries()
	require.NoError(t, err)
	assert.Len(t, rows, 2)
}

func TestCleanupRemovesGivenPaths(t *testing.T) {
	s := newTestStore(t)
	require.True(t, s.Put(&ObjectRow{Path: "/a.txt"}))
	require.True(t, s.Put(&ObjectRow{Path: "/b.txt"}))

	require.True(t, s.Cleanup([]string{"/a.txt"}))

	rows, err := s.AllEntries()
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "/b.txt", rows[0].Path)
}

func TestMarkDirtyBlockThenFlushBitmapsPersistsToDisk(t *testing.T) {
	root := t.TempDir()
	s, err := New(&Config{CacheRoot: root})
	require.NoError(t, err)

	fp := pathhash.Hash("/a.txt")
	s.MarkDirtyBlock(fp, 0, 0)
	s.MarkDirtyBlock(fp, 0, 5)
	assert.True(t, s.IsBlockDirty(fp, 0, 0))
	assert.True(t, s.IsBlockDirty(fp, 0, 5))
	assert.False(t, s.IsBlockDirty(fp, 0, 1))

	require.NoError(t, s.FlushBitmaps(fp))

	// A second store reopened against the same root lazily loads the
	// persisted bitmap instead of starting all-clean.
	s2, err := New(&Config{CacheRoot: root})
	require.NoError(t, err)
	assert.True(t, s2.IsBlockDirty(fp, 0, 0))
	assert.True(t, s2.IsBlockDirty(fp, 0, 5))
}

func TestUnloadedBitmapIsAllClean(t *testing.T) {
	s := newTestStore(t)
	fp := pathhash.Hash("/never-written.txt")
	assert.False(t, s.IsBlockDirty(fp, 0, 0))
}

func TestDropBitmapsClearsTrackingForFingerprint(t *testing.T) {
	s := newTestStore(t)
	fp := pathhash.Hash("/a.txt")
	s.MarkDirtyBlock(fp, 0, 3)
	s.DropBitmaps(fp)
	assert.False(t, s.IsBlockDirty(fp, 0, 3))
}
