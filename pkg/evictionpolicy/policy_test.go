package evictionpolicy

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEvictPicksHighestScore(t *testing.T) {
	p := New(0)
	p.Touch(Key{EntryID: 1, BlockIdx: 0}, 1000, 1.0) // score 0
	p.Touch(Key{EntryID: 1, BlockIdx: 1}, 1000, 0.0) // score 1000

	key, ok := p.Evict()
	assert.True(t, ok)
	assert.Equal(t, Key{EntryID: 1, BlockIdx: 1}, key)
}

func TestEvictBreaksTiesByOldestTouch(t *testing.T) {
	p := New(0)
	older := Key{EntryID: 1, BlockIdx: 0}
	newer := Key{EntryID: 1, BlockIdx: 1}
	p.Touch(older, 1000, 0.5) // score 500
	p.Touch(newer, 1000, 0.5) // score 500, touched after older

	key, ok := p.Evict()
	assert.True(t, ok)
	assert.Equal(t, older, key)
}

func TestTouchUpdatesExistingEntryAndRecency(t *testing.T) {
	p := New(0)
	k := Key{EntryID: 1, BlockIdx: 0}
	other := Key{EntryID: 1, BlockIdx: 1}

	p.Touch(k, 1000, 1.0)  // score 0
	p.Touch(other, 500, 0) // score 500
	p.Touch(k, 1000, 0)    // now score 1000, and most recent

	key, ok := p.Evict()
	assert.True(t, ok)
	assert.Equal(t, k, key)
}

func TestRemoveDropsTracking(t *testing.T) {
	p := New(0)
	k := Key{EntryID: 1, BlockIdx: 0}
	p.Touch(k, 1000, 0)
	p.Remove(k)
	assert.Equal(t, 0, p.Len())

	_, ok := p.Evict()
	assert.False(t, ok)
}

func TestEvictOnEmptyPolicyReturnsFalse(t *testing.T) {
	p := New(0)
	_, ok := p.Evict()
	assert.False(t, ok)
}

func TestEvictMatchingSkipsDisallowedCandidates(t *testing.T) {
	p := New(0)
	dirty := Key{EntryID: 1, BlockIdx: 0}
	clean := Key{EntryID: 1, BlockIdx: 1}
	p.Touch(dirty, 1000, 0)   // score 1000, would be picked first if allowed
	p.Touch(clean, 1000, 0.5) // score 500

	key, ok := p.EvictMatching(func(k Key) bool { return k != dirty })
	assert.True(t, ok)
	assert.Equal(t, clean, key)
}

func TestLenTracksResidentBlocks(t *testing.T) {
	p := New(0)
	assert.Equal(t, 0, p.Len())
	p.Touch(Key{EntryID: 1, BlockIdx: 0}, 100, 0)
	p.Touch(Key{EntryID: 1, BlockIdx: 1}, 100, 0)
	assert.Equal(t, 2, p.Len())
}

func TestTouchWithinCapacityDoesNotEvict(t *testing.T) {
	p := New(2)
	_, ok := p.Touch(Key{EntryID: 1, BlockIdx: 0}, 100, 0)
	assert.False(t, ok)
	_, ok = p.Touch(Key{EntryID: 1, BlockIdx: 1}, 100, 0)
	assert.False(t, ok)
	assert.Equal(t, 2, p.Len())
}

func TestTouchOverCapacityEvictsHighestScore(t *testing.T) {
	p := New(2)
	cold := Key{EntryID: 1, BlockIdx: 0}
	hot := Key{EntryID: 1, BlockIdx: 1}
	p.Touch(cold, 1000, 0)  // score 1000, most evictable
	p.Touch(hot, 1000, 1.0) // score 0, least evictable

	evicted, ok := p.Touch(Key{EntryID: 1, BlockIdx: 2}, 1000, 1.0) // score 0, pushes count to 3
	assert.True(t, ok)
	assert.Equal(t, cold, evicted)
	assert.Equal(t, 2, p.Len())

	// cold was dropped from tracking entirely, not just demoted.
	key, ok := p.EvictMatching(func(k Key) bool { return k == cold })
	assert.False(t, ok)
	assert.Equal(t, Key{}, key)
}

func TestTouchOverCapacityTieEvictsOlderKey(t *testing.T) {
	p := New(1)
	first := Key{EntryID: 1, BlockIdx: 0}
	p.Touch(first, 1000, 1.0) // score 0

	second := Key{EntryID: 1, BlockIdx: 1}
	evicted, ok := p.Touch(second, 1000, 1.0) // also score 0; ties favor oldest => first evicted
	assert.True(t, ok)
	assert.Equal(t, first, evicted)
	assert.Equal(t, 1, p.Len())
}
