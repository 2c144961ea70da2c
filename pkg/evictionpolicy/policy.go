// Package evictionpolicy implements the weighted-LRU victim selection
// used by the Cache Manager: the evicted block maximizes
// score(n) = n.bytes * (1 - n.hotness), with ties broken in favor of
// the entry touched least recently. Touch additionally self-evicts its
// own highest-score block once the resident count passes a configured
// capacity, per §4.4's "if count exceeds capacity, evict during this
// call".
//
// No library in the reference corpus exposes this scoring and tie-break
// contract directly (see DESIGN.md), so the policy is built on
// container/list the way the original LruPolicy (list + map) does,
// generalized from pure recency to a weighted score.
package evictionpolicy

import (
	"container/list"
	"sync"
)

// Key identifies a single cached block. EntryID is a stable integer
// handle assigned by the Cache Manager to an object's cache entry;
// BlockIdx is the block's index within that entry. Neither is a pointer,
// so Keys remain valid after any rehashing of the Cache Manager's entry
// table.
type Key struct {
	EntryID  uint32
	BlockIdx uint32
}

type node struct {
	key     Key
	bytes   uint64
	hotness float64
}

// Policy tracks every resident block and picks eviction victims by
// weighted-LRU score. It is safe for concurrent use: Touch/Remove/Len
// take only the Policy's own lock, and EvictMatching never calls its
// allowed callback while holding it, so a caller whose callback
// acquires a different lock (e.g. the Cache Manager's table lock)
// cannot deadlock against a concurrent holder of that lock calling
// back into the Policy.
type Policy struct {
	mu       sync.Mutex
	order    *list.List // front = least recently touched
	elements map[Key]*list.Element

	// capacity bounds the number of resident blocks Touch allows before
	// shedding the highest-score one in the same call, per §4.4's
	// "if count exceeds capacity, evict during this call". Zero means
	// unbounded.
	capacity int
}

// New returns an empty Policy that sheds its own highest-score block
// from Touch once more than capacity blocks are resident. A capacity
// of 0 means unbounded (Touch never self-evicts).
func New(capacity int) *Policy {
	return &Policy{
		order:    list.New(),
		elements: make(map[Key]*list.Element),
		capacity: capacity,
	}
}

// Touch records or updates a block's presence, size, and hotness, and
// marks it as most-recently-touched. If this call grows the resident
// count past capacity, the highest-score resident block (which may be
// the one just touched) is evicted from the Policy's own tracking and
// returned; the caller is responsible for any corresponding cleanup
// (e.g. deleting the block's on-disk data), since the Policy itself
// holds no reference to that state.
func (p *Policy) Touch(key Key, bytes uint64, hotness float64) (evicted Key, evictedOK bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if el, ok := p.elements[key]; ok {
		el.Value.(*node).bytes = bytes
		el.Value.(*node).hotness = hotness
		p.order.MoveToBack(el)
		return Key{}, false
	}

	el := p.order.PushBack(&node{key: key, bytes: bytes, hotness: hotness})
	p.elements[key] = el

	if p.capacity <= 0 || p.order.Len() <= p.capacity {
		return Key{}, false
	}
	return p.evictLocked(func(Key) bool { return true })
}

// Remove drops a block from tracking, e.g. after it is evicted or the
// object it belongs to is deleted.
func (p *Policy) Remove(key Key) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if el, ok := p.elements[key]; ok {
		p.order.Remove(el)
		delete(p.elements, key)
	}
}

// Len returns the number of blocks currently tracked.
func (p *Policy) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.order.Len()
}

// evictLocked selects and removes the highest-score block matching
// allowed, assuming the caller already holds p.mu. Only Touch's
// capacity-triggered eviction calls this directly, and only with the
// trivial always-true predicate: it takes no other lock, so invoking
// it while p.mu is held cannot deadlock. EvictMatching's arbitrary
// caller-supplied predicate must never run through this path; see
// EvictMatching.
func (p *Policy) evictLocked(allowed func(Key) bool) (Key, bool) {
	var best *list.Element
	var bestScore float64

	for el := p.order.Front(); el != nil; el = el.Next() {
		n := el.Value.(*node)
		if !allowed(n.key) {
			continue
		}
		score := float64(n.bytes) * (1 - n.hotness)
		if best == nil || score > bestScore {
			best = el
			bestScore = score
		}
	}

	if best == nil {
		return Key{}, false
	}

	key := best.Value.(*node).key
	p.order.Remove(best)
	delete(p.elements, key)
	return key, true
}

// Evict selects and removes the highest-score victim: the block
// maximizing bytes*(1-hotness), so a large, cold (low-hotness) block is
// preferred over a small or recently-fetched one. Ties are broken in
// favor of the entry touched least recently. It returns ok=false if
// nothing is tracked.
//
// Callers that must not evict dirty blocks (invariant: a weighted-LRU
// policy never evicts a dirty block without an explicit override)
// should filter candidates with EvictMatching instead.
func (p *Policy) Evict() (Key, bool) {
	return p.EvictMatching(func(Key) bool { return true })
}

// EvictMatching selects the highest-score victim among blocks for which
// allowed returns true. allowed runs with p.mu NOT held, so a caller
// whose predicate acquires a different lock (the Cache Manager passes
// one that locks its table lock to check dirtiness) cannot invert lock
// order against a concurrent Touch/Remove/Len call on this Policy.
//
// Candidates are snapshotted under p.mu in least- to most-recently
// touched order, filtered and scored outside the lock, and the winner
// is re-validated and removed under p.mu before returning. If the
// chosen key was concurrently removed (e.g. by Remove or another
// EvictMatching call), the snapshot is retaken and the search retried.
func (p *Policy) EvictMatching(allowed func(Key) bool) (Key, bool) {
	for {
		p.mu.Lock()
		if p.order.Len() == 0 {
			p.mu.Unlock()
			return Key{}, false
		}
		candidates := make([]node, 0, p.order.Len())
		for el := p.order.Front(); el != nil; el = el.Next() {
			candidates = append(candidates, *el.Value.(*node))
		}
		p.mu.Unlock()

		victim, ok := highestScoring(candidates, allowed)
		if !ok {
			return Key{}, false
		}

		p.mu.Lock()
		el, stillPresent := p.elements[victim]
		if !stillPresent {
			p.mu.Unlock()
			continue
		}
		p.order.Remove(el)
		delete(p.elements, victim)
		p.mu.Unlock()
		return victim, true
	}
}

// highestScoring returns the highest-score key among candidates for
// which allowed returns true, preserving candidates' order so the
// first (i.e. oldest) maximal score wins ties.
func highestScoring(candidates []node, allowed func(Key) bool) (Key, bool) {
	var best *node
	var bestScore float64

	for i := range candidates {
		n := &candidates[i]
		if !allowed(n.key) {
			continue
		}
		score := float64(n.bytes) * (1 - n.hotness)
		if best == nil || score > bestScore {
			best = n
			bestScore = score
		}
	}

	if best == nil {
		return Key{}, false
	}
	return best.key, true
}
