// Package stats implements the per-tier counters: hits, misses, evictions,
// expirations (monotonically increasing) and items/bytes (current state).
// It generalises the krisalay/in-memory-cache types.Metrics / types.NoopMetrics pair
// (github.com/krisalay/in-memory-cache/types/metrics.go) from a
// fire-and-increment callback interface into a queryable counter with a
// point-in-time Snapshot, since Statistics here is a value callers read
// back, not just a sink they write events into.
//
// Counters uses a plain mutex rather than atomics: every cache tier already
// serialises its state mutations behind its own lock, and stats updates
// always happen on that same path, so there is no concurrent-access benefit
// left for a lock-free counter to buy.
package stats

import "sync"

// Snapshot is a point-in-time read of a tier's counters.
type Snapshot struct {
	Hits        int64
	Misses      int64
	Evictions   int64
	Expirations int64
	Items       int64
	Bytes       int64
}

// HitRate returns Hits / (Hits + Misses), or 0 if there have been no reads.
func (s Snapshot) HitRate() float64 {
	total := s.Hits + s.Misses
	if total == 0 {
		return 0
	}
	return float64(s.Hits) / float64(total)
}

// Counters is the mutable, mutex-guarded counter set a tier owns.
type Counters struct {
	mu   sync.Mutex
	snap Snapshot
}

func (c *Counters) Hit() {
	c.mu.Lock()
	c.snap.Hits++
	c.mu.Unlock()
}

func (c *Counters) Miss() {
	c.mu.Lock()
	c.snap.Misses++
	c.mu.Unlock()
}

func (c *Counters) Eviction() {
	c.mu.Lock()
	c.snap.Evictions++
	c.mu.Unlock()
}

func (c *Counters) Expiration() {
	c.mu.Lock()
	c.snap.Expirations++
	c.mu.Unlock()
}

// SetItems records the tier's current entry count.
func (c *Counters) SetItems(n int64) {
	c.mu.Lock()
	c.snap.Items = n
	c.mu.Unlock()
}

// SetBytes records the tier's current byte usage.
func (c *Counters) SetBytes(n int64) {
	c.mu.Lock()
	c.snap.Bytes = n
	c.mu.Unlock()
}

// Snapshot returns a copy of the current counters.
func (c *Counters) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snap
}

// HybridSnapshot is the hybrid tier's own counters. It is never derived
// from the inner memory/disk tiers' counters, because those tiers can be
// cleared or replaced independently of the hybrid tier that composes them.
type HybridSnapshot struct {
	MemoryHits int64
	DiskHits   int64
	Misses     int64
}

// HybridCounters tracks the hybrid tier's memory-hit/disk-hit/miss counts
// independently of the memory and disk tiers' own Counters.
type HybridCounters struct {
	mu   sync.Mutex
	snap HybridSnapshot
}

func (h *HybridCounters) MemoryHit() {
	h.mu.Lock()
	h.snap.MemoryHits++
	h.mu.Unlock()
}

func (h *HybridCounters) DiskHit() {
	h.mu.Lock()
	h.snap.DiskHits++
	h.mu.Unlock()
}

func (h *HybridCounters) Miss() {
	h.mu.Lock()
	h.snap.Misses++
	h.mu.Unlock()
}

func (h *HybridCounters) Snapshot() HybridSnapshot {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.snap
}
