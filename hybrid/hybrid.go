// Package hybrid composes a memory tier and a disk tier behind one
// interface: memory-first reads with optional promotion on a disk hit,
// and either synchronous or coalesced, debounced writes to disk.
//
// Grounded directly on krisalay/in-memory-cache's engine.CacheEngine.Load
// (read-through against a single backing Loader) and
// writepolicy.WriteBackPolicy (buffered channel + worker goroutine + a
// draining Close), generalized from "one backing store" to "a disk tier"
// and from a fire-and-forget channel to a per-key coalescing map with a
// debounce timer, since write-back here must let a second write to the
// same key replace the first pending one rather than queue both.
package hybrid

import (
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/tiercache/tiercache/clockwork"
	"github.com/tiercache/tiercache/disk"
	"github.com/tiercache/tiercache/expire"
	"github.com/tiercache/tiercache/memory"
	"github.com/tiercache/tiercache/observer"
	"github.com/tiercache/tiercache/stats"
)

// Source identifies which inner tier served a read.
type Source int

const (
	FromMemory Source = iota
	FromDisk
)

func (s Source) String() string {
	if s == FromDisk {
		return "disk"
	}
	return "memory"
}

// Options configures a hybrid tier.
type Options[K comparable, V any] struct {
	Memory memory.Options[V]
	Disk   disk.Options[V]

	// WriteToDiskOnSet makes Set write through to disk synchronously. If
	// false, Set writes only memory synchronously and coalesces the disk
	// write into a pending-writes map that is flushed after FlushDelay.
	WriteToDiskOnSet bool
	// PromoteOnDiskHit writes a disk hit back into memory before
	// returning it, avoiding a repeat disk round trip for the same key.
	PromoteOnDiskHit bool
	// FlushDelay is how long a coalesced write waits before being
	// flushed to disk. Defaults to 500ms.
	FlushDelay time.Duration

	Clock  clockwork.Clock
	Logger *zap.Logger
}

type pendingWrite[V any] struct {
	value      V
	expiration expire.Expiration
}

// Cache is the hybrid tier.
type Cache[K comparable, V any] struct {
	mem *memory.Cache[K, V]
	dsk *disk.Cache[K, V]

	mu          sync.Mutex
	pending     map[K]pendingWrite[V]
	flushTimer  *time.Timer
	flushDelay  time.Duration
	readGroup   singleflight.Group
	clock       clockwork.Clock
	log         *zap.Logger
	writeToDisk bool
	promote     bool

	counters stats.HybridCounters

	closed bool
}

// SetOption customises a single Set call.
type SetOption[V any] func(*setConfig[V])

type setConfig[V any] struct {
	expiration expire.Expiration
	skipMemory bool
	skipDisk   bool
}

// WithExpiration attaches a per-entry deadline.
func WithExpiration[V any](e expire.Expiration) SetOption[V] {
	return func(c *setConfig[V]) { c.expiration = e }
}

// SkipMemory excludes the memory tier from this Set call.
func SkipMemory[V any]() SetOption[V] { return func(c *setConfig[V]) { c.skipMemory = true } }

// SkipDisk excludes the disk tier from this Set call.
func SkipDisk[V any]() SetOption[V] { return func(c *setConfig[V]) { c.skipDisk = true } }

// New constructs a hybrid tier from memory and disk options.
func New[K comparable, V any](opts Options[K, V]) (*Cache[K, V], error) {
	if opts.FlushDelay <= 0 {
		opts.FlushDelay = 500 * time.Millisecond
	}
	if opts.Clock == nil {
		opts.Clock = clockwork.Real()
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	opts.Memory.Clock = opts.Clock
	opts.Disk.Clock = opts.Clock
	opts.Memory.Logger = opts.Logger
	opts.Disk.Logger = opts.Logger

	mem := memory.New[K, V](opts.Memory)
	dsk, err := disk.New[K, V](opts.Disk)
	if err != nil {
		return nil, err
	}

	return &Cache[K, V]{
		mem:         mem,
		dsk:         dsk,
		pending:     make(map[K]pendingWrite[V]),
		flushDelay:  opts.FlushDelay,
		clock:       opts.Clock,
		log:         opts.Logger,
		writeToDisk: opts.WriteToDiskOnSet,
		promote:     opts.PromoteOnDiskHit,
	}, nil
}

// Get looks up key in memory first, falling back to disk. A disk hit
// promotes the value into memory when PromoteOnDiskHit is set.
func (c *Cache[K, V]) Get(key K) (V, bool) {
	v, _, ok := c.GetWithSource(key)
	return v, ok
}

type diskResult[V any] struct {
	value V
	ok    bool
}

// GetWithSource behaves like Get but reports which tier served the value.
// Concurrent misses on the same key that fall through to disk are
// deduplicated via singleflight, so a burst of readers racing on a cold
// key triggers one disk read rather than one per reader.
func (c *Cache[K, V]) GetWithSource(key K) (V, Source, bool) {
	if v, ok := c.mem.Get(key); ok {
		c.counters.MemoryHit()
		return v, FromMemory, true
	}

	groupKey := fmt.Sprintf("%v", key)
	res, err, _ := c.readGroup.Do(groupKey, func() (interface{}, error) {
		v, ok := c.dsk.Get(key)
		return diskResult[V]{value: v, ok: ok}, nil
	})
	_ = err // c.dsk.Get never returns via this path; kept for singleflight's signature
	dr := res.(diskResult[V])
	if !dr.ok {
		c.counters.Miss()
		var zero V
		return zero, FromMemory, false
	}
	c.counters.DiskHit()
	if c.promote {
		_ = c.mem.Set(key, dr.value)
	}
	return dr.value, FromDisk, true
}

// Set writes value to memory synchronously and either writes through to
// disk synchronously (WriteToDiskOnSet) or coalesces it into the pending
// map for the next debounced flush.
func (c *Cache[K, V]) Set(key K, value V, opts ...SetOption[V]) error {
	var cfg setConfig[V]
	for _, o := range opts {
		o(&cfg)
	}

	if !cfg.skipMemory {
		memOpts := []memory.SetOption[V]{}
		if !cfg.expiration.IsZero() {
			memOpts = append(memOpts, memory.WithExpiration[V](cfg.expiration))
		}
		if err := c.mem.Set(key, value, memOpts...); err != nil {
			return err
		}
	}
	if cfg.skipDisk {
		return nil
	}
	if c.writeToDisk {
		var diskOpts []disk.SetOption
		if !cfg.expiration.IsZero() {
			diskOpts = append(diskOpts, disk.WithExpiration(cfg.expiration))
		}
		if err := c.dsk.Set(key, value, diskOpts...); err != nil {
			c.log.Warn("hybrid tier disk write failed, memory write stands", zap.Error(err))
		}
		return nil
	}
	c.enqueuePending(key, value, cfg.expiration)
	return nil
}

func (c *Cache[K, V]) enqueuePending(key K, value V, exp expire.Expiration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.pending[key] = pendingWrite[V]{value: value, expiration: exp}
	if c.flushTimer == nil {
		c.flushTimer = time.AfterFunc(c.flushDelay, c.flushPending)
	} else {
		c.flushTimer.Reset(c.flushDelay)
	}
}

func (c *Cache[K, V]) flushPending() {
	c.mu.Lock()
	batch := c.pending
	c.pending = make(map[K]pendingWrite[V])
	c.flushTimer = nil
	c.mu.Unlock()

	for key, pw := range batch {
		var diskOpts []disk.SetOption
		if !pw.expiration.IsZero() {
			diskOpts = append(diskOpts, disk.WithExpiration(pw.expiration))
		}
		if err := c.dsk.Set(key, pw.value, diskOpts...); err != nil {
			c.log.Warn("hybrid tier deferred flush failed", zap.Error(err))
		}
	}
}

// Flush drains any pending coalesced writes to disk immediately.
func (c *Cache[K, V]) Flush() {
	c.mu.Lock()
	if c.flushTimer != nil {
		c.flushTimer.Stop()
		c.flushTimer = nil
	}
	c.mu.Unlock()
	c.flushPending()
}

// Remove deletes key from memory, disk, and any pending write.
func (c *Cache[K, V]) Remove(key K) error {
	c.mem.Remove(key)
	c.mu.Lock()
	delete(c.pending, key)
	c.mu.Unlock()
	return c.dsk.Remove(key)
}

// RemoveAll clears both tiers and any pending writes.
func (c *Cache[K, V]) RemoveAll() error {
	c.mem.RemoveAll()
	c.mu.Lock()
	c.pending = make(map[K]pendingWrite[V])
	if c.flushTimer != nil {
		c.flushTimer.Stop()
		c.flushTimer = nil
	}
	c.mu.Unlock()
	return c.dsk.RemoveAll()
}

// Preload reads each key from disk and, on a hit, sets it in memory
// without re-writing it back to disk.
func (c *Cache[K, V]) Preload(keys []K) {
	for _, key := range keys {
		if v, ok := c.dsk.Get(key); ok {
			_ = c.mem.Set(key, v)
		}
	}
}

// GetFromMemory reads directly from the memory tier, bypassing the disk
// fallback. It still counts toward the hybrid tier's own statistics, the
// same as a Get/GetWithSource call that happened to be served by memory.
func (c *Cache[K, V]) GetFromMemory(key K) (V, bool) {
	v, ok := c.mem.Get(key)
	if ok {
		c.counters.MemoryHit()
	} else {
		c.counters.Miss()
	}
	return v, ok
}

// GetFromDisk reads directly from the disk tier, bypassing memory and any
// promotion. It still counts toward the hybrid tier's own statistics, the
// same as a Get/GetWithSource call that happened to fall through to disk.
func (c *Cache[K, V]) GetFromDisk(key K) (V, bool) {
	v, ok := c.dsk.Get(key)
	if ok {
		c.counters.DiskHit()
	} else {
		c.counters.Miss()
	}
	return v, ok
}

// ClearMemory clears only the memory tier.
func (c *Cache[K, V]) ClearMemory() { c.mem.RemoveAll() }

// ClearDisk clears only the disk tier.
func (c *Cache[K, V]) ClearDisk() error { return c.dsk.RemoveAll() }

// Stats returns the hybrid tier's own memory-hit/disk-hit/miss counters,
// independent of the inner tiers' own Stats.
func (c *Cache[K, V]) Stats() stats.HybridSnapshot { return c.counters.Snapshot() }

// MemoryStats returns the memory tier's own counters.
func (c *Cache[K, V]) MemoryStats() stats.Snapshot { return c.mem.Stats() }

// DiskStats returns the disk tier's own counters.
func (c *Cache[K, V]) DiskStats() stats.Snapshot { return c.dsk.Stats() }

// ObserveMemory registers fn against the memory tier's event stream.
func (c *Cache[K, V]) ObserveMemory(fn observer.Func) observer.Token { return c.mem.Observe(fn) }

// ObserveDisk registers fn against the disk tier's event stream.
func (c *Cache[K, V]) ObserveDisk(fn observer.Func) observer.Token { return c.dsk.Observe(fn) }

// Close flushes pending writes, then stops both tiers' background tasks.
func (c *Cache[K, V]) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	if c.flushTimer != nil {
		c.flushTimer.Stop()
		c.flushTimer = nil
	}
	c.mu.Unlock()
	c.flushPending()
	c.mem.Close()
	c.dsk.Close()
}
