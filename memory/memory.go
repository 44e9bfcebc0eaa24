// Package memory implements the in-process memory tier: a bounded
// key→entry map coupled with an eviction index (package evict), lazy and
// background expiration (package expire), a count budget and a byte budget.
//
// It generalises krisalay/in-memory-cache's ShardedCache
// (github.com/krisalay/in-memory-cache/sharded_cache.go) and CacheEngine
// (.../engine/engine.go) from a sharded, `any`-valued, single-policy cache
// into a single-instance generic Cache[K,V] that carries per-entry byte
// cost, priority, tags and a configurable eviction policy. Sharding itself
// (shard.Selector, the per-shard capacity split, and the atomic.Value
// copy-on-write store) is dropped here: the byte and item budgets are
// global across the whole cache instance, and every public operation must
// serialise its state mutations exactly, which removes the
// lock-free-read use case that design's COW store exists for — a single
// mutex-guarded map is both simpler and the only way to keep a global byte
// budget exactly right across concurrent writers. See DESIGN.md.
package memory

import (
	"fmt"
	"sync"
	"time"

	"github.com/tiercache/tiercache/errs"
	"github.com/tiercache/tiercache/evict"
	"github.com/tiercache/tiercache/expire"
	"github.com/tiercache/tiercache/observer"
	"github.com/tiercache/tiercache/stats"

	"github.com/tiercache/tiercache/clockwork"
	"go.uber.org/zap"
)

// Priority re-exports evict.Priority so callers of package memory don't
// need to import package evict directly for the common case.
type Priority = evict.Priority

const (
	Low      = evict.Low
	Normal   = evict.Normal
	High     = evict.High
	Critical = evict.Critical
)

// Metadata is the read-only snapshot returned by GetWithMetadata. It is
// always a copy: callers must not be able to mutate cache state out of
// band through a returned reference.
type Metadata struct {
	CreatedAt    time.Time
	LastAccessAt time.Time
	AccessCount  int64
	ExpiresAt    time.Time
	SizeBytes    int64
	Priority     Priority
	Tags         []string
}

type entry[V any] struct {
	value        V
	createdAt    time.Time
	lastAccessAt time.Time
	accessCount  int64
	expiresAt    time.Time
	sizeBytes    int64
	priority     Priority
	tags         []string
}

func (e *entry[V]) metadata() Metadata {
	return Metadata{
		CreatedAt:    e.createdAt,
		LastAccessAt: e.lastAccessAt,
		AccessCount:  e.accessCount,
		ExpiresAt:    e.expiresAt,
		SizeBytes:    e.sizeBytes,
		Priority:     e.priority,
		Tags:         append([]string(nil), e.tags...),
	}
}

func (e *entry[V]) expireMeta() expire.Metadata {
	return expire.Metadata{
		CreatedAt:    e.createdAt,
		LastAccessAt: e.lastAccessAt,
		AccessCount:  e.accessCount,
		SizeBytes:    e.sizeBytes,
		Tags:         e.tags,
	}
}

func (e *entry[V]) indexMeta() evict.Metadata {
	return evict.Metadata{
		SizeBytes:    e.sizeBytes,
		CreatedAt:    e.createdAt,
		LastAccessAt: e.lastAccessAt,
		ExpiresAt:    e.expiresAt,
		Priority:     e.priority,
	}
}

// Options configures a Cache.
type Options[V any] struct {
	// MaxItems bounds the entry count. 0 means unbounded.
	MaxItems int
	// MaxBytes bounds total estimated byte usage. 0 means unbounded.
	MaxBytes int64
	// Policy selects the eviction algorithm (default LRU).
	Policy evict.Policy
	// ExpirationPolicies are extra predicates consulted on every read and
	// on the bulk purge sweep, in addition to each entry's own deadline.
	ExpirationPolicies []expire.Policy
	// SizeOf estimates the byte cost of a value when Set isn't given an
	// explicit cost. Defaults to a constant 1 (a pure count budget).
	SizeOf func(V) int64
	// CleanupInterval drives the background expiration sweep. 0 disables
	// it (only lazy, on-access expiration applies).
	CleanupInterval time.Duration
	Clock           clockwork.Clock
	Logger          *zap.Logger
}

// Cache is the in-process, bounded memory tier.
type Cache[K comparable, V any] struct {
	mu      sync.Mutex
	entries map[K]*entry[V]
	index   evict.Index[K]
	opts    Options[V]
	clock   clockwork.Clock
	logger  *zap.Logger
	bytes   int64

	obs   *observer.Dispatcher
	stats stats.Counters

	stopCleanup chan struct{}
	cleanupDone chan struct{}
	closed      bool
}

// New constructs a memory tier.
func New[K comparable, V any](opts Options[V]) *Cache[K, V] {
	if opts.Policy == "" {
		opts.Policy = evict.LRU
	}
	if opts.Clock == nil {
		opts.Clock = clockwork.Real()
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.SizeOf == nil {
		opts.SizeOf = func(V) int64 { return 1 }
	}
	c := &Cache[K, V]{
		entries: make(map[K]*entry[V]),
		index:   evict.New[K](opts.Policy),
		opts:    opts,
		clock:   opts.Clock,
		logger:  opts.Logger,
		obs:     observer.New(),
	}
	if opts.CleanupInterval > 0 {
		c.stopCleanup = make(chan struct{})
		c.cleanupDone = make(chan struct{})
		go c.cleanupLoop(opts.CleanupInterval)
	}
	return c
}

// Observe registers fn to receive every mutating event this cache emits.
func (c *Cache[K, V]) Observe(fn observer.Func) observer.Token { return c.obs.Register(fn) }

// Unobserve removes a previously registered observer.
func (c *Cache[K, V]) Unobserve(tok observer.Token) { c.obs.Unregister(tok) }

// Stats returns a snapshot of this tier's counters.
func (c *Cache[K, V]) Stats() stats.Snapshot { return c.stats.Snapshot() }

func (c *Cache[K, V]) isExpired(e *entry[V], now time.Time) bool {
	if !e.expiresAt.IsZero() && !now.Before(e.expiresAt) {
		return true
	}
	meta := e.expireMeta()
	for _, p := range c.opts.ExpirationPolicies {
		if p.ShouldExpire(meta, now) {
			return true
		}
	}
	return false
}

// Get retrieves a value, applying lazy expiration. A miss and an expired
// hit are both reported as (zero, false); expiration additionally removes
// the entry and increments the expiration counter.
func (c *Cache[K, V]) Get(key K) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.getLocked(key)
}

func (c *Cache[K, V]) getLocked(key K) (V, bool) {
	var zero V
	e, ok := c.entries[key]
	if !ok {
		c.stats.Miss()
		return zero, false
	}
	now := c.clock.Now()
	if c.isExpired(e, now) {
		c.removeLocked(key, observer.Expired, "")
		c.stats.Expiration()
		c.stats.Miss()
		return zero, false
	}
	e.lastAccessAt = now
	e.accessCount++
	c.index.OnAccess(key, e.indexMeta())
	c.stats.Hit()
	return e.value, true
}

// GetWithMetadata behaves like Get but also returns a metadata snapshot; it
// counts as an access.
func (c *Cache[K, V]) GetWithMetadata(key K) (V, Metadata, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.getLocked(key)
	if !ok {
		return v, Metadata{}, false
	}
	return v, c.entries[key].metadata(), true
}

// Contains reports presence respecting expiration, without mutating access
// metadata.
func (c *Cache[K, V]) Contains(key K) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key]
	if !ok {
		return false
	}
	if c.isExpired(e, c.clock.Now()) {
		return false
	}
	return true
}

// SetOption customises a single Set call.
type SetOption[V any] func(*setConfig[V])

type setConfig[V any] struct {
	expiration expire.Expiration
	priority   Priority
	cost       *int64
	tags       []string
}

// WithExpiration attaches a per-entry deadline.
func WithExpiration[V any](e expire.Expiration) SetOption[V] {
	return func(c *setConfig[V]) { c.expiration = e }
}

// WithPriority marks the entry's eviction eligibility.
func WithPriority[V any](p Priority) SetOption[V] {
	return func(c *setConfig[V]) { c.priority = p }
}

// WithCost overrides the estimated byte size for this entry.
func WithCost[V any](cost int64) SetOption[V] {
	return func(c *setConfig[V]) { c.cost = &cost }
}

// WithTags attaches tags consulted by a TagSet expiration policy.
func WithTags[V any](tags ...string) SetOption[V] {
	return func(c *setConfig[V]) { c.tags = tags }
}

// Set inserts or replaces key's value. If inserting (or growing an
// existing entry) would exceed the configured budgets, Set evicts victims
// chosen by the configured policy until the budgets are satisfied. If every
// blocking entry is Critical, Set fails with *errs.CapacityExceeded and the
// new value is not written; victims already evicted before the remaining
// entries turned out to be Critical stay evicted.
func (c *Cache[K, V]) Set(key K, value V, opts ...SetOption[V]) error {
	cfg := setConfig[V]{priority: Normal}
	for _, o := range opts {
		o(&cfg)
	}
	cost := c.opts.SizeOf(value)
	if cfg.cost != nil {
		cost = *cfg.cost
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.clock.Now()
	existing, isUpdate := c.entries[key]
	var required int64 = cost
	if isUpdate {
		required = cost - existing.sizeBytes
	}

	if err := c.makeRoomLocked(key, required, isUpdate); err != nil {
		return err
	}

	deadline, hasDeadline := cfg.expiration.Resolve(now)
	e := &entry[V]{
		value:       value,
		createdAt:   now,
		lastAccessAt: now,
		sizeBytes:   cost,
		priority:    cfg.priority,
		tags:        cfg.tags,
	}
	if hasDeadline {
		e.expiresAt = deadline
	}
	if isUpdate {
		e.createdAt = existing.createdAt
	}
	c.entries[key] = e
	c.bytes += required

	kind := observer.Added
	if isUpdate {
		c.index.OnUpdate(key, e.indexMeta())
		kind = observer.Updated
	} else {
		c.index.OnInsert(key, e.indexMeta())
	}
	c.stats.SetItems(int64(len(c.entries)))
	c.stats.SetBytes(c.bytes)
	c.emit(kind, key, "", nil)
	return nil
}

// makeRoomLocked evicts victims until inserting/growing by required bytes
// (with the new-or-updated key itself not yet counted) would satisfy both
// budgets. required may be negative (value shrank), in which case no
// eviction is needed for bytes. isUpdate excludes the key-being-updated
// from the prospective item-count check.
func (c *Cache[K, V]) makeRoomLocked(key K, required int64, isUpdate bool) error {
	isCritical := func(p Priority) bool { return p == Critical }
	for {
		prospectiveItems := len(c.entries)
		if !isUpdate {
			prospectiveItems++
		}
		overCount := c.opts.MaxItems > 0 && prospectiveItems > c.opts.MaxItems
		overBytes := c.opts.MaxBytes > 0 && c.bytes+required > c.opts.MaxBytes
		if !overCount && !overBytes {
			return nil
		}
		victims := c.index.PickVictims(1, isCritical)
		if len(victims) == 0 {
			return &errs.CapacityExceeded{Key: keyString(key)}
		}
		victim := victims[0]
		if victim == key {
			// Don't evict the very key we're about to write; ask for one more.
			victims = c.index.PickVictims(2, isCritical)
			found := false
			for _, v := range victims {
				if v != key {
					victim = v
					found = true
					break
				}
			}
			if !found {
				return &errs.CapacityExceeded{Key: keyString(key)}
			}
		}
		c.evictLocked(victim)
	}
}

func (c *Cache[K, V]) evictLocked(key K) {
	e, ok := c.entries[key]
	if !ok {
		return
	}
	reason := "capacity"
	if c.opts.MaxBytes > 0 && c.bytes > c.opts.MaxBytes-1 {
		reason = "byte-limit"
	}
	delete(c.entries, key)
	c.index.OnRemove(key)
	c.bytes -= e.sizeBytes
	c.stats.Eviction()
	c.stats.SetItems(int64(len(c.entries)))
	c.stats.SetBytes(c.bytes)
	c.emit(observer.Evicted, key, reason, nil)
}

// Remove deletes key unconditionally. Removing an absent key is a no-op.
func (c *Cache[K, V]) Remove(key K) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.removeLocked(key, observer.Removed, "")
}

func (c *Cache[K, V]) removeLocked(key K, kind observer.Kind, reason string) {
	e, ok := c.entries[key]
	if !ok {
		return
	}
	delete(c.entries, key)
	c.index.OnRemove(key)
	c.bytes -= e.sizeBytes
	c.stats.SetItems(int64(len(c.entries)))
	c.stats.SetBytes(c.bytes)
	c.emit(kind, key, reason, nil)
}

// RemoveAll clears the cache. Idempotent: a second call observes the same
// empty state.
func (c *Cache[K, V]) RemoveAll() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[K]*entry[V])
	c.index = evict.New[K](c.opts.Policy)
	c.bytes = 0
	c.stats.SetItems(0)
	c.stats.SetBytes(0)
	c.emit(observer.Cleared, "", "", nil)
}

// RemoveExpired sweeps every entry and removes those whose deadline (or any
// configured expiration policy) has passed, returning the count removed.
func (c *Cache[K, V]) RemoveExpired() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.clock.Now()
	var toRemove []K
	for k, e := range c.entries {
		if c.isExpired(e, now) {
			toRemove = append(toRemove, k)
		}
	}
	for _, k := range toRemove {
		c.removeLocked(k, observer.Expired, "")
		c.stats.Expiration()
	}
	return len(toRemove)
}

// EvictPercentage requests eviction of approximately p% of entries,
// selected by the configured policy, skipping Critical entries. Used by
// memory-pressure collaborators.
func (c *Cache[K, V]) EvictPercentage(p float64) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	if p <= 0 || len(c.entries) == 0 {
		return 0
	}
	n := int(float64(len(c.entries)) * p / 100)
	if n == 0 {
		n = 1
	}
	isCritical := func(pr Priority) bool { return pr == Critical }
	victims := c.index.PickVictims(n, isCritical)
	for _, k := range victims {
		c.evictLocked(k)
	}
	return len(victims)
}

// UpdateExpiration replaces the deadline of an existing entry. Returns
// false if the key is absent.
func (c *Cache[K, V]) UpdateExpiration(key K, e expire.Expiration) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	ent, ok := c.entries[key]
	if !ok {
		return false
	}
	now := c.clock.Now()
	if deadline, has := e.Resolve(now); has {
		ent.expiresAt = deadline
	} else {
		ent.expiresAt = time.Time{}
	}
	return true
}

// Close stops the background cleanup task, if any.
func (c *Cache[K, V]) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	stop := c.stopCleanup
	done := c.cleanupDone
	c.mu.Unlock()
	if stop != nil {
		close(stop)
		<-done
	}
}

func (c *Cache[K, V]) cleanupLoop(interval time.Duration) {
	defer close(c.cleanupDone)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-c.stopCleanup:
			return
		case <-ticker.C:
			n := c.RemoveExpired()
			if n > 0 {
				c.logger.Debug("memory tier cleanup swept expired entries", zap.Int("count", n))
			}
		}
	}
}

func (c *Cache[K, V]) emit(kind observer.Kind, key any, reason string, err error) {
	c.obs.Emit(observer.Event{Kind: kind, Key: keyString(key), Reason: reason, Err: err})
}

func keyString(key any) string {
	if s, ok := key.(string); ok {
		return s
	}
	type stringer interface{ String() string }
	if s, ok := key.(stringer); ok {
		return s.String()
	}
	return fmt.Sprintf("%v", key)
}
