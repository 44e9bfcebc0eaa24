package tiercache

import (
	"time"

	"github.com/tiercache/tiercache/disk"
	"github.com/tiercache/tiercache/expire"
	"github.com/tiercache/tiercache/hybrid"
	"github.com/tiercache/tiercache/memory"
	"github.com/tiercache/tiercache/observer"
	"github.com/tiercache/tiercache/stats"
)

// Expiration describes when an entry becomes stale, resolved to an
// absolute deadline once at set time.
type Expiration = expire.Expiration

// Never, After and At construct an Expiration.
var (
	Never = expire.Never
	After = expire.After
	At    = expire.At
)

// ExpirationPolicy is a pure predicate over an entry's metadata snapshot,
// consulted on every read and on the bulk purge sweep, in addition to
// the entry's own Expiration deadline.
type ExpirationPolicy = expire.Policy

// Event is delivered to every registered observer on a mutating tier
// operation.
type Event = observer.Event

// EventKind identifies what happened to an entry.
type EventKind = observer.Kind

const (
	Added   = observer.Added
	Updated = observer.Updated
	Removed = observer.Removed
	Evicted = observer.Evicted
	Expired = observer.Expired
	Cleared = observer.Cleared
)

// Stats is a point-in-time snapshot of a tier's hit/miss/eviction/
// expiration/items/bytes counters.
type Stats = stats.Snapshot

// HybridStats is the hybrid tier's own memory-hit/disk-hit/miss counters.
type HybridStats = stats.HybridSnapshot

// NewMemory constructs a bounded in-process cache. See memory.Options for
// configuration.
func NewMemory[K comparable, V any](opts memory.Options[V]) *memory.Cache[K, V] {
	return memory.New[K, V](opts)
}

// NewDisk constructs a persistent, file-backed cache rooted at opts.Dir.
// See disk.Options for configuration.
func NewDisk[K comparable, V any](opts disk.Options[V]) (*disk.Cache[K, V], error) {
	return disk.New[K, V](opts)
}

// NewHybrid constructs a cache composing a memory tier and a disk tier.
// See hybrid.Options for configuration.
func NewHybrid[K comparable, V any](opts hybrid.Options[K, V]) (*hybrid.Cache[K, V], error) {
	return hybrid.New[K, V](opts)
}

// DefaultFlushDelay is the hybrid tier's default debounce window for
// coalesced write-back.
const DefaultFlushDelay = 500 * time.Millisecond
