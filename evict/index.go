// Package evict implements the eviction index: an abstract data type that,
// given a named policy, tracks whatever bookkeeping that policy needs to
// answer "which key should leave next": LRU in O(1) per operation, LFU and
// FIFO in O(1) for insert and access (FIFO's OnRemove scans the queue, and
// LFU's PickVictims scans the frequency buckets), and O(n) per eviction
// call for the scan-based policies, which is acceptable because evictions
// are batched.
//
// The LRU, LFU and FIFO implementations are generalised directly from
// krisalay/in-memory-cache's eviction package (github.com/krisalay/in-memory-cache/eviction):
// lru.go's doubly-linked list + hash index, lfu.go's frequency buckets with
// a tracked minFreq, and fifo.go's queue + membership set. TTL, Random and
// Size are new scan-based selectors krisalay/in-memory-cache doesn't have.
package evict

import "time"

// Priority marks an entry's eligibility for automatic eviction. Critical
// entries are never returned by PickVictims.
type Priority int

const (
	Low Priority = iota
	Normal
	High
	Critical
)

func (p Priority) String() string {
	switch p {
	case Low:
		return "low"
	case Normal:
		return "normal"
	case High:
		return "high"
	case Critical:
		return "critical"
	default:
		return "unknown"
	}
}

// Policy selects which eviction algorithm an Index implements.
type Policy string

const (
	LRU    Policy = "lru"
	LFU    Policy = "lfu"
	FIFO   Policy = "fifo"
	TTL    Policy = "ttl"
	Random Policy = "random"
	Size   Policy = "size"
)

// Metadata is the snapshot an Index needs about an entry to place it and,
// for the scan-based policies, to select it as a victim later.
type Metadata struct {
	SizeBytes      int64
	CreatedAt      time.Time
	LastAccessAt   time.Time
	ExpiresAt      time.Time // zero means no deadline
	Priority       Priority
}

// Index is the eviction-index ADT. The memory tier (with its configured
// policy) and the disk tier (always LRU) are its callers; each notifies the
// index of every insert/access/update/remove and asks it for victims when a
// budget would otherwise be exceeded.
type Index[K comparable] interface {
	OnInsert(key K, meta Metadata)
	OnAccess(key K, meta Metadata)
	OnUpdate(key K, meta Metadata)
	OnRemove(key K)

	// PickVictims returns up to n keys to evict, in the order they should be
	// removed, skipping any key whose last-known priority satisfies
	// excluded. It never mutates bookkeeping; the caller removes the chosen
	// keys and calls OnRemove for each.
	PickVictims(n int, excluded func(Priority) bool) []K
}

// New constructs an Index for the given policy.
func New[K comparable](policy Policy) Index[K] {
	switch policy {
	case LRU:
		return newLRU[K]()
	case LFU:
		return newLFU[K]()
	case FIFO:
		return newFIFO[K]()
	case TTL:
		return newScanIndex[K](ttlLess)
	case Random:
		return newScanIndex[K](nil)
	case Size:
		return newScanIndex[K](sizeLess)
	default:
		panic("evict: unknown policy " + string(policy))
	}
}
