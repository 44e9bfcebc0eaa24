package tiercache

import "github.com/tiercache/tiercache/evict"

// Priority marks an entry's eligibility for automatic eviction. Critical
// entries are never chosen as victims.
type Priority = evict.Priority

const (
	Low      = evict.Low
	Normal   = evict.Normal
	High     = evict.High
	Critical = evict.Critical
)

// EvictionPolicy selects the memory tier's eviction algorithm.
type EvictionPolicy = evict.Policy

const (
	LRU    = evict.LRU
	LFU    = evict.LFU
	FIFO   = evict.FIFO
	TTL    = evict.TTL
	Random = evict.Random
	Size   = evict.Size
)
