package evict

import "math/rand"

// scanIndex backs the TTL, Random and Size policies. All three need no
// per-op bookkeeping for OnAccess — they just keep the latest Metadata per
// key and rebuild a transient ordering at eviction time, O(n) per eviction
// call, which is acceptable because evictions are batched.
type scanIndex[K comparable] struct {
	meta map[K]Metadata
	less func(a, b Metadata) bool
}

func newScanIndex[K comparable](less func(a, b Metadata) bool) *scanIndex[K] {
	return &scanIndex[K]{meta: make(map[K]Metadata), less: less}
}

func (s *scanIndex[K]) OnInsert(key K, meta Metadata) { s.meta[key] = meta }
func (s *scanIndex[K]) OnAccess(K, Metadata)          {}
func (s *scanIndex[K]) OnUpdate(key K, meta Metadata) { s.meta[key] = meta }
func (s *scanIndex[K]) OnRemove(key K)                { delete(s.meta, key) }

func (s *scanIndex[K]) PickVictims(n int, excluded func(Priority) bool) []K {
	type kv struct {
		key  K
		meta Metadata
	}
	candidates := make([]kv, 0, len(s.meta))
	for k, m := range s.meta {
		if excluded != nil && excluded(m.Priority) {
			continue
		}
		candidates = append(candidates, kv{k, m})
	}
	if s.less != nil {
		for i := 1; i < len(candidates); i++ {
			j := i
			for j > 0 && s.less(candidates[j].meta, candidates[j-1].meta) {
				candidates[j-1], candidates[j] = candidates[j], candidates[j-1]
				j--
			}
		}
	} else {
		rand.Shuffle(len(candidates), func(i, j int) {
			candidates[i], candidates[j] = candidates[j], candidates[i]
		})
	}
	out := make([]K, 0, n)
	for i := 0; i < len(candidates) && i < n; i++ {
		out = append(out, candidates[i].key)
	}
	return out
}

// ttlLess orders by soonest ExpiresAt first; entries with no deadline
// (zero value) sort last.
func ttlLess(a, b Metadata) bool {
	aZero, bZero := a.ExpiresAt.IsZero(), b.ExpiresAt.IsZero()
	if aZero != bZero {
		return bZero // a has a deadline, b doesn't => a sorts first
	}
	if aZero && bZero {
		return false
	}
	return a.ExpiresAt.Before(b.ExpiresAt)
}

// sizeLess orders largest SizeBytes first.
func sizeLess(a, b Metadata) bool {
	return a.SizeBytes > b.SizeBytes
}
