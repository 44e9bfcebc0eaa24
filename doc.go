// Package tiercache is a composable caching engine with three tiers —
// memory-only, disk-only, and a hybrid of the two — sharing one
// expiration model, one eviction-index abstraction, and one event/stats
// surface. It generalises krisalay/in-memory-cache's root cache package,
// which re-exports a single ShardedCache constructor, into a facade over
// three constructors so callers still import one package for the common
// path.
//
// Use NewMemory for a pure in-process cache, NewDisk for a
// persistent-only cache, or NewHybrid to compose both with promotion and
// coalesced write-back. Each tier is independently usable via its own
// package (memory, disk, hybrid) for callers who want direct access to a
// tier-specific option.
package tiercache
