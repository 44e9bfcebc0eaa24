// Package expire implements tiercache's expiration model: a per-entry
// absolute deadline resolved once at set time (Expiration), plus a set of
// composable predicate-based extension policies (Policy) consulted on every
// read and on the bulk purge sweep.
//
// This generalises krisalay/in-memory-cache's expiration.Strategy
// (github.com/krisalay/in-memory-cache/expiration/expiration.go), which
// hardcodes exactly one strategy (ExpireAfterAccess, a sliding TTL) into the
// engine. Here the absolute-deadline half of that contract becomes the
// Expiration descriptor, and the rest becomes a family of Policy
// implementations — time-based, access-count, size-threshold, sliding
// window, tag-set — that can be combined with Composite.
package expire

import "time"

// Kind distinguishes the three ways an Expiration can be specified.
type Kind int

const (
	KindNever Kind = iota
	KindAfter
	KindAt
)

// Expiration describes when an entry becomes stale. It is resolved to an
// absolute deadline once, at set time.
type Expiration struct {
	kind     Kind
	duration time.Duration
	at       time.Time
}

// Never means the entry has no deadline and never expires by time alone.
func Never() Expiration { return Expiration{kind: KindNever} }

// After means the entry expires duration after it is resolved (i.e. after
// the set call that establishes it).
func After(d time.Duration) Expiration { return Expiration{kind: KindAfter, duration: d} }

// At means the entry expires at the given absolute instant.
func At(t time.Time) Expiration { return Expiration{kind: KindAt, at: t} }

// Resolve computes the absolute deadline given the reference instant now
// (normally the set time). ok is false for Never, meaning no deadline.
func (e Expiration) Resolve(now time.Time) (deadline time.Time, ok bool) {
	switch e.kind {
	case KindAfter:
		return now.Add(e.duration), true
	case KindAt:
		return e.at, true
	default:
		return time.Time{}, false
	}
}

// IsZero reports whether e is the zero Expiration value, which behaves the
// same as Never().
func (e Expiration) IsZero() bool { return e.kind == KindNever && e.duration == 0 && e.at.IsZero() }

// Metadata is the read-only snapshot an extension Policy inspects. It
// mirrors the fields a memory-tier entry carries, minus the value itself.
type Metadata struct {
	CreatedAt      time.Time
	LastAccessAt   time.Time
	AccessCount    int64
	SizeBytes      int64
	Tags           []string
}

// Policy is a pure predicate over an entry's metadata snapshot, consulted
// on every Get and on the bulk purge sweep.
type Policy interface {
	ShouldExpire(meta Metadata, now time.Time) bool
}
