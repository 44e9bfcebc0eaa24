package expire

import "time"

// TimeBased expires an entry Duration after either its creation or its last
// access, chosen by Since. This is the generalised, pluggable form of
// krisalay/in-memory-cache's ExpireAfterAccess
// (github.com/krisalay/in-memory-cache/expiration/expire_after_access.go),
// which hardcoded "since last access".
type TimeBased struct {
	Duration time.Duration
	// Since selects which timestamp the duration is measured from. If nil,
	// defaults to last-access (matching krisalay/in-memory-cache's sliding-TTL default).
	Since func(Metadata) time.Time
}

func (t TimeBased) ShouldExpire(meta Metadata, now time.Time) bool {
	since := meta.LastAccessAt
	if t.Since != nil {
		since = t.Since(meta)
	}
	return now.Sub(since) >= t.Duration
}

// SinceCreated is a TimeBased.Since selector measuring from CreatedAt.
func SinceCreated(m Metadata) time.Time { return m.CreatedAt }

// SinceLastAccess is a TimeBased.Since selector measuring from LastAccessAt.
func SinceLastAccess(m Metadata) time.Time { return m.LastAccessAt }

// AccessCount expires an entry once it has been read at least Max times.
type AccessCount struct {
	Max int64
}

func (a AccessCount) ShouldExpire(meta Metadata, _ time.Time) bool {
	return meta.AccessCount >= a.Max
}

// SizeThreshold expires an entry whose estimated size exceeds MaxBytes —
// useful for evicting oversized entries from a tier tuned for small values.
type SizeThreshold struct {
	MaxBytes int64
}

func (s SizeThreshold) ShouldExpire(meta Metadata, _ time.Time) bool {
	return meta.SizeBytes > s.MaxBytes
}

// SlidingWindow expires an entry once it has gone unused for Window, or
// optionally once it has existed for MaxLifetime regardless of access
// (MaxLifetime of 0 disables the hard cap).
type SlidingWindow struct {
	Window      time.Duration
	MaxLifetime time.Duration
}

func (s SlidingWindow) ShouldExpire(meta Metadata, now time.Time) bool {
	if now.Sub(meta.LastAccessAt) >= s.Window {
		return true
	}
	if s.MaxLifetime > 0 && now.Sub(meta.CreatedAt) >= s.MaxLifetime {
		return true
	}
	return false
}

// TagSet expires an entry if any of its tags intersect a configured
// "retired" set — e.g. invalidating every entry tagged with a stale schema
// version in one sweep.
type TagSet struct {
	Retired map[string]struct{}
}

// NewTagSet builds a TagSet from a slice of retired tag names.
func NewTagSet(tags ...string) TagSet {
	retired := make(map[string]struct{}, len(tags))
	for _, t := range tags {
		retired[t] = struct{}{}
	}
	return TagSet{Retired: retired}
}

func (t TagSet) ShouldExpire(meta Metadata, _ time.Time) bool {
	for _, tag := range meta.Tags {
		if _, ok := t.Retired[tag]; ok {
			return true
		}
	}
	return false
}

// CompositeMode selects how Composite folds its sub-policies.
type CompositeMode int

const (
	Any CompositeMode = iota // OR fold
	All                      // AND fold
)

// Composite combines multiple policies with an OR ("Any") or AND ("All")
// fold.
type Composite struct {
	Mode     CompositeMode
	Policies []Policy
}

func (c Composite) ShouldExpire(meta Metadata, now time.Time) bool {
	if len(c.Policies) == 0 {
		return false
	}
	switch c.Mode {
	case All:
		for _, p := range c.Policies {
			if !p.ShouldExpire(meta, now) {
				return false
			}
		}
		return true
	default: // Any
		for _, p := range c.Policies {
			if p.ShouldExpire(meta, now) {
				return true
			}
		}
		return false
	}
}
