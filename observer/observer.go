// Package observer implements a cache event hook: each mutating cache
// operation emits at most one event; delivery is fire-and-forget and must
// never re-enter the cache that raised it.
//
// This generalises krisalay/in-memory-cache's types.Metrics interface
// (github.com/krisalay/in-memory-cache/types/metrics.go), which hardcodes
// five methods (Hit/Miss/Eviction/Expire/Refresh) called synchronously on
// the cache's own goroutine, into a single typed event stream delivered
// asynchronously so a slow or buggy observer cannot stall a cache operation.
package observer

import "sync"

// Kind identifies what happened to an entry.
type Kind int

const (
	Added Kind = iota
	Updated
	Removed
	Evicted
	Expired
	Cleared
	Error
)

func (k Kind) String() string {
	switch k {
	case Added:
		return "added"
	case Updated:
		return "updated"
	case Removed:
		return "removed"
	case Evicted:
		return "evicted"
	case Expired:
		return "expired"
	case Cleared:
		return "cleared"
	case Error:
		return "error"
	default:
		return "unknown"
	}
}

// Event is delivered to every registered observer. Key is the string
// rendering of whatever key triggered the event (empty for cache-wide events
// like Cleared). Reason is set for Evicted ("capacity", "byte-limit",
// "integrity") and Error (a short description).
type Event struct {
	Kind   Kind
	Key    string
	Reason string
	Err    error
}

// Func is the observer callback signature.
type Func func(Event)

// Token identifies a registered observer for later Unregister calls.
type Token uint64

// Dispatcher fans events out to registered observers. It is safe for
// concurrent Register/Unregister/Emit calls. Each Emit delivers to observers
// on a fresh goroutine per event so a blocking observer cannot deadlock the
// cache that owns the dispatcher — re-entrant calls back into the cache
// from inside an observer therefore never execute on the cache's own
// call stack.
type Dispatcher struct {
	mu        sync.Mutex
	observers map[Token]Func
	next      Token
}

// New returns an empty Dispatcher.
func New() *Dispatcher {
	return &Dispatcher{observers: make(map[Token]Func)}
}

// Register adds an observer and returns a token for later Unregister.
func (d *Dispatcher) Register(fn Func) Token {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.next++
	tok := d.next
	d.observers[tok] = fn
	return tok
}

// Unregister removes a previously registered observer. Unregistering an
// unknown or already-removed token is a no-op.
func (d *Dispatcher) Unregister(tok Token) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.observers, tok)
}

// Emit delivers ev to every currently registered observer. It does not
// block the caller past a snapshot of the observer list: each observer runs
// on its own goroutine.
func (d *Dispatcher) Emit(ev Event) {
	d.mu.Lock()
	fns := make([]Func, 0, len(d.observers))
	for _, fn := range d.observers {
		fns = append(fns, fn)
	}
	d.mu.Unlock()

	for _, fn := range fns {
		go fn(ev)
	}
}
