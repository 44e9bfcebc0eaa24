// Package disk implements the persistent tier: one file per entry under a
// cache directory, with a manifest recording size, timestamps and access
// counts so get/contains/evict_percentage never need to stat every file.
//
// New package: krisalay/in-memory-cache caches in memory only and has no
// disk-backed tier. The durability vocabulary (temp-then-rename, a
// manifest that is either old-complete or new-complete after any
// observable state, no half-updated state) is grounded on that project's
// writepolicy package, which uses the same temp-then-commit shape for its
// write-back flush.
// The directory layout and manifest/verify-integrity design are grounded
// on 1xxz188-test_badger's on-disk layout, the nearest thing to an
// on-disk KV store with a manifest plus per-record checksum available to
// learn from.
package disk

import (
	"fmt"
	"path"
	"sync"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/tiercache/tiercache/clockwork"
	"github.com/tiercache/tiercache/codec"
	"github.com/tiercache/tiercache/errs"
	"github.com/tiercache/tiercache/evict"
	"github.com/tiercache/tiercache/expire"
	"github.com/tiercache/tiercache/observer"
	"github.com/tiercache/tiercache/stats"
	"github.com/tiercache/tiercache/vfs"
)

const (
	manifestFile = "manifest"
	dataDir      = "data"
	tempDir      = "temp"
)

// Options configures a disk Cache.
type Options[V any] struct {
	// Dir is the cache's root directory; data/, temp/ and manifest live
	// beneath it.
	Dir string
	// MaxBytes bounds total file size. 0 means unbounded.
	MaxBytes int64
	// Codec encodes/decodes V to bytes. Required.
	Codec codec.Codec[V]
	// KeyString renders a key to the text the Hasher digests. Defaults to
	// fmt.Sprintf("%v", key).
	KeyString func(any) string
	// Hasher digests the rendered key into a filename. Defaults to
	// Blake2b256.
	Hasher Hasher
	// FS is the filesystem collaborator. Defaults to the real OS.
	FS vfs.FS
	// CleanupInterval drives the background expired-record sweep. 0
	// disables it.
	CleanupInterval time.Duration
	Clock           clockwork.Clock
	Logger          *zap.Logger
}

// Cache is the disk-backed tier. State mutations within one instance are
// serialised behind one mutex (Get releases it while reading the file and
// re-checks the record afterward); concurrency across processes sharing a
// directory is undefined, per the durability note this tier is grounded on.
type Cache[K comparable, V any] struct {
	mu    sync.Mutex
	opts  Options[V]
	man   *manifest
	index evict.Index[string] // keyed by the rendered key string, LRU-only
	fs    vfs.FS
	clock clockwork.Clock
	log   *zap.Logger

	obs   *observer.Dispatcher
	stats stats.Counters

	stopCleanup chan struct{}
	cleanupDone chan struct{}
	closed      bool
}

// New constructs a disk tier rooted at opts.Dir, loading any existing
// manifest. A missing or undecodable manifest starts the tier empty
// without touching existing files; VerifyIntegrity reconciles them later.
func New[K comparable, V any](opts Options[V]) (*Cache[K, V], error) {
	if opts.Codec == nil {
		panic("disk: Options.Codec is required")
	}
	if opts.KeyString == nil {
		opts.KeyString = defaultKeyString
	}
	if opts.Hasher == nil {
		opts.Hasher = Blake2b256{}
	}
	if opts.FS == nil {
		opts.FS = vfs.NewOS()
	}
	if opts.Clock == nil {
		opts.Clock = clockwork.Real()
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}

	c := &Cache[K, V]{
		opts:  opts,
		fs:    opts.FS,
		clock: opts.Clock,
		log:   opts.Logger,
		obs:   observer.New(),
		index: evict.New[string](evict.LRU),
	}

	if err := c.fs.MkdirAll(c.dataDir()); err != nil {
		return nil, errors.Wrap(&errs.DiskIOFailure{Op: "mkdir", Err: err}, "disk: open")
	}
	if err := c.fs.MkdirAll(c.tempDir()); err != nil {
		return nil, errors.Wrap(&errs.DiskIOFailure{Op: "mkdir", Err: err}, "disk: open")
	}

	if err := c.loadManifest(); err != nil {
		c.log.Warn("disk tier starting with an empty manifest", zap.Error(err))
		c.man = newManifest()
	}
	for key, rec := range c.man.Records {
		c.index.OnInsert(key, evict.Metadata{
			SizeBytes:    rec.SizeBytes,
			CreatedAt:    rec.CreatedAt,
			LastAccessAt: rec.LastAccessAt,
			ExpiresAt:    rec.ExpiresAt,
			Priority:     evict.Normal,
		})
	}

	if opts.CleanupInterval > 0 {
		c.stopCleanup = make(chan struct{})
		c.cleanupDone = make(chan struct{})
		go c.cleanupLoop(opts.CleanupInterval)
	}
	return c, nil
}

func defaultKeyString(k any) string {
	if s, ok := k.(string); ok {
		return s
	}
	return sprintKey(k)
}

func (c *Cache[K, V]) dataDir() string { return path.Join(c.opts.Dir, dataDir) }
func (c *Cache[K, V]) tempDir() string { return path.Join(c.opts.Dir, tempDir) }
func (c *Cache[K, V]) manifestPath() string {
	return path.Join(c.opts.Dir, manifestFile)
}
func (c *Cache[K, V]) dataPath(filename string) string {
	return path.Join(c.dataDir(), filename+".blob")
}

func (c *Cache[K, V]) loadManifest() error {
	b, err := c.fs.ReadFile(c.manifestPath())
	if err != nil {
		return err
	}
	m, err := decodeManifest(b)
	if err != nil {
		return err
	}
	c.man = m
	return nil
}

func (c *Cache[K, V]) persistManifest() error {
	b, err := c.man.encode()
	if err != nil {
		return err
	}
	return atomicWrite(c.fs, c.tempDir(), c.manifestPath(), b)
}

// Observe registers fn to receive every mutating event this tier emits.
func (c *Cache[K, V]) Observe(fn observer.Func) observer.Token { return c.obs.Register(fn) }

// Unobserve removes a previously registered observer.
func (c *Cache[K, V]) Unobserve(tok observer.Token) { c.obs.Unregister(tok) }

// Stats returns a snapshot of this tier's counters.
func (c *Cache[K, V]) Stats() stats.Snapshot { return c.stats.Snapshot() }

func (c *Cache[K, V]) keyString(key K) string {
	return c.opts.KeyString(any(key))
}

func (c *Cache[K, V]) isExpired(rec FileMetadata, now time.Time) bool {
	return !rec.ExpiresAt.IsZero() && !now.Before(rec.ExpiresAt)
}

// Get reads key's value. A miss and an expired hit both report (zero,
// false); an expired record is removed from the manifest and counted as
// an expiration. A codec decode failure is likewise collapsed to a miss,
// removing the record and the file and emitting an integrity eviction.
func (c *Cache[K, V]) Get(key K) (V, bool) {
	var zero V
	ks := c.keyString(key)

	c.mu.Lock()
	rec, ok := c.man.Records[ks]
	if !ok {
		c.mu.Unlock()
		c.stats.Miss()
		return zero, false
	}
	now := c.clock.Now()
	if c.isExpired(rec, now) {
		c.removeLocked(ks, rec, observer.Expired, "")
		c.mu.Unlock()
		c.stats.Expiration()
		c.stats.Miss()
		return zero, false
	}
	dataPath := c.dataPath(rec.Filename)
	c.mu.Unlock()

	raw, err := c.fs.ReadFile(dataPath)
	if err != nil {
		c.removeIfUnchanged(ks, rec, "integrity")
		c.stats.Miss()
		return zero, false
	}
	val, err := c.opts.Codec.Decode(raw)
	if err != nil {
		c.removeIfUnchanged(ks, rec, "integrity")
		c.stats.Miss()
		return zero, false
	}

	c.mu.Lock()
	if cur, ok := c.man.Records[ks]; ok && cur == rec {
		cur.LastAccessAt = now
		cur.AccessCount++
		c.man.Records[ks] = cur
		c.index.OnAccess(ks, recMeta(cur))
	}
	// else: a concurrent Remove or Set changed this record while the lock
	// was released for I/O; the value just read is still a valid snapshot,
	// but the access-time bump is dropped rather than resurrecting or
	// reverting whatever is now current.
	c.mu.Unlock()
	c.stats.Hit()
	return val, true
}

// SetOption customises a single Set call.
type SetOption func(*setConfig)

type setConfig struct {
	expiration expire.Expiration
}

// WithExpiration attaches a per-entry deadline.
func WithExpiration(e expire.Expiration) SetOption {
	return func(c *setConfig) { c.expiration = e }
}

// Set encodes value and writes it to a new file, evicting LRU-by
// last-access-at records first if the write would exceed the byte budget.
func (c *Cache[K, V]) Set(key K, value V, opts ...SetOption) error {
	var cfg setConfig
	for _, o := range opts {
		o(&cfg)
	}
	raw, err := c.opts.Codec.Encode(value)
	if err != nil {
		return err
	}
	ks := c.keyString(key)
	filename := c.opts.Hasher.Hash(ks)

	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.clock.Now()
	existing, replacing := c.man.Records[ks]
	required := int64(len(raw))
	if replacing {
		required -= existing.SizeBytes
	}
	if err := c.makeRoomLocked(ks, required); err != nil {
		return err
	}

	if err := atomicWrite(c.fs, c.tempDir(), c.dataPath(filename), raw); err != nil {
		return errors.Wrap(&errs.DiskIOFailure{Op: "write", Err: err}, "disk: set")
	}

	rec := FileMetadata{
		Key:          ks,
		Filename:     filename,
		SizeBytes:    int64(len(raw)),
		CreatedAt:    now,
		LastAccessAt: now,
	}
	if replacing {
		rec.CreatedAt = existing.CreatedAt
	}
	if deadline, has := cfg.expiration.Resolve(now); has {
		rec.ExpiresAt = deadline
	}
	c.man.Records[ks] = rec
	c.man.TotalBytes += required

	if replacing {
		c.index.OnUpdate(ks, recMeta(rec))
	} else {
		c.index.OnInsert(ks, recMeta(rec))
	}
	c.stats.SetItems(int64(len(c.man.Records)))
	c.stats.SetBytes(c.man.TotalBytes)

	if err := c.persistManifest(); err != nil {
		return errors.Wrap(&errs.DiskIOFailure{Op: "persist-manifest", Err: err}, "disk: set")
	}
	kind := observer.Added
	if replacing {
		kind = observer.Updated
	}
	c.obs.Emit(observer.Event{Kind: kind, Key: ks})
	return nil
}

func (c *Cache[K, V]) makeRoomLocked(ks string, required int64) error {
	if c.opts.MaxBytes <= 0 {
		return nil
	}
	for c.man.TotalBytes+required > c.opts.MaxBytes {
		victims := c.index.PickVictims(2, nil)
		victim, found := "", false
		for _, v := range victims {
			if v != ks {
				victim = v
				found = true
				break
			}
		}
		if !found {
			return &errs.CapacityExceeded{Key: ks}
		}
		rec := c.man.Records[victim]
		c.removeLocked(victim, rec, observer.Evicted, "byte-limit")
		c.stats.Eviction()
	}
	return nil
}

// removeIfUnchanged removes ks's record only if it still matches the
// snapshot rec captured before an unlocked I/O call. If a concurrent Set or
// Remove already changed or dropped the record, this is a no-op: acting on
// the stale snapshot would delete or mis-account for whatever is now
// current. Used by read-path failures (a read that raced a write is simply
// reported as a miss, not a corruption of the winning writer's state).
func (c *Cache[K, V]) removeIfUnchanged(ks string, rec FileMetadata, reason string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if cur, ok := c.man.Records[ks]; ok && cur == rec {
		c.removeLocked(ks, rec, observer.Evicted, reason)
		c.stats.Eviction()
	}
}

func (c *Cache[K, V]) removeLocked(ks string, rec FileMetadata, kind observer.Kind, reason string) {
	_ = c.fs.Remove(c.dataPath(rec.Filename))
	delete(c.man.Records, ks)
	c.index.OnRemove(ks)
	c.man.TotalBytes -= rec.SizeBytes
	c.stats.SetItems(int64(len(c.man.Records)))
	c.stats.SetBytes(c.man.TotalBytes)
	var err error
	if reason == "integrity" {
		err = &errs.IntegrityFailure{Key: ks}
	}
	c.obs.Emit(observer.Event{Kind: kind, Key: ks, Reason: reason, Err: err})
}

// Remove deletes key's file and manifest record unconditionally.
func (c *Cache[K, V]) Remove(key K) error {
	ks := c.keyString(key)
	c.mu.Lock()
	defer c.mu.Unlock()
	rec, ok := c.man.Records[ks]
	if !ok {
		return nil
	}
	c.removeLocked(ks, rec, observer.Removed, "")
	return c.persistErr("remove")
}

func (c *Cache[K, V]) persistErr(op string) error {
	if err := c.persistManifest(); err != nil {
		return errors.Wrap(&errs.DiskIOFailure{Op: "persist-manifest", Err: err}, "disk: "+op)
	}
	return nil
}

// RemoveAll deletes the data directory tree and recreates it empty,
// clearing the manifest and resetting byte accounting.
func (c *Cache[K, V]) RemoveAll() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.fs.RemoveAll(c.dataDir()); err != nil {
		return errors.Wrap(&errs.DiskIOFailure{Op: "remove-all", Err: err}, "disk: remove_all")
	}
	if err := c.fs.MkdirAll(c.dataDir()); err != nil {
		return errors.Wrap(&errs.DiskIOFailure{Op: "mkdir", Err: err}, "disk: remove_all")
	}
	c.man = newManifest()
	c.index = evict.New[string](evict.LRU)
	c.stats.SetItems(0)
	c.stats.SetBytes(0)
	c.obs.Emit(observer.Event{Kind: observer.Cleared})
	return c.persistErr("remove_all")
}

// Contains reports presence respecting expiration, without reading the
// file or touching access metadata.
func (c *Cache[K, V]) Contains(key K) bool {
	ks := c.keyString(key)
	c.mu.Lock()
	defer c.mu.Unlock()
	rec, ok := c.man.Records[ks]
	if !ok {
		return false
	}
	return !c.isExpired(rec, c.clock.Now())
}

// RemoveExpired scans the manifest and removes every record (and its
// file) whose deadline has passed, returning the count removed.
func (c *Cache[K, V]) RemoveExpired() (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.clock.Now()
	var toRemove []string
	for ks, rec := range c.man.Records {
		if c.isExpired(rec, now) {
			toRemove = append(toRemove, ks)
		}
	}
	for _, ks := range toRemove {
		rec := c.man.Records[ks]
		c.removeLocked(ks, rec, observer.Expired, "")
		c.stats.Expiration()
	}
	if len(toRemove) == 0 {
		return 0, nil
	}
	return len(toRemove), c.persistErr("remove_expired")
}

// VerifyIntegrity requires every manifest record's file to exist with the
// recorded byte size; divergent records (and any file they point at) are
// removed. It then lists data/ and removes any file not referenced by a
// surviving manifest record — an orphan left behind by a manifest reset
// (version mismatch on load) or by a Get/Set race that lost its record
// update. Each removal counts as an eviction of kind "integrity".
func (c *Cache[K, V]) VerifyIntegrity() (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	referenced := make(map[string]bool, len(c.man.Records))
	var bad []string
	for ks, rec := range c.man.Records {
		referenced[rec.Filename+".blob"] = true
		info, err := c.fs.Stat(c.dataPath(rec.Filename))
		if err != nil || info.Size != rec.SizeBytes {
			bad = append(bad, ks)
		}
	}
	for _, ks := range bad {
		rec := c.man.Records[ks]
		c.removeLocked(ks, rec, observer.Evicted, "integrity")
		c.stats.Eviction()
	}

	names, err := c.fs.ListDir(c.dataDir())
	if err != nil {
		return len(bad), errors.Wrap(&errs.DiskIOFailure{Op: "list", Err: err}, "disk: verify_integrity")
	}
	orphans := 0
	for _, name := range names {
		if referenced[name] {
			continue
		}
		if rmErr := c.fs.Remove(path.Join(c.dataDir(), name)); rmErr == nil {
			orphans++
			c.stats.Eviction()
		}
	}

	total := len(bad) + orphans
	if total == 0 {
		return 0, nil
	}
	return total, c.persistErr("verify_integrity")
}

// ComputeDiskUsage sums the actual file sizes under data/, as a
// cross-check against the manifest's tracked total.
func (c *Cache[K, V]) ComputeDiskUsage() (int64, error) {
	c.mu.Lock()
	dir := c.dataDir()
	c.mu.Unlock()
	names, err := c.fs.ListDir(dir)
	if err != nil {
		return 0, errors.Wrap(&errs.DiskIOFailure{Op: "list", Err: err}, "disk: compute_disk_usage")
	}
	var total int64
	for _, name := range names {
		info, err := c.fs.Stat(path.Join(dir, name))
		if err != nil {
			continue
		}
		total += info.Size
	}
	return total, nil
}

// EvictPercentage evicts approximately p% of records, chosen by least
// recent last_access_at.
func (c *Cache[K, V]) EvictPercentage(p float64) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if p <= 0 || len(c.man.Records) == 0 {
		return 0, nil
	}
	n := int(float64(len(c.man.Records)) * p / 100)
	if n == 0 {
		n = 1
	}
	victims := c.index.PickVictims(n, nil)
	for _, ks := range victims {
		rec := c.man.Records[ks]
		c.removeLocked(ks, rec, observer.Evicted, "capacity")
		c.stats.Eviction()
	}
	if len(victims) == 0 {
		return 0, nil
	}
	return len(victims), c.persistErr("evict_percentage")
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
			n, err := c.RemoveExpired()
			if err != nil {
				c.log.Warn("disk tier cleanup failed to persist manifest", zap.Error(err))
				continue
			}
			if n > 0 {
				c.log.Debug("disk tier cleanup swept expired records", zap.Int("count", n))
			}
		}
	}
}

func recMeta(rec FileMetadata) evict.Metadata {
	return evict.Metadata{
		SizeBytes:    rec.SizeBytes,
		CreatedAt:    rec.CreatedAt,
		LastAccessAt: rec.LastAccessAt,
		ExpiresAt:    rec.ExpiresAt,
		Priority:     evict.Normal,
	}
}

func sprintKey(k any) string {
	type stringer interface{ String() string }
	if s, ok := k.(stringer); ok {
		return s.String()
	}
	return fmt.Sprintf("%v", k)
}
