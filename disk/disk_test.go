package disk

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tiercache/tiercache/clockwork"
	"github.com/tiercache/tiercache/codec"
	"github.com/tiercache/tiercache/errs"
	"github.com/tiercache/tiercache/expire"
	"github.com/tiercache/tiercache/vfs"
)

func newTestCache(t *testing.T, opts Options[string]) *Cache[string, string] {
	t.Helper()
	if opts.Dir == "" {
		opts.Dir = "/cache"
	}
	if opts.Codec == nil {
		opts.Codec = codec.NewJSON[string]()
	}
	if opts.FS == nil {
		opts.FS = vfs.NewMemory()
	}
	c, err := New[string, string](opts)
	require.NoError(t, err)
	return c
}

func TestSetGetRoundTrip(t *testing.T) {
	c := newTestCache(t, Options[string]{})
	require.NoError(t, c.Set("a", "apple"))

	v, ok := c.Get("a")
	require.True(t, ok)
	assert.Equal(t, "apple", v)

	_, ok = c.Get("missing")
	assert.False(t, ok)
}

func TestManifestSurvivesReopen(t *testing.T) {
	fs := vfs.NewMemory()
	jsonCodec := codec.NewJSON[string]()
	c1 := newTestCache(t, Options[string]{Dir: "/cache", FS: fs, Codec: jsonCodec})
	require.NoError(t, c1.Set("a", "apple"))

	c2 := newTestCache(t, Options[string]{Dir: "/cache", FS: fs, Codec: jsonCodec})
	v, ok := c2.Get("a")
	require.True(t, ok)
	assert.Equal(t, "apple", v)
}

func TestByteBudgetEvictsLRU(t *testing.T) {
	// "short" encodes to 7 JSON bytes, so the budget holds exactly two entries.
	c := newTestCache(t, Options[string]{MaxBytes: 14})
	require.NoError(t, c.Set("a", "short"))
	require.NoError(t, c.Set("b", "short"))
	c.Get("a") // touch a so b becomes the LRU victim
	require.NoError(t, c.Set("c", "short"))

	_, ok := c.Get("b")
	assert.False(t, ok, "b should have been evicted to stay under the byte budget")
	_, ok = c.Get("a")
	assert.True(t, ok)
}

func TestExpirationRemovesRecordAndFile(t *testing.T) {
	clock := clockwork.NewFake(time.Unix(0, 0))
	c := newTestCache(t, Options[string]{Clock: clock})
	require.NoError(t, c.Set("a", "apple", WithExpiration(expire.After(time.Minute))))

	clock.Advance(2 * time.Minute)
	_, ok := c.Get("a")
	assert.False(t, ok)
	assert.False(t, c.Contains("a"))
	_, statErr := c.fs.Stat(c.dataPath(c.opts.Hasher.Hash(c.keyString("a"))))
	assert.Error(t, statErr, "expired entry's file should have been removed")
}

func TestRemoveAllResetsState(t *testing.T) {
	c := newTestCache(t, Options[string]{})
	require.NoError(t, c.Set("a", "apple"))
	require.NoError(t, c.RemoveAll())

	_, ok := c.Get("a")
	assert.False(t, ok)
	usage, err := c.ComputeDiskUsage()
	require.NoError(t, err)
	assert.Equal(t, int64(0), usage)
}

func TestVerifyIntegrityRemovesCorruptRecord(t *testing.T) {
	fs := vfs.NewMemory()
	c := newTestCache(t, Options[string]{FS: fs})
	require.NoError(t, c.Set("a", "apple"))

	filename := c.opts.Hasher.Hash(c.keyString("a"))
	require.NoError(t, fs.WriteFile(c.dataPath(filename), []byte("not json")))

	n, err := c.VerifyIntegrity()
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.False(t, c.Contains("a"))
}

func TestVerifyIntegrityRemovesOrphanFile(t *testing.T) {
	fs := vfs.NewMemory()
	c := newTestCache(t, Options[string]{FS: fs})
	require.NoError(t, c.Set("a", "apple"))

	orphan := c.dataPath("not-a-tracked-hash")
	require.NoError(t, fs.WriteFile(orphan, []byte("leftover")))

	n, err := c.VerifyIntegrity()
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	// The tracked record is untouched; only the orphan was removed.
	assert.True(t, c.Contains("a"))
	_, statErr := fs.Stat(orphan)
	assert.Error(t, statErr, "orphan file should have been removed")
}

func TestCapacityExceededWhenNothingEvictable(t *testing.T) {
	c := newTestCache(t, Options[string]{MaxBytes: 1})
	err := c.Set("a", "this value is definitely longer than one byte")
	require.Error(t, err)
	var capErr *errs.CapacityExceeded
	assert.ErrorAs(t, err, &capErr)
}
