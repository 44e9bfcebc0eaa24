package hybrid

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tiercache/tiercache/codec"
	"github.com/tiercache/tiercache/disk"
	"github.com/tiercache/tiercache/memory"
	"github.com/tiercache/tiercache/vfs"
)

func newTestCache(t *testing.T) *Cache[string, string] {
	t.Helper()
	c, err := New[string, string](Options[string, string]{
		Memory: memory.Options[string]{MaxItems: 2},
		Disk: disk.Options[string]{
			Dir:   "/cache",
			Codec: codec.NewJSON[string](),
			FS:    vfs.NewMemory(),
		},
		FlushDelay: time.Millisecond,
	})
	require.NoError(t, err)
	t.Cleanup(c.Close)
	return c
}

func TestSetGetServedFromMemory(t *testing.T) {
	c := newTestCache(t)
	require.NoError(t, c.Set("a", "apple"))

	v, src, ok := c.GetWithSource("a")
	require.True(t, ok)
	assert.Equal(t, "apple", v)
	assert.Equal(t, FromMemory, src)
}

func TestDiskFallbackAfterMemoryEviction(t *testing.T) {
	c := newTestCache(t)
	require.NoError(t, c.Set("a", "apple"))
	c.Flush()

	c.ClearMemory()

	v, src, ok := c.GetWithSource("a")
	require.True(t, ok)
	assert.Equal(t, "apple", v)
	assert.Equal(t, FromDisk, src)
}

func TestPromoteOnDiskHit(t *testing.T) {
	c, err := New[string, string](Options[string, string]{
		Memory: memory.Options[string]{MaxItems: 2},
		Disk: disk.Options[string]{
			Dir:   "/cache",
			Codec: codec.NewJSON[string](),
			FS:    vfs.NewMemory(),
		},
		FlushDelay:       time.Millisecond,
		PromoteOnDiskHit: true,
	})
	require.NoError(t, err)
	defer c.Close()

	require.NoError(t, c.Set("a", "apple"))
	c.Flush()
	c.ClearMemory()

	_, _, ok := c.GetWithSource("a")
	require.True(t, ok)

	_, ok = c.GetFromMemory("a")
	assert.True(t, ok, "disk hit should have promoted the value back into memory")
}

func TestGetFromMemoryAfterPromotionCountsAsMemoryHit(t *testing.T) {
	c, err := New[string, string](Options[string, string]{
		Memory: memory.Options[string]{MaxItems: 2},
		Disk: disk.Options[string]{
			Dir:   "/cache",
			Codec: codec.NewJSON[string](),
			FS:    vfs.NewMemory(),
		},
		FlushDelay:       time.Millisecond,
		PromoteOnDiskHit: true,
	})
	require.NoError(t, err)
	defer c.Close()

	require.NoError(t, c.Set("a", "apple"))
	c.Flush()
	c.ClearMemory()

	_, _, ok := c.GetWithSource("a") // disk hit, promotes into memory
	require.True(t, ok)

	_, ok = c.GetFromMemory("a")
	require.True(t, ok)

	snap := c.Stats()
	assert.Equal(t, int64(1), snap.MemoryHits, "get_from_memory after a promoting disk hit must count as a memory hit")
	assert.Equal(t, int64(1), snap.DiskHits)
}

func TestCoalescedWritesOverwriteEarlierPending(t *testing.T) {
	c := newTestCache(t)
	require.NoError(t, c.Set("a", "first"))
	require.NoError(t, c.Set("a", "second"))
	c.Flush()

	v, ok := c.GetFromDisk("a")
	require.True(t, ok)
	assert.Equal(t, "second", v, "only the latest pending write should reach disk")
}

func TestWriteThroughOnSet(t *testing.T) {
	c, err := New[string, string](Options[string, string]{
		Memory: memory.Options[string]{MaxItems: 2},
		Disk: disk.Options[string]{
			Dir:   "/cache",
			Codec: codec.NewJSON[string](),
			FS:    vfs.NewMemory(),
		},
		WriteToDiskOnSet: true,
	})
	require.NoError(t, err)
	defer c.Close()

	require.NoError(t, c.Set("a", "apple"))
	v, ok := c.GetFromDisk("a")
	require.True(t, ok)
	assert.Equal(t, "apple", v)
}

func TestPreloadPopulatesMemoryWithoutRewritingDisk(t *testing.T) {
	c := newTestCache(t)
	require.NoError(t, c.Set("a", "apple"))
	c.Flush()
	c.ClearMemory()

	c.Preload([]string{"a", "missing"})

	v, ok := c.GetFromMemory("a")
	require.True(t, ok)
	assert.Equal(t, "apple", v)
}

func TestSkipDiskOption(t *testing.T) {
	c := newTestCache(t)
	require.NoError(t, c.Set("a", "apple", SkipDisk[string]()))
	c.Flush()

	_, ok := c.GetFromDisk("a")
	assert.False(t, ok)
	_, ok = c.GetFromMemory("a")
	assert.True(t, ok)
}

func TestStatsTrackSourcePerTier(t *testing.T) {
	c := newTestCache(t)
	require.NoError(t, c.Set("a", "apple"))
	c.Flush()

	c.GetWithSource("a") // memory hit
	c.ClearMemory()
	c.GetWithSource("a") // disk hit
	c.GetWithSource("missing")

	snap := c.Stats()
	assert.Equal(t, int64(1), snap.MemoryHits)
	assert.Equal(t, int64(1), snap.DiskHits)
	assert.Equal(t, int64(1), snap.Misses)
}
