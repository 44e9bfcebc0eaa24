package tiercache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tiercache/tiercache/codec"
	"github.com/tiercache/tiercache/disk"
	"github.com/tiercache/tiercache/hybrid"
	"github.com/tiercache/tiercache/memory"
	"github.com/tiercache/tiercache/vfs"
)

func TestNewMemoryRoundTrip(t *testing.T) {
	c := NewMemory[string, int](memory.Options[int]{MaxItems: 4, Policy: LRU})
	require.NoError(t, c.Set("a", 1))
	v, ok := c.Get("a")
	require.True(t, ok)
	assert.Equal(t, 1, v)
}

func TestNewDiskRoundTrip(t *testing.T) {
	c, err := NewDisk[string, string](disk.Options[string]{
		Dir:   "/cache",
		Codec: codec.NewJSON[string](),
		FS:    vfs.NewMemory(),
	})
	require.NoError(t, err)
	defer c.Close()

	require.NoError(t, c.Set("a", "apple"))
	v, ok := c.Get("a")
	require.True(t, ok)
	assert.Equal(t, "apple", v)
}

func TestNewHybridRoundTrip(t *testing.T) {
	c, err := NewHybrid[string, string](hybrid.Options[string, string]{
		Memory: memory.Options[string]{MaxItems: 4},
		Disk: disk.Options[string]{
			Dir:   "/cache",
			Codec: codec.NewJSON[string](),
			FS:    vfs.NewMemory(),
		},
		FlushDelay: time.Millisecond,
	})
	require.NoError(t, err)
	defer c.Close()

	require.NoError(t, c.Set("a", "apple"))
	v, ok := c.Get("a")
	require.True(t, ok)
	assert.Equal(t, "apple", v)
}

func TestExpirationConstructorsResolve(t *testing.T) {
	now := time.Unix(1000, 0)
	deadline, ok := After(time.Minute).Resolve(now)
	require.True(t, ok)
	assert.Equal(t, now.Add(time.Minute), deadline)

	_, ok = Never().Resolve(now)
	assert.False(t, ok)
}
