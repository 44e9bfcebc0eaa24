package memory

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tiercache/tiercache/clockwork"
	"github.com/tiercache/tiercache/errs"
	"github.com/tiercache/tiercache/evict"
	"github.com/tiercache/tiercache/expire"
	"github.com/tiercache/tiercache/observer"
)

func TestSetGetRoundTrip(t *testing.T) {
	c := New[string, string](Options[string]{})
	require.NoError(t, c.Set("a", "apple"))
	v, ok := c.Get("a")
	require.True(t, ok)
	assert.Equal(t, "apple", v)

	_, ok = c.Get("missing")
	assert.False(t, ok)
}

func TestLRUEviction(t *testing.T) {
	c := New[string, string](Options[string]{MaxItems: 2, Policy: evict.LRU})
	require.NoError(t, c.Set("a", "1"))
	require.NoError(t, c.Set("b", "2"))
	c.Get("a") // a is now most recently used; b is the LRU victim
	require.NoError(t, c.Set("c", "3"))

	_, ok := c.Get("b")
	assert.False(t, ok, "b should have been evicted")
	_, ok = c.Get("a")
	assert.True(t, ok)
	_, ok = c.Get("c")
	assert.True(t, ok)
}

func TestCriticalPriorityNeverEvicted(t *testing.T) {
	c := New[string, string](Options[string]{MaxItems: 1, Policy: evict.LRU})
	require.NoError(t, c.Set("a", "1", WithPriority[string](Critical)))
	err := c.Set("b", "2")
	require.Error(t, err)
	var capErr *errs.CapacityExceeded
	assert.ErrorAs(t, err, &capErr)

	_, ok := c.Get("a")
	assert.True(t, ok, "critical entry must survive a failed insert")
	_, ok = c.Get("b")
	assert.False(t, ok)
}

func TestExpirationByDeadline(t *testing.T) {
	clock := clockwork.NewFake(time.Unix(0, 0))
	c := New[string, string](Options[string]{Clock: clock})
	require.NoError(t, c.Set("a", "1", WithExpiration[string](expire.After(time.Minute))))

	_, ok := c.Get("a")
	assert.True(t, ok)

	clock.Advance(2 * time.Minute)
	_, ok = c.Get("a")
	assert.False(t, ok, "entry should have expired")
	assert.Equal(t, int64(1), c.Stats().Expirations)
}

func TestRemoveExpiredSweep(t *testing.T) {
	clock := clockwork.NewFake(time.Unix(0, 0))
	c := New[string, string](Options[string]{Clock: clock})
	require.NoError(t, c.Set("a", "1", WithExpiration[string](expire.After(time.Second))))
	require.NoError(t, c.Set("b", "2"))

	clock.Advance(2 * time.Second)
	n := c.RemoveExpired()
	assert.Equal(t, 1, n)

	_, ok := c.Get("b")
	assert.True(t, ok)
}

func TestByteBudgetEviction(t *testing.T) {
	c := New[string, string](Options[string]{MaxBytes: 10})
	require.NoError(t, c.Set("a", "1", WithCost[string](6)))
	require.NoError(t, c.Set("b", "2", WithCost[string](6)))

	_, ok := c.Get("a")
	assert.False(t, ok, "a should have been evicted to stay under the byte budget")
	_, ok = c.Get("b")
	assert.True(t, ok)
	assert.LessOrEqual(t, c.Stats().Bytes, int64(10))
}

func TestUpdateDoesNotDoubleCount(t *testing.T) {
	c := New[string, string](Options[string]{})
	require.NoError(t, c.Set("a", "1"))
	require.NoError(t, c.Set("a", "2"))

	v, ok := c.Get("a")
	require.True(t, ok)
	assert.Equal(t, "2", v)
	assert.Equal(t, int64(1), c.Stats().Items)
}

func TestRemoveAllIsIdempotent(t *testing.T) {
	c := New[string, string](Options[string]{})
	require.NoError(t, c.Set("a", "1"))
	c.RemoveAll()
	c.RemoveAll()

	_, ok := c.Get("a")
	assert.False(t, ok)
	assert.Equal(t, int64(0), c.Stats().Items)
}

func TestObserverReceivesEvents(t *testing.T) {
	c := New[string, string](Options[string]{})
	events := make(chan observer.Event, 10)
	c.Observe(func(e observer.Event) { events <- e })

	require.NoError(t, c.Set("a", "1"))

	select {
	case e := <-events:
		assert.Equal(t, observer.Added, e.Kind)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for observer event")
	}
}

func TestEvictPercentage(t *testing.T) {
	c := New[string, string](Options[string]{})
	for _, k := range []string{"a", "b", "c", "d"} {
		require.NoError(t, c.Set(k, k))
	}
	n := c.EvictPercentage(50)
	assert.Equal(t, 2, n)
	assert.Equal(t, int64(2), c.Stats().Items)
}

func TestGetWithMetadataTracksAccess(t *testing.T) {
	clock := clockwork.NewFake(time.Unix(0, 0))
	c := New[string, string](Options[string]{Clock: clock})
	require.NoError(t, c.Set("a", "1"))

	_, meta, ok := c.GetWithMetadata("a")
	require.True(t, ok)
	assert.Equal(t, int64(1), meta.AccessCount)
}
