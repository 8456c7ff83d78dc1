package cache

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.etcd.io/bbolt"
)

func entry(key, response string) Entry {
	return Entry{Key: key, Response: response, CreatedAt: time.Now()}
}

func TestMemoryTTLExpiry(t *testing.T) {
	ctx := context.Background()
	m := NewMemory(10, 30*time.Millisecond)

	require.NoError(t, m.Set(ctx, entry("k1", "v1")))
	e, ok, err := m.Get(ctx, "k1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "v1", e.Response)

	time.Sleep(60 * time.Millisecond)
	_, ok, err = m.Get(ctx, "k1")
	require.NoError(t, err)
	assert.False(t, ok, "expected miss after ttl expiry")
}

func TestMemoryEvictsLeastRecentlyUsed(t *testing.T) {
	ctx := context.Background()
	m := NewMemory(2, time.Minute)

	require.NoError(t, m.Set(ctx, entry("a", "aa")))
	require.NoError(t, m.Set(ctx, entry("b", "bb")))
	_, ok, _ := m.Get(ctx, "a")
	require.True(t, ok)
	require.NoError(t, m.Set(ctx, entry("c", "cc")))

	_, ok, _ = m.Get(ctx, "b")
	assert.False(t, ok, "expected b to be evicted")
	_, ok, _ = m.Get(ctx, "a")
	assert.True(t, ok)
	_, ok, _ = m.Get(ctx, "c")
	assert.True(t, ok)
	assert.Equal(t, 2, m.Len())
}

func TestBoltRoundTripAndReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "cache.db")

	b, err := OpenBolt(path, 10)
	require.NoError(t, err)
	require.NoError(t, b.Set(ctx, Entry{Key: "persist", Response: "value", CreatedAt: time.Now(), TTL: time.Hour}))
	require.NoError(t, b.Close())

	b, err = OpenBolt(path, 10)
	require.NoError(t, err)
	defer b.Close()
	e, ok, err := b.Get(ctx, "persist")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "value", e.Response)
}

func TestBoltExpiryAndCapacity(t *testing.T) {
	ctx := context.Background()
	b, err := OpenBolt(filepath.Join(t.TempDir(), "cache.db"), 2)
	require.NoError(t, err)
	defer b.Close()

	base := time.Now()
	require.NoError(t, b.Set(ctx, Entry{Key: "old", Response: "1", CreatedAt: base.Add(-2 * time.Hour), TTL: time.Hour}))
	_, ok, err := b.Get(ctx, "old")
	require.NoError(t, err)
	assert.False(t, ok, "expired entry must miss")

	require.NoError(t, b.Set(ctx, Entry{Key: "a", Response: "a", CreatedAt: base}))
	require.NoError(t, b.Set(ctx, Entry{Key: "b", Response: "b", CreatedAt: base.Add(time.Second)}))
	require.NoError(t, b.Set(ctx, Entry{Key: "c", Response: "c", CreatedAt: base.Add(2 * time.Second)}))

	_, ok, _ = b.Get(ctx, "a")
	assert.False(t, ok, "oldest entry evicted")
	_, ok, _ = b.Get(ctx, "c")
	assert.True(t, ok)
	assert.Equal(t, 2, boltLen(t, b))

	require.NoError(t, b.Set(ctx, Entry{Key: "d", Response: "d", CreatedAt: base.Add(3 * time.Second)}))
	assert.Equal(t, 2, boltLen(t, b))
	_, ok, _ = b.Get(ctx, "b")
	assert.False(t, ok)
}

func boltLen(t *testing.T, b *Bolt) int {
	t.Helper()
	n := 0
	require.NoError(t, b.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketExplanations).ForEach(func(_, _ []byte) error {
			n++
			return nil
		})
	}))
	return n
}

func TestBoltCorruptEntry(t *testing.T) {
	ctx := context.Background()
	b, err := OpenBolt(filepath.Join(t.TempDir(), "cache.db"), 0)
	require.NoError(t, err)
	defer b.Close()

	require.NoError(t, b.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketExplanations).Put([]byte("bad"), []byte("{not json"))
	}))
	_, ok, err := b.Get(ctx, "bad")
	assert.False(t, ok)
	var corrupt *CacheCorruptionError
	assert.ErrorAs(t, err, &corrupt)
}

type failingStore struct{ gets int }

func (f *failingStore) Get(context.Context, string) (Entry, bool, error) {
	f.gets++
	return Entry{}, false, errors.New("disk on fire")
}

func (f *failingStore) Set(context.Context, Entry) error { return nil }

func TestTieredDropsFailingBackTier(t *testing.T) {
	ctx := context.Background()
	back := &failingStore{}
	tiered := NewTiered(NewMemory(8, time.Minute), back, "test", log.New(io.Discard, "", 0))

	_, ok, err := tiered.Get(ctx, "k")
	assert.False(t, ok)
	var corrupt *CacheCorruptionError
	require.ErrorAs(t, err, &corrupt)
	assert.True(t, tiered.Dropped())

	_, ok, err = tiered.Get(ctx, "k")
	assert.False(t, ok)
	assert.NoError(t, err)
	assert.Equal(t, 1, back.gets, "dropped tier is not consulted again")

	require.NoError(t, tiered.Set(ctx, entry("k", "v")))
	e, ok, err := tiered.Get(ctx, "k")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "v", e.Response)
}

func TestTieredPromotesBackHits(t *testing.T) {
	ctx := context.Background()
	b, err := OpenBolt(filepath.Join(t.TempDir(), "cache.db"), 0)
	require.NoError(t, err)
	defer b.Close()
	require.NoError(t, b.Set(ctx, entry("k", "from disk")))

	front := NewMemory(8, time.Minute)
	tiered := NewTiered(front, b, "bolt", nil)
	e, ok, err := tiered.Get(ctx, "k")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "from disk", e.Response)
	assert.Equal(t, 1, front.Len())
}

func TestMemoryHoldsFullCapacity(t *testing.T) {
	ctx := context.Background()
	m := NewMemory(100, time.Minute)

	for i := 0; i < 100; i++ {
		require.NoError(t, m.Set(ctx, entry(fmt.Sprintf("k%d", i), "v")))
	}
	assert.Equal(t, 100, m.Len())
	for i := 0; i < 100; i++ {
		_, ok, _ := m.Get(ctx, fmt.Sprintf("k%d", i))
		assert.True(t, ok, "k%d evicted below capacity", i)
	}

	require.NoError(t, m.Set(ctx, entry("extra", "v")))
	assert.Equal(t, 100, m.Len())
	_, ok, _ := m.Get(ctx, "k0")
	assert.False(t, ok, "least recently used entry goes first")
}
