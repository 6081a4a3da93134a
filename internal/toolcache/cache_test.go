package toolcache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/curiolabs/curio/internal/store"
)

func TestKeyDeterministic(t *testing.T) {
	a := Key("sources.fetch", map[string]any{"url": "https://example.com", "depth": 2})
	b := Key("sources.fetch", map[string]any{"depth": 2, "url": "https://example.com"})
	assert.Equal(t, a, b, "map ordering must not change the key")
}

func TestKeyScopedByTool(t *testing.T) {
	input := map[string]any{"url": "https://example.com"}
	assert.NotEqual(t, Key("sources.fetch", input), Key("sources.probe", input))
}

func TestKeyDiffersByInput(t *testing.T) {
	assert.NotEqual(t,
		Key("sources.fetch", map[string]any{"url": "https://a.example"}),
		Key("sources.fetch", map[string]any{"url": "https://b.example"}),
	)
}

func TestSetThenGet(t *testing.T) {
	c := New(store.NewMemory(), nil)
	ctx := context.Background()
	input := map[string]any{"url": "https://example.com"}

	c.Set(ctx, "sources.fetch", input, map[string]any{"body": "<p>hi</p>"})

	out, ok := c.Get(ctx, "sources.fetch", input)
	require.True(t, ok)
	assert.Equal(t, map[string]any{"body": "<p>hi</p>"}, out)
}

func TestGetMissWithoutStore(t *testing.T) {
	c := New(nil, nil)
	ctx := context.Background()

	_, ok := c.Get(ctx, "sources.fetch", map[string]any{"url": "x"})
	assert.False(t, ok)

	// writes without a store are silently dropped
	assert.NotPanics(t, func() {
		c.Set(ctx, "sources.fetch", map[string]any{"url": "x"}, "out")
	})
}

func TestExpiryDeletesEntry(t *testing.T) {
	mem := store.NewMemory()
	now := time.Now()
	c := New(mem, nil, WithClock(func() time.Time { return now }))
	ctx := context.Background()
	input := map[string]any{"url": "https://example.com"}

	c.Set(ctx, "sources.fetch", input, "out")

	// just inside the TTL
	now = now.Add(DefaultTTL - time.Second)
	_, ok := c.Get(ctx, "sources.fetch", input)
	assert.True(t, ok)

	// past the TTL: miss, and the entry is gone from the store
	now = now.Add(2 * time.Second)
	_, ok = c.Get(ctx, "sources.fetch", input)
	assert.False(t, ok)

	all, err := mem.GetAll(ctx, Bucket)
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestCleanupExpired(t *testing.T) {
	mem := store.NewMemory()
	now := time.Now()
	c := New(mem, nil, WithClock(func() time.Time { return now }))
	ctx := context.Background()

	c.Set(ctx, "sources.fetch", map[string]any{"url": "a"}, "out-a")
	c.Set(ctx, "sources.fetch", map[string]any{"url": "b"}, "out-b")

	now = now.Add(DefaultTTL + time.Minute)
	c.Set(ctx, "sources.fetch", map[string]any{"url": "c"}, "out-c")

	removed := c.CleanupExpired(ctx)
	assert.Equal(t, 2, removed)

	_, ok := c.Get(ctx, "sources.fetch", map[string]any{"url": "c"})
	assert.True(t, ok)
}

func TestCleanupDropsCorruptEntries(t *testing.T) {
	mem := store.NewMemory()
	ctx := context.Background()
	require.NoError(t, mem.Put(ctx, Bucket, store.KV{Key: "junk", Value: []byte("not json")}))

	c := New(mem, nil)
	assert.Equal(t, 1, c.CleanupExpired(ctx))
}
