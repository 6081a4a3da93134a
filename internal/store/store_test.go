package store

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *SQLite {
	t.Helper()
	s, err := OpenSQLite(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestSQLitePutGet(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Put(ctx, "approvals", KV{Key: "a1", Value: []byte("pending")}))

	got, err := s.Get(ctx, "approvals", "a1")
	require.NoError(t, err)
	assert.Equal(t, []byte("pending"), got)
}

func TestSQLiteGetMissing(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	_, err := s.Get(ctx, "approvals", "nope")
	assert.ErrorIs(t, err, ErrNotFound)

	// a bucket that has never been written behaves the same
	_, err = s.Get(ctx, "never_created", "nope")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSQLiteBucketsAreIsolated(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Put(ctx, "tool_cache", KV{Key: "k", Value: []byte("cached")}))

	_, err := s.Get(ctx, "approvals", "k")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSQLiteOverwrite(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Put(ctx, "b", KV{Key: "k", Value: []byte("v1")}))
	require.NoError(t, s.Put(ctx, "b", KV{Key: "k", Value: []byte("v2")}))

	got, err := s.Get(ctx, "b", "k")
	require.NoError(t, err)
	assert.Equal(t, []byte("v2"), got)
}

func TestSQLiteDelete(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Put(ctx, "b", KV{Key: "k", Value: []byte("v")}))
	require.NoError(t, s.Delete(ctx, "b", "k"))

	_, err := s.Get(ctx, "b", "k")
	assert.ErrorIs(t, err, ErrNotFound)

	// deleting again is fine
	assert.NoError(t, s.Delete(ctx, "b", "k"))
}

func TestSQLiteGetAll(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Put(ctx, "b", KV{Key: "k2", Value: []byte("v2")}))
	require.NoError(t, s.Put(ctx, "b", KV{Key: "k1", Value: []byte("v1")}))

	all, err := s.GetAll(ctx, "b")
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "k1", all[0].Key)
	assert.Equal(t, "k2", all[1].Key)
}

func TestSQLiteLargeValueRoundTrip(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	// Over the compression threshold; compressible content.
	large := bytes.Repeat([]byte("curio cached tool output "), 4096)
	require.NoError(t, s.Put(ctx, "tool_cache", KV{Key: "big", Value: large}))

	got, err := s.Get(ctx, "tool_cache", "big")
	require.NoError(t, err)
	assert.Equal(t, large, got)

	all, err := s.GetAll(ctx, "tool_cache")
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, large, all[0].Value)
}

func TestSQLiteClosedIsUnavailable(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Close())

	_, err := s.Get(ctx, "b", "k")
	assert.ErrorIs(t, err, ErrUnavailable)
	assert.ErrorIs(t, s.Put(ctx, "b", KV{Key: "k", Value: nil}), ErrUnavailable)

	// double close is safe
	assert.NoError(t, s.Close())
}

func TestMemoryStore(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	require.NoError(t, m.Put(ctx, "b", KV{Key: "k", Value: []byte("v")}))

	got, err := m.Get(ctx, "b", "k")
	require.NoError(t, err)
	assert.Equal(t, []byte("v"), got)

	_, err = m.Get(ctx, "b", "missing")
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, m.Delete(ctx, "b", "k"))
	_, err = m.Get(ctx, "b", "k")
	assert.ErrorIs(t, err, ErrNotFound)
}
