// Package store provides the durable key/value result store backing the
// approval gate and the tool result cache.
//
// A Store groups values into named buckets (one per concern: approvals,
// tool_cache, sources). The store may legitimately be absent, whether
// disabled by configuration or failed to open, and every caller treats
// store failures as "not present" rather than fatal.
package store

import (
	"context"
	"errors"
)

var (
	// ErrNotFound indicates the key does not exist in the bucket, or the
	// bucket itself has never been written.
	ErrNotFound = errors.New("key not found")

	// ErrUnavailable indicates the backing store is missing or closed.
	// Callers degrade gracefully: gating and rendering keep working
	// without durability.
	ErrUnavailable = errors.New("store unavailable")
)

// KV is a single key/value pair.
type KV struct {
	Key   string
	Value []byte
}

// Store is durable key→value persistence with per-bucket namespacing.
type Store interface {
	Get(ctx context.Context, bucket, key string) ([]byte, error)
	Put(ctx context.Context, bucket string, kv KV) error
	Delete(ctx context.Context, bucket, key string) error
	GetAll(ctx context.Context, bucket string) ([]KV, error)
}
