// Package toolcache avoids repeat work for idempotent read-only tool calls
// by remembering (tool, input) → output for a fixed TTL.
//
// Caching is opt-in per tool: the registry consults the tool definition
// before touching the cache, because not every tool is safe to replay.
// A missing backing store is a permanent miss, never an error.
package toolcache

import (
	"context"
	"errors"
	"time"

	"github.com/bytedance/sonic"
	"go.uber.org/zap"

	"github.com/curiolabs/curio/internal/logging"
	"github.com/curiolabs/curio/internal/store"
)

// Bucket is the named store holding cached results.
const Bucket = "tool_cache"

// DefaultTTL is how long an entry stays valid.
const DefaultTTL = time.Hour

// Entry is one cached tool result as persisted.
type Entry struct {
	ToolName  string         `json:"toolName"`
	Input     map[string]any `json:"input"`
	Output    any            `json:"output"`
	CreatedAt time.Time      `json:"createdAt"`
	ExpiresAt time.Time      `json:"expiresAt"`
}

// Observer receives cache hit and miss notifications.
type Observer interface {
	RecordCacheHit()
	RecordCacheMiss()
}

// Cache is a TTL cache over the result store.
type Cache struct {
	store    store.Store
	ttl      time.Duration
	logger   *logging.Logger
	observer Observer

	// now is swappable for TTL tests.
	now func() time.Time
}

// Option configures a Cache.
type Option func(*Cache)

// WithTTL overrides the default one hour TTL.
func WithTTL(ttl time.Duration) Option {
	return func(c *Cache) { c.ttl = ttl }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(c *Cache) { c.now = now }
}

// WithObserver reports hits and misses to a metrics collector.
func WithObserver(o Observer) Option {
	return func(c *Cache) { c.observer = o }
}

// New creates a cache. st may be nil, in which case every lookup misses and
// writes are dropped.
func New(st store.Store, logger *logging.Logger, opts ...Option) *Cache {
	if logger == nil {
		logger = logging.NewNop()
	}
	c := &Cache{
		store:  st,
		ttl:    DefaultTTL,
		logger: logger.WithComponent("toolcache"),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Get returns the cached output for (tool, input) if present and unexpired.
// Expired entries are deleted on the way out. Store absence or corruption is
// a miss.
func (c *Cache) Get(ctx context.Context, toolName string, input map[string]any) (any, bool) {
	if c.store == nil {
		return c.miss()
	}

	key := Key(toolName, input)
	raw, err := c.store.Get(ctx, Bucket, key)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) && !errors.Is(err, store.ErrUnavailable) {
			c.logger.Warn("cache read failed", zap.String("key", key), zap.Error(err))
		}
		return c.miss()
	}

	var entry Entry
	if err := sonic.Unmarshal(raw, &entry); err != nil {
		c.logger.Warn("dropping undecodable cache entry", zap.String("key", key), zap.Error(err))
		_ = c.store.Delete(ctx, Bucket, key)
		return c.miss()
	}

	if c.now().After(entry.ExpiresAt) {
		_ = c.store.Delete(ctx, Bucket, key)
		return c.miss()
	}

	if c.observer != nil {
		c.observer.RecordCacheHit()
	}
	return entry.Output, true
}

func (c *Cache) miss() (any, bool) {
	if c.observer != nil {
		c.observer.RecordCacheMiss()
	}
	return nil, false
}

// Set stores output for (tool, input) with expiry now+TTL. Failures are
// logged and swallowed; the caller already has the result in hand.
func (c *Cache) Set(ctx context.Context, toolName string, input map[string]any, output any) {
	if c.store == nil {
		return
	}

	now := c.now()
	entry := Entry{
		ToolName:  toolName,
		Input:     input,
		Output:    output,
		CreatedAt: now,
		ExpiresAt: now.Add(c.ttl),
	}

	raw, err := sonic.Marshal(entry)
	if err != nil {
		c.logger.Warn("cache entry not serializable", zap.String("tool", toolName), zap.Error(err))
		return
	}

	key := Key(toolName, input)
	if err := c.store.Put(ctx, Bucket, store.KV{Key: key, Value: raw}); err != nil {
		c.logger.Warn("cache write failed", zap.String("key", key), zap.Error(err))
	}
}

// CleanupExpired sweeps the whole bucket and deletes entries past expiry.
// Meant to run at startup so the store does not grow without bound across
// sessions. Returns the number of entries removed.
func (c *Cache) CleanupExpired(ctx context.Context) int {
	if c.store == nil {
		return 0
	}

	all, err := c.store.GetAll(ctx, Bucket)
	if err != nil {
		return 0
	}

	now := c.now()
	removed := 0
	for _, kv := range all {
		var entry Entry
		if err := sonic.Unmarshal(kv.Value, &entry); err != nil || now.After(entry.ExpiresAt) {
			if err := c.store.Delete(ctx, Bucket, kv.Key); err == nil {
				removed++
			}
		}
	}

	if removed > 0 {
		c.logger.Info("cleaned expired cache entries", zap.Int("removed", removed))
	}
	return removed
}
