package cache

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/eringen/headpress/metrics"
)

// PagePrefix namespaces rendered pages inside the shared store.
const PagePrefix = "page:"

// PathKind selects how much RevalidatePath drops.
type PathKind string

const (
	// PathPage drops the page at exactly that path (any query string).
	PathPage PathKind = "page"
	// PathLayout drops that path and everything below it.
	PathLayout PathKind = "layout"
)

// TagCache wraps a Store with TTLs, request coalescing and tag/path
// invalidation.
type TagCache struct {
	store  Store
	ttl    time.Duration
	group  singleflight.Group
	logger *slog.Logger

	// gen counts invalidations. Writes started before the latest one are
	// dropped so a slow fill cannot resurrect content a webhook removed.
	mu  sync.RWMutex
	gen uint64

	metrics *metrics.Metrics
	now     func() time.Time
}

// Option configures a TagCache.
type Option func(*TagCache)

// WithLogger sets the logger used for store failures.
func WithLogger(l *slog.Logger) Option {
	return func(c *TagCache) { c.logger = l }
}

// WithMetrics records hit/miss counts.
func WithMetrics(m *metrics.Metrics) Option {
	return func(c *TagCache) { c.metrics = m }
}

// WithClock overrides time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(c *TagCache) { c.now = now }
}

// New creates a TagCache. ttl <= 0 means entries only leave by invalidation
// or eviction.
func New(store Store, ttl time.Duration, opts ...Option) *TagCache {
	c := &TagCache{
		store:  store,
		ttl:    ttl,
		logger: slog.Default(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Fetch returns the cached entry for key, or calls fill once per key across
// concurrent callers and stores its result under tags. Fill errors are
// returned and never cached. The tags are always added to the request's
// collector, hit or miss.
//
// The shared fill does not inherit the first caller's cancellation, so one
// client going away cannot fail the others waiting on the same key. Each
// caller still returns as soon as its own ctx is done.
func (c *TagCache) Fetch(ctx context.Context, key string, tags []string, fill func(context.Context) (Entry, error)) (Entry, error) {
	Collect(ctx, tags...)
	if c == nil || Bypassed(ctx) {
		return fill(ctx)
	}

	if e, ok := c.Lookup(ctx, key); ok {
		return e, nil
	}

	fillCtx := context.WithoutCancel(ctx)
	ch := c.group.DoChan(key, func() (any, error) {
		gen := c.Generation()
		e, err := fill(fillCtx)
		if err != nil {
			return Entry{}, err
		}
		e.Key = key
		e.Tags = tags
		c.PutIfCurrent(fillCtx, e, gen)
		return e, nil
	})
	select {
	case <-ctx.Done():
		return Entry{}, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return Entry{}, res.Err
		}
		return res.Val.(Entry), nil
	}
}

// Lookup returns a live entry for key. Store failures are logged and treated
// as misses.
func (c *TagCache) Lookup(ctx context.Context, key string) (Entry, bool) {
	if c == nil || Bypassed(ctx) {
		return Entry{}, false
	}
	e, ok, err := c.store.Get(ctx, key)
	if err != nil {
		c.logger.Warn("cache read failed", "key", key, "error", err)
		ok = false
	}
	if ok && e.Expired(c.now()) {
		ok = false
	}
	c.metrics.CacheLookup(layerOf(key), ok)
	return e, ok
}

// Put stores e, stamping StoredAt and ExpiresAt. Store failures are logged;
// a failed write only costs a later miss.
func (c *TagCache) Put(ctx context.Context, e Entry) {
	if c == nil || Bypassed(ctx) {
		return
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	c.put(ctx, e)
}

// Generation returns the invalidation counter. Take it before building an
// entry and hand it to PutIfCurrent.
func (c *TagCache) Generation() uint64 {
	if c == nil {
		return 0
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.gen
}

// PutIfCurrent stores e unless a revalidation ran since gen was taken. It
// reports whether e was stored.
func (c *TagCache) PutIfCurrent(ctx context.Context, e Entry, gen uint64) bool {
	if c == nil || Bypassed(ctx) {
		return false
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.gen != gen {
		c.logger.Debug("cache write skipped after revalidation", "key", e.Key)
		return false
	}
	c.put(ctx, e)
	return true
}

func (c *TagCache) put(ctx context.Context, e Entry) {
	now := c.now()
	e.StoredAt = now
	if c.ttl > 0 {
		e.ExpiresAt = now.Add(c.ttl)
	}
	if err := c.store.Set(ctx, e); err != nil {
		c.logger.Warn("cache write failed", "key", e.Key, "error", err)
	}
}

// RevalidateTag drops every data entry and page carrying tag.
func (c *TagCache) RevalidateTag(ctx context.Context, tag string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gen++
	n, err := c.store.DeleteTag(ctx, tag)
	if err != nil {
		return err
	}
	c.logger.Debug("revalidated tag", "tag", tag, "entries", n)
	return nil
}

// RevalidatePath drops rendered pages under path. PathLayout on "/" drops
// every page.
func (c *TagCache) RevalidatePath(ctx context.Context, path string, kind PathKind) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gen++
	key := PagePrefix + path
	var n int
	var err error
	switch kind {
	case PathLayout:
		n, err = c.store.DeletePrefix(ctx, key)
	default:
		var removed bool
		if removed, err = c.store.Delete(ctx, key); err == nil {
			n, err = c.store.DeletePrefix(ctx, key+"?")
			if removed {
				n++
			}
		}
	}
	if err != nil {
		return err
	}
	c.logger.Debug("revalidated path", "path", path, "kind", string(kind), "entries", n)
	return nil
}

// Close closes the underlying store.
func (c *TagCache) Close() error {
	return c.store.Close()
}

func layerOf(key string) string {
	if strings.HasPrefix(key, PagePrefix) {
		return "page"
	}
	return "data"
}
