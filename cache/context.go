package cache

import (
	"context"
	"sync"
)

type collectorKey struct{}

type bypassKey struct{}

// tagSet accumulates the tags of every fetch made while rendering one page.
type tagSet struct {
	mu         sync.Mutex
	seen       map[string]struct{}
	tags       []string
	incomplete bool
}

// WithCollector returns a context that records the tags passed to Collect.
func WithCollector(ctx context.Context) context.Context {
	return context.WithValue(ctx, collectorKey{}, &tagSet{seen: make(map[string]struct{})})
}

// Collect adds tags to the collector in ctx, if there is one.
func Collect(ctx context.Context, tags ...string) {
	ts, ok := ctx.Value(collectorKey{}).(*tagSet)
	if !ok {
		return
	}
	ts.mu.Lock()
	defer ts.mu.Unlock()
	for _, t := range tags {
		if _, dup := ts.seen[t]; dup {
			continue
		}
		ts.seen[t] = struct{}{}
		ts.tags = append(ts.tags, t)
	}
}

// Collected returns the tags recorded in ctx in first-seen order.
func Collected(ctx context.Context) []string {
	ts, ok := ctx.Value(collectorKey{}).(*tagSet)
	if !ok {
		return nil
	}
	ts.mu.Lock()
	defer ts.mu.Unlock()
	return append([]string(nil), ts.tags...)
}

// MarkIncomplete flags the page being rendered as built from partial data,
// so it is not stored in the page cache.
func MarkIncomplete(ctx context.Context) {
	if ts, ok := ctx.Value(collectorKey{}).(*tagSet); ok {
		ts.mu.Lock()
		ts.incomplete = true
		ts.mu.Unlock()
	}
}

// Incomplete reports whether MarkIncomplete was called on ctx's collector.
func Incomplete(ctx context.Context) bool {
	ts, ok := ctx.Value(collectorKey{}).(*tagSet)
	if !ok {
		return false
	}
	ts.mu.Lock()
	defer ts.mu.Unlock()
	return ts.incomplete
}

// WithBypass marks ctx so cache reads and writes are skipped (preview mode).
func WithBypass(ctx context.Context) context.Context {
	return context.WithValue(ctx, bypassKey{}, true)
}

// Bypassed reports whether ctx was marked with WithBypass.
func Bypassed(ctx context.Context) bool {
	b, _ := ctx.Value(bypassKey{}).(bool)
	return b
}
