// Package cache is headpress's tag-indexed response cache. CMS responses and
// rendered pages are stored with the cache tags of the content they were
// built from, so a single webhook can drop everything derived from one post.
package cache

import (
	"context"
	"net/http"
	"time"
)

// Entry is one cached response body.
type Entry struct {
	Key       string
	Body      []byte
	Header    http.Header
	Tags      []string
	StoredAt  time.Time
	ExpiresAt time.Time
}

// Expired reports whether the entry is past its TTL at now. Entries without
// an expiry never expire.
func (e Entry) Expired(now time.Time) bool {
	return !e.ExpiresAt.IsZero() && !now.Before(e.ExpiresAt)
}

// Store is a cache backend. Implementations must be safe for concurrent use.
type Store interface {
	Get(ctx context.Context, key string) (Entry, bool, error)
	Set(ctx context.Context, e Entry) error
	Delete(ctx context.Context, key string) (bool, error)
	// DeleteTag removes every entry carrying tag and returns how many went.
	DeleteTag(ctx context.Context, tag string) (int, error)
	// DeletePrefix removes every entry whose key starts with prefix.
	DeletePrefix(ctx context.Context, prefix string) (int, error)
	Close() error
}
