package wordpress

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strconv"

	"github.com/eringen/headpress/cache"
)

// SweepPageSize is the per_page used when enumerating whole collections. It
// is the REST API's maximum.
const SweepPageSize = 100

// Filter narrows a paginated listing. Zero fields are left out of the query.
type Filter struct {
	Author   int64
	Category int64
	Tag      int64
	Search   string
}

func (f Filter) apply(q url.Values) {
	if f.Author > 0 {
		q.Set("author", strconv.FormatInt(f.Author, 10))
	}
	if f.Category > 0 {
		q.Set("categories", strconv.FormatInt(f.Category, 10))
	}
	if f.Tag > 0 {
		q.Set("tags", strconv.FormatInt(f.Tag, 10))
	}
	if f.Search != "" {
		q.Set("search", f.Search)
	}
}

// PageHeaders are the pagination counts WordPress reports in X-WP-Total and
// X-WP-TotalPages.
type PageHeaders struct {
	Total      int `json:"total"`
	TotalPages int `json:"totalPages"`
}

// Paginated is one page of a listing. Degraded is set when the CMS could not
// be read, as opposed to having nothing to return.
type Paginated[T any] struct {
	Data     []T         `json:"data"`
	Headers  PageHeaders `json:"headers"`
	Degraded bool        `json:"-"`
}

// FetchBySlug returns the first record of kind with slug. found is false when
// the CMS returns an empty array; that is not an error.
func FetchBySlug[T any](ctx context.Context, c *Client, kind Kind, slug string) (v T, found bool, err error) {
	e, err := c.get(ctx, kind, kind.Endpoint, url.Values{"slug": {slug}}, kind.Tags())
	if err != nil {
		return v, false, err
	}
	items, err := decode[[]T](e)
	if err != nil || len(items) == 0 {
		return v, false, err
	}
	return items[0], true, nil
}

// FetchByID returns the record of kind with id. A non-success status is
// returned as *Error.
func FetchByID[T any](ctx context.Context, c *Client, kind Kind, id int64) (T, error) {
	path := kind.Endpoint + "/" + strconv.FormatInt(id, 10)
	e, err := c.get(ctx, kind, path, nil, kind.Tags(id))
	if err != nil {
		var zero T
		return zero, err
	}
	return decode[T](e)
}

// FetchPaginated returns one page of kind. Any failure is logged and yields an
// empty page with zero counts, so listings render as "no content" instead of
// failing. A 400 is how WordPress answers a page number past the end; every
// other failure marks the result Degraded.
func FetchPaginated[T any](ctx context.Context, c *Client, kind Kind, page, perPage int, filter Filter, extra url.Values) Paginated[T] {
	q := url.Values{}
	for k, v := range extra {
		q[k] = v
	}
	q.Set("page", strconv.Itoa(max(page, 1)))
	if perPage > 0 {
		q.Set("per_page", strconv.Itoa(perPage))
	}
	filter.apply(q)

	e, err := c.get(ctx, kind, kind.Endpoint, q, kind.Tags())
	if err != nil {
		var we *Error
		if errors.As(err, &we) && we.Status == http.StatusBadRequest {
			c.logger.DebugContext(ctx, "wordpress listing rejected", "kind", kind.Endpoint, "page", page, "error", err)
			return Paginated[T]{Data: []T{}}
		}
		c.logger.WarnContext(ctx, "wordpress listing failed", "kind", kind.Endpoint, "page", page, "error", err)
		return degraded[T](ctx)
	}
	items, err := decode[[]T](e)
	if err != nil {
		c.logger.WarnContext(ctx, "wordpress listing undecodable", "kind", kind.Endpoint, "page", page, "error", err)
		return degraded[T](ctx)
	}
	if items == nil {
		items = []T{}
	}
	return Paginated[T]{
		Data: items,
		Headers: PageHeaders{
			Total:      headerInt(e.Header, headerTotal),
			TotalPages: headerInt(e.Header, headerTotalPages),
		},
	}
}

func degraded[T any](ctx context.Context) Paginated[T] {
	cache.MarkIncomplete(ctx)
	return Paginated[T]{Data: []T{}, Degraded: true}
}

// FetchAll walks every page of kind in order, one request at a time. A failed
// page ends the walk with what was gathered so far.
func FetchAll[T any](ctx context.Context, c *Client, kind Kind, filter Filter, extra url.Values) []T {
	var out []T
	for page := 1; ; page++ {
		res := FetchPaginated[T](ctx, c, kind, page, SweepPageSize, filter, extra)
		out = append(out, res.Data...)
		if page >= res.Headers.TotalPages {
			return out
		}
	}
}

// FetchAllSlugs returns every slug of kind with its last-modified time.
func FetchAllSlugs(ctx context.Context, c *Client, kind Kind) []SlugEntry {
	return FetchAll[SlugEntry](ctx, c, kind, Filter{}, url.Values{"_fields": {"slug,modified_gmt"}})
}
