package wordpress

import (
	"context"
	"net/url"
	"strconv"
)

// PostBySlug returns the post with slug; found is false when there is none.
func (c *Client) PostBySlug(ctx context.Context, slug string) (Post, bool, error) {
	return FetchBySlug[Post](ctx, c, KindPost, slug)
}

// PageBySlug returns the page with slug; found is false when there is none.
func (c *Client) PageBySlug(ctx context.Context, slug string) (Page, bool, error) {
	return FetchBySlug[Page](ctx, c, KindPage, slug)
}

func (c *Client) CategoryBySlug(ctx context.Context, slug string) (Category, bool, error) {
	return FetchBySlug[Category](ctx, c, KindCategory, slug)
}

func (c *Client) TagBySlug(ctx context.Context, slug string) (Tag, bool, error) {
	return FetchBySlug[Tag](ctx, c, KindTag, slug)
}

func (c *Client) AuthorBySlug(ctx context.Context, slug string) (Author, bool, error) {
	return FetchBySlug[Author](ctx, c, KindUser, slug)
}

func (c *Client) AuthorByID(ctx context.Context, id int64) (Author, error) {
	return FetchByID[Author](ctx, c, KindUser, id)
}

func (c *Client) FeaturedMediaByID(ctx context.Context, id int64) (FeaturedMedia, error) {
	return FetchByID[FeaturedMedia](ctx, c, KindMedia, id)
}

// Posts returns one page of posts matching filter.
func (c *Client) Posts(ctx context.Context, page, perPage int, filter Filter) Paginated[Post] {
	return FetchPaginated[Post](ctx, c, KindPost, page, perPage, filter, nil)
}

// Categories returns every category that has posts.
func (c *Client) Categories(ctx context.Context) []Category {
	return FetchAll[Category](ctx, c, KindCategory, Filter{}, url.Values{"hide_empty": {"true"}})
}

// Tags returns every tag that has posts.
func (c *Client) Tags(ctx context.Context) []Tag {
	return FetchAll[Tag](ctx, c, KindTag, Filter{}, url.Values{"hide_empty": {"true"}})
}

// Authors returns every user with published posts.
func (c *Client) Authors(ctx context.Context) []Author {
	return FetchAll[Author](ctx, c, KindUser, Filter{}, nil)
}

// TagsByPost returns the tags assigned to a post.
func (c *Client) TagsByPost(ctx context.Context, postID int64) []Tag {
	return FetchAll[Tag](ctx, c, KindTag, Filter{}, url.Values{"post": {strconv.FormatInt(postID, 10)}})
}

// CategoriesByPost returns the categories assigned to a post.
func (c *Client) CategoriesByPost(ctx context.Context, postID int64) []Category {
	return FetchAll[Category](ctx, c, KindCategory, Filter{}, url.Values{"post": {strconv.FormatInt(postID, 10)}})
}

// AllPostSlugs enumerates every post slug for sitemaps.
func (c *Client) AllPostSlugs(ctx context.Context) []SlugEntry {
	return FetchAllSlugs(ctx, c, KindPost)
}

// AllPageSlugs enumerates every page slug for sitemaps.
func (c *Client) AllPageSlugs(ctx context.Context) []SlugEntry {
	return FetchAllSlugs(ctx, c, KindPage)
}
