package headpress

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eringen/headpress/cache"
)

const apiRoot = "/wp-json/wp/v2/"

// fakeCMS serves a tiny WordPress REST API and counts requests per path.
type fakeCMS struct {
	mu    sync.Mutex
	calls map[string]int
	posts []map[string]any
	pages []map[string]any
	down  bool
}

func newFakeCMS() *fakeCMS {
	f := &fakeCMS{calls: map[string]int{}}
	for i := 1; i <= 3; i++ {
		f.posts = append(f.posts, map[string]any{
			"id":             i,
			"slug":           "post-" + strconv.Itoa(i),
			"date_gmt":       "2024-03-0" + strconv.Itoa(i) + "T10:00:00",
			"modified_gmt":   "2024-04-0" + strconv.Itoa(i) + "T10:00:00",
			"title":          map[string]any{"rendered": "Post &#8220;" + strconv.Itoa(i) + "&#8221;"},
			"excerpt":        map[string]any{"rendered": "<p>Excerpt " + strconv.Itoa(i) + "</p>"},
			"content":        map[string]any{"rendered": `<p>Body <a href="https://cms.test/about/">about</a></p>`},
			"author":         7,
			"featured_media": 0,
		})
	}
	f.pages = []map[string]any{{
		"id":           10,
		"slug":         "about",
		"modified_gmt": "2024-01-01T00:00:00",
		"title":        map[string]any{"rendered": "About us"},
		"content":      map[string]any{"rendered": "<p>We write.</p>"},
	}}
	return f
}

func (f *fakeCMS) count(path string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[path]
}

func (f *fakeCMS) setDown(down bool) {
	f.mu.Lock()
	f.down = down
	f.mu.Unlock()
}

func (f *fakeCMS) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	f.calls[r.URL.Path]++
	down := f.down
	f.mu.Unlock()

	if down {
		http.Error(w, `{"code":"internal_server_error"}`, http.StatusInternalServerError)
		return
	}
	q := r.URL.Query()
	route := strings.TrimPrefix(r.URL.Path, apiRoot)
	switch {
	case route == "posts":
		f.list(w, q, f.posts)
	case route == "pages":
		f.list(w, q, f.pages)
	case route == "users/7":
		writeJSON(w, map[string]any{"id": 7, "name": "Ada", "slug": "ada"})
	case route == "users":
		f.list(w, q, []map[string]any{{"id": 7, "name": "Ada", "slug": "ada"}})
	case route == "categories":
		cats := []map[string]any{{"id": 4, "name": "News", "slug": "news", "count": 3}}
		if q.Get("slug") != "" && q.Get("slug") != "news" {
			cats = nil
		}
		f.list(w, q, cats)
	case route == "tags":
		f.list(w, q, nil)
	case route == "menu-locations/primary":
		writeJSON(w, map[string]any{"name": "primary", "menu": 3})
	case route == "menu-items":
		f.list(w, q, []map[string]any{
			{"id": 1, "title": map[string]any{"rendered": "Home"}, "url": "https://cms.test/", "parent": 0, "menu_order": 1},
			{"id": 2, "title": map[string]any{"rendered": "About"}, "url": "https://cms.test/about/", "parent": 0, "menu_order": 2},
		})
	default:
		w.WriteHeader(http.StatusNotFound)
		writeJSON(w, map[string]any{"code": "rest_no_route"})
	}
}

func (f *fakeCMS) list(w http.ResponseWriter, q map[string][]string, items []map[string]any) {
	get := func(k string) string {
		if v := q[k]; len(v) > 0 {
			return v[0]
		}
		return ""
	}
	if slug := get("slug"); slug != "" {
		var match []map[string]any
		for _, it := range items {
			if it["slug"] == slug {
				match = append(match, it)
			}
		}
		items = match
	}
	perPage, _ := strconv.Atoi(get("per_page"))
	if perPage <= 0 {
		perPage = 10
	}
	page, _ := strconv.Atoi(get("page"))
	if page <= 0 {
		page = 1
	}
	totalPages := (len(items) + perPage - 1) / perPage
	start := min((page-1)*perPage, len(items))
	end := min(start+perPage, len(items))

	w.Header().Set("X-WP-Total", strconv.Itoa(len(items)))
	w.Header().Set("X-WP-TotalPages", strconv.Itoa(totalPages))
	out := items[start:end]
	if out == nil {
		out = []map[string]any{}
	}
	writeJSON(w, out)
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

// cmsTransport sends every request for https://cms.test to the fake.
type cmsTransport struct{ h http.Handler }

func (t cmsTransport) RoundTrip(r *http.Request) (*http.Response, error) {
	rec := httptest.NewRecorder()
	t.h.ServeHTTP(rec, r)
	return rec.Result(), nil
}

func newTestApp(t *testing.T, cms *fakeCMS, mutate ...func(*SiteConfig)) *App {
	t.Helper()
	store, err := cache.NewMemoryStore(128)
	require.NoError(t, err)
	return newTestAppWithStore(t, cms, store, mutate...)
}

func newTestAppWithStore(t *testing.T, cms *fakeCMS, store cache.Store, mutate ...func(*SiteConfig)) *App {
	t.Helper()
	cfg := SiteConfig{
		Name:          "Test Site",
		URL:           "https://example.com",
		Description:   "A test site",
		WordPressURL:  "https://cms.test",
		WebhookSecret: "hook-secret",
		PreviewSecret: "preview-secret",
		SessionSecret: "0123456789abcdef0123456789abcdef",
		PostsPerPage:  2,
	}
	for _, fn := range mutate {
		fn(&cfg)
	}

	app, err := New(cfg,
		WithStore(store),
		WithHTTPClient(&http.Client{Transport: cmsTransport{cms}}),
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = app.Close() })
	return app
}

func get(t *testing.T, app *App, target string, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, target, nil)
	for _, c := range cookies {
		req.AddCookie(c)
	}
	rec := httptest.NewRecorder()
	app.Echo.ServeHTTP(rec, req)
	return rec
}

func TestHomeListsPostsWithPager(t *testing.T) {
	cms := newFakeCMS()
	app := newTestApp(t, cms)

	rec := get(t, app, "/")
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, `<a href="/posts/post-1/">Post “1”</a>`)
	assert.Contains(t, body, `<a href="/posts/post-2/">`)
	assert.NotContains(t, body, `/posts/post-3/`)
	assert.Contains(t, body, `<a href="/?page=2">2</a>`)
	assert.Contains(t, body, `<a href="/about/">About</a>`, "menu links are made relative")
	assert.Equal(t, "MISS", rec.Header().Get("X-Cache"))

	rec = get(t, app, "/?page=2")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `/posts/post-3/`)

	rec = get(t, app, "/?page=9")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestPostPage(t *testing.T) {
	app := newTestApp(t, newFakeCMS())

	rec := get(t, app, "/posts/post-2/")
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, `<h1>Post “2”</h1>`)
	assert.Contains(t, body, `by <a href="/author/ada/">Ada</a>`)
	assert.Contains(t, body, `<a class="category" href="/category/news/">News</a>`)
	assert.Contains(t, body, `<p>Body <a href="/about/">about</a></p>`)
	assert.Contains(t, body, `<meta property="og:type" content="article">`)
	assert.Contains(t, body, `"@type":"BlogPosting"`)
}

func TestMissingContentRendersNotFound(t *testing.T) {
	app := newTestApp(t, newFakeCMS())

	for _, target := range []string{"/posts/nope/", "/nope/", "/category/nope/", "/author/nope/", "/posts/?category=nope"} {
		rec := get(t, app, target)
		assert.Equal(t, http.StatusNotFound, rec.Code, target)
		assert.Contains(t, rec.Body.String(), "Page not found", target)
	}
}

func TestCMSOutageRendersServerError(t *testing.T) {
	cms := newFakeCMS()
	app := newTestApp(t, cms)
	cms.setDown(true)

	rec := get(t, app, "/posts/post-1/")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), "Something went wrong")

	// Listings degrade to an empty page instead.
	rec = get(t, app, "/")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "No posts found.")

	// The degraded page was not cached.
	cms.setDown(false)
	rec = get(t, app, "/")
	assert.Equal(t, "MISS", rec.Header().Get("X-Cache"))
	assert.Contains(t, rec.Body.String(), `/posts/post-1/`)
}

func TestCMSPage(t *testing.T) {
	app := newTestApp(t, newFakeCMS())

	rec := get(t, app, "/about/")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `<h1>About us</h1>`)
	assert.Contains(t, rec.Body.String(), `<p>We write.</p>`)
	assert.NotContains(t, rec.Body.String(), `class="byline"`)
}

func TestArchivesAndFilters(t *testing.T) {
	cms := newFakeCMS()
	app := newTestApp(t, cms)

	rec := get(t, app, "/category/news/")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Category: News")

	rec = get(t, app, "/author/ada/")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Posts by Ada")

	rec = get(t, app, "/posts/?category=news&search=go")
	require.Equal(t, http.StatusOK, rec.Code)

	rec = get(t, app, "/search/?q=hello")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `<meta name="robots" content="noindex">`)
	assert.Empty(t, rec.Header().Get("X-Cache"))
}

func TestTrailingSlashRedirect(t *testing.T) {
	app := newTestApp(t, newFakeCMS())

	rec := get(t, app, "/posts/post-1")
	assert.Equal(t, http.StatusMovedPermanently, rec.Code)
	assert.Equal(t, "/posts/post-1/", rec.Header().Get("Location"))
}

func TestPageCacheAndRevalidation(t *testing.T) {
	cms := newFakeCMS()
	app := newTestApp(t, cms)

	first := get(t, app, "/posts/post-1/")
	require.Equal(t, http.StatusOK, first.Code)
	assert.Equal(t, "MISS", first.Header().Get("X-Cache"))
	calls := cms.count(apiRoot + "posts")

	second := get(t, app, "/posts/post-1/")
	require.Equal(t, http.StatusOK, second.Code)
	assert.Equal(t, "HIT", second.Header().Get("X-Cache"))
	assert.Equal(t, first.Body.String(), second.Body.String())
	assert.Equal(t, calls, cms.count(apiRoot+"posts"), "a page hit makes no CMS calls")

	rec := postWebhook(t, app, "hook-secret", `{"type":"post","id":1}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"revalidated":true,"tags":["wordpress","posts","post-1"],"message":"Revalidated post (ID: 1) and related content"}`, rec.Body.String())

	third := get(t, app, "/posts/post-1/")
	assert.Equal(t, "MISS", third.Header().Get("X-Cache"))
	assert.Greater(t, cms.count(apiRoot+"posts"), calls)
}

func postWebhook(t *testing.T, app *App, secret, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/revalidate", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if secret != "" {
		req.Header.Set("x-webhook-secret", secret)
	}
	rec := httptest.NewRecorder()
	app.Echo.ServeHTTP(rec, req)
	return rec
}

func TestRevalidateRejectsBadSecret(t *testing.T) {
	app := newTestApp(t, newFakeCMS())

	rec := postWebhook(t, app, "wrong", `{"type":"post"}`)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "no-store", rec.Header().Get("Cache-Control"))
}

func TestRevalidateFailedAttemptsNeverBlockTheSecret(t *testing.T) {
	app := newTestApp(t, newFakeCMS())

	for i := 0; i < 6; i++ {
		rec := postWebhook(t, app, "wrong", `{"type":"post","id":1}`)
		assert.Equal(t, http.StatusUnauthorized, rec.Code, "attempt %d", i+1)
	}
	rec := postWebhook(t, app, "", `{"type":"post","id":1}`)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = postWebhook(t, app, "hook-secret", `{"type":"post","id":1}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"revalidated":true`)
}

func TestCategoryWebhookDropsArchivePage(t *testing.T) {
	cms := newFakeCMS()
	app := newTestApp(t, cms)

	require.Equal(t, "MISS", get(t, app, "/category/news/").Header().Get("X-Cache"))
	require.Equal(t, "HIT", get(t, app, "/category/news/").Header().Get("X-Cache"))

	// The archive carries the umbrella taxonomy tag the webhook derives.
	require.NoError(t, app.Cache.RevalidateTag(context.Background(), "terms"))
	require.Equal(t, "MISS", get(t, app, "/category/news/").Header().Get("X-Cache"))
	require.Equal(t, "HIT", get(t, app, "/category/news/").Header().Get("X-Cache"))
	calls := cms.count(apiRoot + "categories")

	rec := postWebhook(t, app, "hook-secret", `{"type":"term","subtype":"category","id":4}`)
	require.Equal(t, http.StatusOK, rec.Code)
	var resp struct {
		Tags []string `json:"tags"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Subset(t, resp.Tags, []string{"terms", "term-4", "categories", "category-4"})

	rec = get(t, app, "/category/news/")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "MISS", rec.Header().Get("X-Cache"))
	assert.Contains(t, rec.Body.String(), "Category: News")
	assert.Greater(t, cms.count(apiRoot+"categories"), calls)
}

func TestPageCacheIgnoresUnknownQueryParams(t *testing.T) {
	app := newTestApp(t, newFakeCMS())

	assert.Equal(t, "MISS", get(t, app, "/?utm_source=a").Header().Get("X-Cache"))
	assert.Equal(t, "HIT", get(t, app, "/?utm_source=b").Header().Get("X-Cache"))
	assert.Equal(t, "HIT", get(t, app, "/").Header().Get("X-Cache"))
	assert.Equal(t, "HIT", get(t, app, "/?page=1").Header().Get("X-Cache"))

	assert.Equal(t, "MISS", get(t, app, "/?page=2&utm_source=c").Header().Get("X-Cache"))
	assert.Equal(t, "HIT", get(t, app, "/?utm_source=d&page=2").Header().Get("X-Cache"))
}

func TestSQLiteCacheStaysBounded(t *testing.T) {
	store, err := cache.NewSQLiteStore(filepath.Join(t.TempDir(), "cache.db"), 8)
	require.NoError(t, err)
	app := newTestAppWithStore(t, newFakeCMS(), store)

	for i := 0; i < 30; i++ {
		rec := get(t, app, "/posts/?search=q"+strconv.Itoa(i))
		require.Equal(t, http.StatusOK, rec.Code)
	}
	n, err := store.Len(context.Background())
	require.NoError(t, err)
	assert.LessOrEqual(t, n, 8)

	assert.Equal(t, "HIT", get(t, app, "/posts/?search=q29").Header().Get("X-Cache"), "the newest page survives")
}

func TestHomePagerDuringOutage(t *testing.T) {
	cms := newFakeCMS()
	app := newTestApp(t, cms)
	cms.setDown(true)

	rec := get(t, app, "/?page=2")
	assert.Equal(t, http.StatusOK, rec.Code, "an outage is not past the last page")
	assert.Contains(t, rec.Body.String(), "No posts found.")

	cms.setDown(false)
	assert.Equal(t, "MISS", get(t, app, "/?page=2").Header().Get("X-Cache"), "the empty page was not cached")
}

func TestPreviewMode(t *testing.T) {
	cms := newFakeCMS()
	app := newTestApp(t, cms)

	rec := get(t, app, "/api/preview?secret=wrong&path=/posts/post-1/")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = get(t, app, "/api/preview?secret=preview-secret&path=/posts/post-1/")
	require.Equal(t, http.StatusTemporaryRedirect, rec.Code)
	assert.Equal(t, "/posts/post-1/", rec.Header().Get("Location"))
	cookies := rec.Result().Cookies()
	require.NotEmpty(t, cookies)

	// Warm the page cache without the cookie.
	get(t, app, "/posts/post-1/")
	calls := cms.count(apiRoot + "posts")

	rec = get(t, app, "/posts/post-1/", cookies...)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, rec.Header().Get("X-Cache"))
	assert.Equal(t, "no-store", rec.Header().Get("Cache-Control"))
	assert.Contains(t, rec.Body.String(), "preview-banner")
	assert.Greater(t, cms.count(apiRoot+"posts"), calls, "preview bypasses the data cache")

	rec = get(t, app, "/api/exit-preview", cookies...)
	assert.Equal(t, http.StatusTemporaryRedirect, rec.Code)
	assert.Equal(t, "/", rec.Header().Get("Location"))
}

func TestPreviewDisabledWithoutSecret(t *testing.T) {
	app := newTestApp(t, newFakeCMS(), func(c *SiteConfig) { c.PreviewSecret = "" })

	rec := get(t, app, "/api/preview?secret=&path=/")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestSitemap(t *testing.T) {
	cms := newFakeCMS()
	app := newTestApp(t, cms)

	rec := get(t, app, "/sitemap.xml")
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, `<loc>https://example.com/</loc>`)
	assert.Contains(t, body, `<loc>https://example.com/posts/</loc>`)
	assert.Contains(t, body, `<loc>https://example.com/posts/post-3/</loc>`)
	assert.Contains(t, body, `<lastmod>2024-04-03T10:00:00Z</lastmod>`)
	assert.Contains(t, body, `<loc>https://example.com/about/</loc>`)
	assert.Contains(t, body, `<loc>https://example.com/category/news/</loc>`)
	assert.Contains(t, body, `<loc>https://example.com/author/ada/</loc>`)
}

func TestSitemapDegradesToStaticURLs(t *testing.T) {
	cms := newFakeCMS()
	app := newTestApp(t, cms)
	cms.setDown(true)

	rec := get(t, app, "/sitemap.xml")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 2, strings.Count(rec.Body.String(), "<loc>"))
}

func TestFeedAndRobots(t *testing.T) {
	app := newTestApp(t, newFakeCMS())

	rec := get(t, app, "/feed.xml")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/rss+xml; charset=utf-8", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Body.String(), `<title>Post “1”</title>`)
	assert.Contains(t, rec.Body.String(), `<description>Excerpt 1</description>`)

	rec = get(t, app, "/robots.txt")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Sitemap: https://example.com/sitemap.xml")
}

func TestHealthAndMetrics(t *testing.T) {
	app := newTestApp(t, newFakeCMS())
	get(t, app, "/")

	rec := get(t, app, "/healthz")
	assert.Equal(t, "ok", rec.Body.String())

	rec = get(t, app, "/metrics")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `headpress_cms_requests_total{kind="posts",status="200"}`)
	assert.Contains(t, rec.Body.String(), `headpress_cache_lookups_total{layer="page",result="miss"}`)
}

func TestSafeRedirect(t *testing.T) {
	tests := []struct{ in, want string }{
		{"", "/"},
		{"/posts/a/", "/posts/a/"},
		{"//evil.com", "/"},
		{"/\\evil.com", "/"},
		{"https://evil.com", "/"},
	}
	for _, tt := range tests {
		if got := safeRedirect(tt.in); got != tt.want {
			t.Errorf("safeRedirect(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
