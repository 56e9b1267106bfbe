package views

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/a-h/templ"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eringen/headpress/wordpress"
)

func renderString(t *testing.T, c templ.Component) string {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, c.Render(context.Background(), &buf))
	return buf.String()
}

func TestBuildURL(t *testing.T) {
	tests := []struct {
		base string
		segs []string
		want string
	}{
		{"https://example.com", nil, "https://example.com"},
		{"https://example.com", []string{"posts", "hello"}, "https://example.com/posts/hello/"},
		{"https://example.com/blog/", []string{"about"}, "https://example.com/blog/about/"},
	}
	for _, tt := range tests {
		if got := BuildURL(tt.base, tt.segs...); got != tt.want {
			t.Errorf("BuildURL(%q, %v) = %q, want %q", tt.base, tt.segs, got, tt.want)
		}
	}
}

func TestText(t *testing.T) {
	assert.Equal(t, "Don’t panic & relax", Text("<p>Don&#8217;t <strong>panic</strong> &amp; relax</p>\n"))
	assert.Equal(t, "", Text(""))
}

func TestDescriptionTruncates(t *testing.T) {
	long := "<p>" + strings.Repeat("word ", 60) + "</p>"
	got := Description(long)
	assert.Equal(t, DescriptionLimit, utf8.RuneCountInString(got))
	assert.True(t, strings.HasSuffix(got, "…"))

	assert.Equal(t, "short", Description("<p>short</p>"))
}

func TestPageHref(t *testing.T) {
	q := map[string]string{"search": "go", "page": "3", "tag": ""}
	assert.Equal(t, "/posts/?search=go", PageHref("/posts/", q, 1))
	assert.Equal(t, "/posts/?page=2&search=go", PageHref("/posts/", q, 2))
	assert.Equal(t, "/", PageHref("/", nil, 1))
}

func TestPager(t *testing.T) {
	assert.Empty(t, renderString(t, Pager("/", nil, 1, 1)))

	got := renderString(t, Pager("/", nil, 5, 10))
	assert.Contains(t, got, `<a rel="prev" href="/?page=4">Previous</a>`)
	assert.Contains(t, got, `<span aria-current="page">5</span>`)
	assert.Contains(t, got, `<a href="/">1</a>`)
	assert.Contains(t, got, `<a href="/?page=10">10</a>`)
	assert.Equal(t, 2, strings.Count(got, `class="ellipsis"`))
	assert.NotContains(t, got, `>3</a>`)
}

func TestLayoutEscapesMetadata(t *testing.T) {
	cfg := SiteConfig{Name: "Site", URL: "https://example.com", Description: "Default"}
	meta := PageMeta{Title: `Tom & "Jerry"`, URL: "https://example.com/posts/x/", OGType: "article"}
	got := renderString(t, Layout(cfg, meta, Chrome{}, templ.Raw("<p>body</p>")))

	assert.Contains(t, got, `<title>Tom &amp; &#34;Jerry&#34;</title>`)
	assert.Contains(t, got, `<meta name="description" content="Default">`)
	assert.Contains(t, got, `<link rel="canonical" href="https://example.com/posts/x/">`)
	assert.Contains(t, got, `<meta property="og:type" content="article">`)
	assert.Contains(t, got, `<main><p>body</p></main>`)
	assert.NotContains(t, got, "noindex")
	assert.NotContains(t, got, "preview-banner")
}

func TestLayoutPreview(t *testing.T) {
	got := renderString(t, Layout(SiteConfig{Name: "S"}, PageMeta{}, Chrome{Preview: true}, templ.NopComponent))
	assert.Contains(t, got, "preview-banner")
	assert.Contains(t, got, `<meta name="robots" content="noindex">`)
}

func TestMenuNesting(t *testing.T) {
	tree := []*wordpress.MenuNode{
		{MenuItem: wordpress.MenuItem{ID: 1, Title: wordpress.Rendered{Rendered: "About"}, URL: "/about/"},
			Children: []*wordpress.MenuNode{
				{MenuItem: wordpress.MenuItem{ID: 2, Title: wordpress.Rendered{Rendered: "Team &amp; Co"}, URL: "/team/", Target: "_blank"}},
			}},
		{MenuItem: wordpress.MenuItem{ID: 3, Title: wordpress.Rendered{Rendered: "Evil"}, URL: "javascript:alert(1)"}},
	}
	got := renderString(t, Menu(tree))
	assert.Equal(t, `<ul><li><a href="/about/">About</a>`+
		`<ul><li><a href="/team/" target="_blank" rel="noopener noreferrer">Team &amp; Co</a></li></ul></li>`+
		`<li><a href="about:invalid#TemplFailedSanitizationURL">Evil</a></li></ul>`, got)
}

func TestBlogPostingJsonLD(t *testing.T) {
	cfg := SiteConfig{Name: "Site", URL: "https://example.com"}
	post := wordpress.Post{
		Slug:    "hello",
		Title:   wordpress.Rendered{Rendered: "Hello </script>"},
		Excerpt: wordpress.Rendered{Rendered: "<p>Intro</p>"},
	}
	raw := BlogPostingJsonLD(cfg, post, &wordpress.Author{Name: "Ada"}, "https://cdn.example.com/a.jpg")
	assert.NotContains(t, raw, "</script>")

	var data map[string]any
	require.NoError(t, json.Unmarshal([]byte(raw), &data))
	assert.Equal(t, "Hello </script>", data["headline"])
	assert.Equal(t, "Intro", data["description"])
	assert.Equal(t, "https://example.com/posts/hello/", data["url"])
	assert.Equal(t, "https://cdn.example.com/a.jpg", data["image"])
	assert.Equal(t, "Ada", data["author"].(map[string]any)["name"])
}

func TestMetaImageFallsBackToContent(t *testing.T) {
	cfg := SiteConfig{Name: "Site", URL: "https://example.com"}
	post := wordpress.Post{
		Slug:    "hello",
		Title:   wordpress.Rendered{Rendered: "Hello"},
		Content: wordpress.Rendered{Rendered: `<p>x</p><img src="https://cms.test/wp-content/uploads/a.jpg"><img src="https://cms.test/b.jpg">`},
	}

	meta := PostMeta(cfg, post, nil, nil)
	assert.Equal(t, "https://cms.test/wp-content/uploads/a.jpg", meta.Image)
	assert.Contains(t, meta.JSONLD, `"image":"https://cms.test/wp-content/uploads/a.jpg"`)
	assert.Equal(t, "https://example.com/posts/hello/", meta.URL)

	meta = PostMeta(cfg, post, nil, &wordpress.FeaturedMedia{SourceURL: "https://cdn.example.com/f.jpg"})
	assert.Equal(t, "https://cdn.example.com/f.jpg", meta.Image, "featured media wins")

	page := wordpress.Page{Slug: "about", Content: wordpress.Rendered{Rendered: `<img src="/relative.png">`}}
	meta = PageMetaFor(cfg, page)
	assert.Empty(t, meta.Image, "relative sources are not usable as og:image")
	assert.Equal(t, "https://example.com/about/", meta.URL)
}

func TestSitePaths(t *testing.T) {
	assert.Equal(t, "/posts/a%20b/", PostPath("a b"))
	assert.Equal(t, "/about/", PagePath("about"))
	assert.Equal(t, "/category/news/", ArchivePath("category", "news"))
	assert.Equal(t, "https://example.com/about/", SiteURL("https://example.com/", PagePath("about")))
}

func TestArticlePage(t *testing.T) {
	got := renderString(t, ArticlePage(Article{
		Title:      "Post",
		IsPost:     true,
		Author:     &wordpress.Author{Name: "Ada", Slug: "ada"},
		Categories: []wordpress.Category{{Name: "News", Slug: "news"}},
		Body:       templ.Raw("<p>content</p>"),
	}))
	assert.Contains(t, got, `by <a href="/author/ada/">Ada</a>`)
	assert.Contains(t, got, `<div class="entry-content"><p>content</p></div>`)
	assert.Contains(t, got, `<a class="category" href="/category/news/">News</a>`)
}
