package views

import (
	"net/url"
	"sort"
	"strconv"

	"github.com/a-h/templ"

	"github.com/eringen/headpress/pagination"
	"github.com/eringen/headpress/wordpress"
)

// ListingPage renders a page of post summaries followed by its pager.
func ListingPage(l Listing) templ.Component {
	return component(func(p *printer) {
		p.raw(`<section class="listing">`)
		if l.Heading != "" {
			p.raw(`<h1>`)
			p.text(l.Heading)
			p.raw(`</h1>`)
		}
		if l.Intro != "" {
			p.raw(`<p class="intro">`)
			p.text(Text(l.Intro))
			p.raw(`</p>`)
		}
		if len(l.Posts) == 0 {
			notice := l.EmptyNotice
			if notice == "" {
				notice = "No posts found."
			}
			p.raw(`<p class="empty">`)
			p.text(notice)
			p.raw(`</p>`)
		}
		for _, post := range l.Posts {
			p.render(PostSummary(post))
		}
		p.render(Pager(l.Path, l.Query, l.Current, l.TotalPages))
		p.raw(`</section>`)
	})
}

// PostSummary renders one post in a listing.
func PostSummary(post wordpress.Post) templ.Component {
	return component(func(p *printer) {
		p.raw(`<article class="summary"><h2><a href="`)
		p.href(PostPath(post.Slug))
		p.raw(`">`)
		p.text(Text(post.Title.Rendered))
		p.raw(`</a></h2>`)
		if !post.Date.IsZero() {
			p.rawf(`<time datetime="%s">%s</time>`,
				post.Date.Format("2006-01-02"), templ.EscapeString(post.Date.Format("January 2, 2006")))
		}
		if excerpt := Description(post.Excerpt.Rendered); excerpt != "" {
			p.raw(`<p>`)
			p.text(excerpt)
			p.raw(`</p>`)
		}
		p.raw(`</article>`)
	})
}

// PageHref is the link to page n of a listing, keeping the other query
// parameters. Page 1 has no page parameter.
func PageHref(path string, query map[string]string, n int) string {
	q := url.Values{}
	keys := make([]string, 0, len(query))
	for k := range query {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if k != "page" && query[k] != "" {
			q.Set(k, query[k])
		}
	}
	if n > 1 {
		q.Set("page", strconv.Itoa(n))
	}
	if enc := q.Encode(); enc != "" {
		return path + "?" + enc
	}
	return path
}

// Pager renders the pagination range for a listing. Nothing is rendered for
// a single page.
func Pager(path string, query map[string]string, current, total int) templ.Component {
	if total <= 1 {
		return templ.NopComponent
	}
	return component(func(p *printer) {
		p.raw(`<nav class="pager" aria-label="Pagination"><ul>`)
		if current > 1 {
			p.raw(`<li><a rel="prev" href="`)
			p.href(PageHref(path, query, current-1))
			p.raw(`">Previous</a></li>`)
		}
		for _, item := range pagination.Range(current, total, pagination.DefaultSiblings) {
			switch {
			case item.IsEllipsis():
				p.raw(`<li class="ellipsis" aria-hidden="true">…</li>`)
			case item.Page() == current:
				p.rawf(`<li><span aria-current="page">%d</span></li>`, item.Page())
			default:
				p.raw(`<li><a href="`)
				p.href(PageHref(path, query, item.Page()))
				p.rawf(`">%d</a></li>`, item.Page())
			}
		}
		if current < total {
			p.raw(`<li><a rel="next" href="`)
			p.href(PageHref(path, query, current+1))
			p.raw(`">Next</a></li>`)
		}
		p.raw(`</ul></nav>`)
	})
}

// ArticlePage renders a single post or CMS page.
func ArticlePage(a Article) templ.Component {
	return component(func(p *printer) {
		p.raw(`<article class="entry"><header><h1>`)
		p.text(a.Title)
		p.raw(`</h1>`)
		if a.IsPost {
			p.raw(`<p class="byline">`)
			if !a.Date.IsZero() {
				p.rawf(`<time datetime="%s">%s</time>`,
					a.Date.Format("2006-01-02"), templ.EscapeString(a.Date.Format("January 2, 2006")))
			}
			if a.Author != nil {
				p.raw(` by <a href="`)
				p.href(ArchivePath("author", a.Author.Slug))
				p.raw(`">`)
				p.text(a.Author.Name)
				p.raw(`</a>`)
			}
			p.raw(`</p>`)
		}
		p.raw(`</header>`)
		if a.Media != nil && a.Media.SourceURL != "" {
			p.raw(`<figure class="featured"><img src="`)
			p.href(a.Media.SourceURL)
			p.raw(`" alt="`)
			p.text(a.Media.AltText)
			p.raw(`"`)
			if a.Media.MediaDetails.Width > 0 && a.Media.MediaDetails.Height > 0 {
				p.rawf(` width="%d" height="%d"`, a.Media.MediaDetails.Width, a.Media.MediaDetails.Height)
			}
			p.raw(`></figure>`)
		}
		p.raw(`<div class="entry-content">`)
		p.render(a.Body)
		p.raw(`</div>`)
		if len(a.Categories) > 0 || len(a.Tags) > 0 {
			p.raw(`<footer class="terms">`)
			for _, c := range a.Categories {
				p.raw(`<a class="category" href="`)
				p.href(ArchivePath("category", c.Slug))
				p.raw(`">`)
				p.text(Text(c.Name))
				p.raw(`</a> `)
			}
			for _, t := range a.Tags {
				p.raw(`<a class="tag" href="`)
				p.href(ArchivePath("tag", t.Slug))
				p.raw(`">#`)
				p.text(Text(t.Name))
				p.raw(`</a> `)
			}
			p.raw(`</footer>`)
		}
		p.raw(`</article>`)
	})
}

// SearchForm renders the search box, prefilled with the current query.
func SearchForm(query string) templ.Component {
	return component(func(p *printer) {
		p.raw(`<form class="search" action="/search/" method="get" role="search"><input type="search" name="q" value="`)
		p.text(query)
		p.raw(`" aria-label="Search"><button type="submit">Search</button></form>`)
	})
}

// NotFound renders the 404 body.
func NotFound() templ.Component {
	return component(func(p *printer) {
		p.raw(`<section class="error"><h1>Page not found</h1><p>The page you requested does not exist.</p><p><a href="/">Back home</a></p></section>`)
	})
}

// ServerError renders the 5xx body.
func ServerError() templ.Component {
	return component(func(p *printer) {
		p.raw(`<section class="error"><h1>Something went wrong</h1><p>Please try again in a moment.</p></section>`)
	})
}

// Concat renders components one after another.
func Concat(cs ...templ.Component) templ.Component {
	return component(func(p *printer) {
		for _, c := range cs {
			p.render(c)
		}
	})
}
