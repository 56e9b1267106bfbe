package views

import (
	"strings"

	"github.com/a-h/templ"

	"github.com/eringen/headpress/wordpress"
)

// Layout wraps body in the document shell: head metadata, the primary menu
// and the footer.
func Layout(cfg SiteConfig, meta PageMeta, chrome Chrome, body templ.Component) templ.Component {
	return component(func(p *printer) {
		title := meta.Title
		if title == "" {
			title = cfg.Name
		}
		desc := meta.Description
		if desc == "" {
			desc = cfg.Description
		}
		p.raw(`<!doctype html><html lang="en"><head><meta charset="utf-8">`)
		p.raw(`<meta name="viewport" content="width=device-width, initial-scale=1">`)
		p.raw(`<title>`)
		p.text(title)
		p.raw(`</title>`)
		if desc != "" {
			p.raw(`<meta name="description" content="`)
			p.text(desc)
			p.raw(`">`)
		}
		if meta.URL != "" {
			p.raw(`<link rel="canonical" href="`)
			p.href(meta.URL)
			p.raw(`"><meta property="og:url" content="`)
			p.href(meta.URL)
			p.raw(`">`)
		}
		if meta.NoIndex || chrome.Preview {
			p.raw(`<meta name="robots" content="noindex">`)
		}
		ogType := meta.OGType
		if ogType == "" {
			ogType = "website"
		}
		p.rawf(`<meta property="og:type" content="%s">`, templ.EscapeString(ogType))
		p.raw(`<meta property="og:title" content="`)
		p.text(title)
		p.raw(`"><meta property="og:site_name" content="`)
		p.text(cfg.Name)
		p.raw(`">`)
		if desc != "" {
			p.raw(`<meta property="og:description" content="`)
			p.text(desc)
			p.raw(`">`)
		}
		if meta.Image != "" {
			p.raw(`<meta property="og:image" content="`)
			p.href(meta.Image)
			p.raw(`">`)
		}
		p.raw(`<link rel="alternate" type="application/rss+xml" title="`)
		p.text(cfg.Name)
		p.raw(`" href="/feed.xml">`)
		jsonld := meta.JSONLD
		if jsonld == "" {
			jsonld = WebsiteJsonLD(cfg)
		}
		p.raw(`<script type="application/ld+json">`)
		p.raw(jsonld)
		p.raw(`</script></head><body>`)

		if chrome.Preview {
			p.raw(`<div class="preview-banner">Preview mode. <a href="/api/exit-preview">Exit preview</a></div>`)
		}
		p.raw(`<header class="site-header"><a class="site-title" href="/">`)
		p.text(cfg.Name)
		p.raw(`</a>`)
		if len(chrome.Menu) > 0 {
			p.raw(`<nav aria-label="Primary">`)
			p.render(Menu(chrome.Menu))
			p.raw(`</nav>`)
		}
		p.raw(`<form class="site-search" action="/search/" method="get" role="search"><input type="search" name="q" placeholder="Search" aria-label="Search"></form>`)
		p.raw(`</header><main>`)
		p.render(body)
		p.raw(`</main><footer class="site-footer"><a href="/feed.xml">RSS</a> <a href="/sitemap.xml">Sitemap</a></footer></body></html>`)
	})
}

// Menu renders a menu tree as nested lists.
func Menu(nodes []*wordpress.MenuNode) templ.Component {
	return component(func(p *printer) {
		p.raw(`<ul>`)
		for _, n := range nodes {
			classes := strings.Join(n.Classes, " ")
			if classes != "" {
				p.raw(`<li class="`)
				p.text(classes)
				p.raw(`">`)
			} else {
				p.raw(`<li>`)
			}
			p.raw(`<a href="`)
			p.href(n.URL)
			p.raw(`"`)
			if n.Target == "_blank" {
				p.raw(` target="_blank" rel="noopener noreferrer"`)
			}
			if n.AttrTitle != "" {
				p.raw(` title="`)
				p.text(n.AttrTitle)
				p.raw(`"`)
			}
			p.raw(`>`)
			p.text(Text(n.Title.Rendered))
			p.raw(`</a>`)
			if len(n.Children) > 0 {
				p.render(Menu(n.Children))
			}
			p.raw(`</li>`)
		}
		p.raw(`</ul>`)
	})
}
