package headpress

import (
	"bytes"
	"context"
	"encoding/xml"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"golang.org/x/sync/errgroup"

	"github.com/eringen/headpress/views"
	"github.com/eringen/headpress/wordpress"
)

type sitemapURLSet struct {
	XMLName xml.Name     `xml:"urlset"`
	XMLNS   string       `xml:"xmlns,attr"`
	URLs    []sitemapURL `xml:"url"`
}

type sitemapURL struct {
	Loc     string `xml:"loc"`
	LastMod string `xml:"lastmod,omitempty"`
}

// sitemapURLs lists the home page, the post index, every post and page, and
// the category, tag and author archives that have posts. Sweeps degrade to
// what they gathered, so a CMS outage still yields the static URLs.
func (a *App) sitemapURLs(ctx context.Context) []sitemapURL {
	var (
		posts, pages []wordpress.SlugEntry
		categories   []wordpress.Category
		tags         []wordpress.Tag
		authors      []wordpress.Author
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		posts = a.Client.AllPostSlugs(gctx)
		return nil
	})
	g.Go(func() error {
		pages = a.Client.AllPageSlugs(gctx)
		return nil
	})
	g.Go(func() error {
		categories = a.Client.Categories(gctx)
		return nil
	})
	g.Go(func() error {
		tags = a.Client.Tags(gctx)
		return nil
	})
	g.Go(func() error {
		authors = a.Client.Authors(gctx)
		return nil
	})
	_ = g.Wait()

	base := a.Config.URL
	urls := []sitemapURL{
		{Loc: views.BuildURL(base, "")},
		{Loc: views.BuildURL(base, "posts")},
	}
	for _, p := range posts {
		urls = append(urls, sitemapURL{Loc: views.SiteURL(base, views.PostPath(p.Slug)), LastMod: lastMod(p.Modified)})
	}
	for _, p := range pages {
		urls = append(urls, sitemapURL{Loc: views.SiteURL(base, views.PagePath(p.Slug)), LastMod: lastMod(p.Modified)})
	}
	for _, c := range categories {
		if c.Count > 0 {
			urls = append(urls, sitemapURL{Loc: views.SiteURL(base, views.ArchivePath("category", c.Slug))})
		}
	}
	for _, t := range tags {
		if t.Count > 0 {
			urls = append(urls, sitemapURL{Loc: views.SiteURL(base, views.ArchivePath("tag", t.Slug))})
		}
	}
	for _, u := range authors {
		urls = append(urls, sitemapURL{Loc: views.SiteURL(base, views.ArchivePath("author", u.Slug))})
	}
	return urls
}

func lastMod(t wordpress.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

// SitemapXML renders the sitemap document.
func (a *App) SitemapXML(ctx context.Context) ([]byte, error) {
	sitemap := sitemapURLSet{
		XMLNS: "http://www.sitemaps.org/schemas/sitemap/0.9",
		URLs:  a.sitemapURLs(ctx),
	}
	var buf bytes.Buffer
	buf.WriteString(xml.Header)
	enc := xml.NewEncoder(&buf)
	enc.Indent("", "  ")
	if err := enc.Encode(sitemap); err != nil {
		return nil, fmt.Errorf("headpress: encode sitemap: %w", err)
	}
	return buf.Bytes(), nil
}

func (a *App) handleSitemap(c echo.Context) error {
	body, err := a.SitemapXML(c.Request().Context())
	if err != nil {
		return err
	}
	return c.Blob(http.StatusOK, "application/xml; charset=utf-8", body)
}

func (a *App) handleRobots(c echo.Context) error {
	robots := "User-agent: *\nAllow: /\nDisallow: /api/\n\nSitemap: " + a.Config.URL + "/sitemap.xml\n"
	return c.String(http.StatusOK, robots)
}
