package views

import (
	"github.com/a-h/templ"

	"github.com/eringen/headpress/wordpress"
)

// SiteConfig holds the site-wide settings every page renders with.
type SiteConfig struct {
	Name        string
	URL         string
	Description string
}

// PageMeta carries per-page OpenGraph and SEO metadata into the <head> template.
type PageMeta struct {
	Title       string
	Description string
	URL         string // canonical + og:url
	OGType      string // "website" or "article"
	Image       string
	JSONLD      string
	NoIndex     bool
}

// Chrome is what the layout needs besides the page body.
type Chrome struct {
	Menu    []*wordpress.MenuNode
	Preview bool
}

// Listing is one page of posts with the data to render its pager.
type Listing struct {
	Heading     string
	Intro       string
	Posts       []wordpress.Post
	Current     int
	TotalPages  int
	Path        string // listing path the pager links to
	Query       map[string]string
	EmptyNotice string
}

// Article is a single post or page ready to render.
type Article struct {
	Title      string
	Date       wordpress.Time
	Modified   wordpress.Time
	Body       templ.Component
	Author     *wordpress.Author
	Media      *wordpress.FeaturedMedia
	Categories []wordpress.Category
	Tags       []wordpress.Tag
	IsPost     bool
}
