package views

import (
	"encoding/json"
	"html"
	"net/url"
	"path"
	"strings"
	"unicode/utf8"

	"github.com/microcosm-cc/bluemonday"

	"github.com/eringen/headpress/htmlmap"
	"github.com/eringen/headpress/wordpress"
)

// DescriptionLimit is the rune length descriptions are cut to.
const DescriptionLimit = 160

var strict = bluemonday.StrictPolicy()

// BuildURL joins path segments onto a base URL, ensuring a trailing slash.
func BuildURL(base string, pathSegments ...string) string {
	u, err := url.Parse(base)
	if err != nil {
		return base
	}
	u.Path = path.Join(u.Path, path.Join(pathSegments...))
	if len(pathSegments) > 0 && !strings.HasSuffix(u.Path, "/") {
		u.Path += "/"
	}
	return u.String()
}

// SiteURL makes a site path from PostPath or PagePath absolute.
func SiteURL(base, sitePath string) string {
	return strings.TrimRight(base, "/") + sitePath
}

// PostPath is the site path of a post.
func PostPath(slug string) string { return "/posts/" + url.PathEscape(slug) + "/" }

// PagePath is the site path of a CMS page.
func PagePath(slug string) string { return "/" + url.PathEscape(slug) + "/" }

// ArchivePath is the site path of a "category", "tag" or "author" archive.
func ArchivePath(kind, slug string) string {
	return "/" + kind + "/" + url.PathEscape(slug) + "/"
}

// Text turns CMS HTML (titles, excerpts) into plain text.
func Text(s string) string {
	s = html.UnescapeString(strict.Sanitize(s))
	return strings.Join(strings.Fields(s), " ")
}

// Description is Text cut to DescriptionLimit runes.
func Description(s string) string {
	s = Text(s)
	if utf8.RuneCountInString(s) <= DescriptionLimit {
		return s
	}
	r := []rune(s)
	return strings.TrimSpace(string(r[:DescriptionLimit-1])) + "…"
}

// WebsiteJsonLD produces a Schema.org WebSite JSON-LD block using cfg values.
func WebsiteJsonLD(cfg SiteConfig) string {
	data := map[string]any{
		"@context": "https://schema.org",
		"@type":    "WebSite",
		"name":     cfg.Name,
		"url":      BuildURL(cfg.URL),
		"potentialAction": map[string]string{
			"@type":       "SearchAction",
			"target":      BuildURL(cfg.URL, "search") + "?q={search_term_string}",
			"query-input": "required name=search_term_string",
		},
	}
	if cfg.Description != "" {
		data["description"] = cfg.Description
	}
	return marshal(data)
}

// BlogPostingJsonLD produces a Schema.org BlogPosting JSON-LD block for a post.
func BlogPostingJsonLD(cfg SiteConfig, post wordpress.Post, author *wordpress.Author, image string) string {
	postURL := SiteURL(cfg.URL, PostPath(post.Slug))
	data := map[string]any{
		"@context":      "https://schema.org",
		"@type":         "BlogPosting",
		"headline":      Text(post.Title.Rendered),
		"description":   Description(post.Excerpt.Rendered),
		"datePublished": post.Date.Format("2006-01-02T15:04:05Z07:00"),
		"dateModified":  post.Modified.Format("2006-01-02T15:04:05Z07:00"),
		"url":           postURL,
		"publisher": map[string]string{
			"@type": "Organization",
			"name":  cfg.Name,
		},
		"mainEntityOfPage": map[string]string{
			"@type": "WebPage",
			"@id":   postURL,
		},
	}
	if author != nil && author.Name != "" {
		data["author"] = map[string]string{
			"@type": "Person",
			"name":  author.Name,
		}
	}
	if image != "" {
		data["image"] = image
	}
	return marshal(data)
}

func marshal(v any) string {
	// json.Marshal escapes <, > and &, so the result is safe inside <script>.
	b, err := json.Marshal(v)
	if err != nil {
		return "{}"
	}
	return string(b)
}

// contentImage returns the first absolute image URL in body, for posts and
// pages without featured media.
func contentImage(body string) string {
	src := htmlmap.FirstImage(body)
	if strings.HasPrefix(src, "https://") || strings.HasPrefix(src, "http://") {
		return src
	}
	return ""
}

// PostMeta builds the metadata of a post page. The featured image is
// preferred; otherwise the first image in the content is used.
func PostMeta(cfg SiteConfig, post wordpress.Post, author *wordpress.Author, media *wordpress.FeaturedMedia) PageMeta {
	image := ""
	if media != nil {
		image = media.SourceURL
	}
	if image == "" {
		image = contentImage(post.Content.Rendered)
	}
	desc := Description(post.Excerpt.Rendered)
	if desc == "" {
		desc = Description(post.Content.Rendered)
	}
	return PageMeta{
		Title:       Text(post.Title.Rendered) + " | " + cfg.Name,
		Description: desc,
		URL:         SiteURL(cfg.URL, PostPath(post.Slug)),
		OGType:      "article",
		Image:       image,
		JSONLD:      BlogPostingJsonLD(cfg, post, author, image),
	}
}

// PageMetaFor builds the metadata of a CMS page.
func PageMetaFor(cfg SiteConfig, page wordpress.Page) PageMeta {
	desc := Description(page.Excerpt.Rendered)
	if desc == "" {
		desc = Description(page.Content.Rendered)
	}
	return PageMeta{
		Title:       Text(page.Title.Rendered) + " | " + cfg.Name,
		Description: desc,
		URL:         SiteURL(cfg.URL, PagePath(page.Slug)),
		OGType:      "website",
		Image:       contentImage(page.Content.Rendered),
	}
}

// ListMeta builds the metadata of a listing page.
func ListMeta(cfg SiteConfig, title, description, canonical string) PageMeta {
	if description == "" {
		description = cfg.Description
	}
	full := cfg.Name
	if title != "" {
		full = title + " | " + cfg.Name
	}
	return PageMeta{
		Title:       full,
		Description: Description(description),
		URL:         canonical,
		OGType:      "website",
	}
}
