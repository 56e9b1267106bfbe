package wordpress

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Time is a WordPress timestamp. The REST API emits local times without a
// zone ("2024-01-15T10:00:00"); the *_gmt fields carry the same layout in UTC.
type Time struct {
	time.Time
}

const restTimeLayout = "2006-01-02T15:04:05"

func (t *Time) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	if s == "" || s == "null" {
		return nil
	}
	for _, layout := range []string{time.RFC3339, restTimeLayout} {
		if parsed, err := time.Parse(layout, s); err == nil {
			t.Time = parsed
			return nil
		}
	}
	return fmt.Errorf("wordpress: unrecognized time %q", s)
}

func (t Time) MarshalJSON() ([]byte, error) {
	if t.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(t.UTC().Format(restTimeLayout))
}

// Rendered wraps the HTML WordPress renders for titles, content and excerpts.
// The HTML is sanitized by the CMS.
type Rendered struct {
	Rendered  string `json:"rendered"`
	Protected bool   `json:"protected,omitempty"`
}

// Post is a wp/v2/posts record.
type Post struct {
	ID            int64           `json:"id"`
	Date          Time            `json:"date_gmt"`
	Modified      Time            `json:"modified_gmt"`
	Slug          string          `json:"slug"`
	Status        string          `json:"status"`
	Type          string          `json:"type"`
	Link          string          `json:"link"`
	Title         Rendered        `json:"title"`
	Content       Rendered        `json:"content"`
	Excerpt       Rendered        `json:"excerpt"`
	Author        int64           `json:"author"`
	FeaturedMedia int64           `json:"featured_media"`
	Sticky        bool            `json:"sticky"`
	Format        string          `json:"format"`
	Categories    []int64         `json:"categories"`
	Tags          []int64         `json:"tags"`
	Blocks        []Block         `json:"blocks,omitempty"`
	Elementor     json.RawMessage `json:"elementor_data,omitempty"`
}

// Page is a wp/v2/pages record.
type Page struct {
	ID            int64           `json:"id"`
	Date          Time            `json:"date_gmt"`
	Modified      Time            `json:"modified_gmt"`
	Slug          string          `json:"slug"`
	Status        string          `json:"status"`
	Link          string          `json:"link"`
	Title         Rendered        `json:"title"`
	Content       Rendered        `json:"content"`
	Excerpt       Rendered        `json:"excerpt"`
	Author        int64           `json:"author"`
	FeaturedMedia int64           `json:"featured_media"`
	Parent        int64           `json:"parent"`
	MenuOrder     int             `json:"menu_order"`
	Template      string          `json:"template"`
	Blocks        []Block         `json:"blocks,omitempty"`
	Elementor     json.RawMessage `json:"elementor_data,omitempty"`
}

// Category is a wp/v2/categories term.
type Category struct {
	ID          int64  `json:"id"`
	Count       int    `json:"count"`
	Description string `json:"description"`
	Link        string `json:"link"`
	Name        string `json:"name"`
	Slug        string `json:"slug"`
	Taxonomy    string `json:"taxonomy"`
	Parent      int64  `json:"parent"`
}

// Tag is a wp/v2/tags term.
type Tag struct {
	ID          int64  `json:"id"`
	Count       int    `json:"count"`
	Description string `json:"description"`
	Link        string `json:"link"`
	Name        string `json:"name"`
	Slug        string `json:"slug"`
	Taxonomy    string `json:"taxonomy"`
}

// Author is a wp/v2/users record as exposed to unauthenticated readers.
type Author struct {
	ID          int64             `json:"id"`
	Name        string            `json:"name"`
	URL         string            `json:"url"`
	Description string            `json:"description"`
	Link        string            `json:"link"`
	Slug        string            `json:"slug"`
	AvatarURLs  map[string]string `json:"avatar_urls"`
}

// FeaturedMedia is a wp/v2/media attachment.
type FeaturedMedia struct {
	ID           int64    `json:"id"`
	Title        Rendered `json:"title"`
	AltText      string   `json:"alt_text"`
	SourceURL    string   `json:"source_url"`
	MediaDetails struct {
		Width  int `json:"width"`
		Height int `json:"height"`
	} `json:"media_details"`
}

// Block is one parsed Gutenberg block as exposed by the headless plugin.
type Block struct {
	Name        string         `json:"blockName"`
	Attrs       map[string]any `json:"attrs"`
	InnerBlocks []Block        `json:"innerBlocks"`
	InnerHTML   string         `json:"innerHTML"`
	Rendered    string         `json:"rendered,omitempty"`
}

// SlugEntry is one row of a slug sweep, used for sitemaps.
type SlugEntry struct {
	Slug     string `json:"slug"`
	Modified Time   `json:"modified_gmt"`
}
