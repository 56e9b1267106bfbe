package headpress

import (
	"encoding/xml"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/eringen/headpress/views"
	"github.com/eringen/headpress/wordpress"
)

type rssXML struct {
	XMLName xml.Name   `xml:"rss"`
	Version string     `xml:"version,attr"`
	Channel rssChannel `xml:"channel"`
}

type rssChannel struct {
	Title         string    `xml:"title"`
	Link          string    `xml:"link"`
	Description   string    `xml:"description"`
	LastBuildDate string    `xml:"lastBuildDate,omitempty"`
	Items         []rssItem `xml:"item"`
}

type rssItem struct {
	Title       string `xml:"title"`
	Link        string `xml:"link"`
	Description string `xml:"description"`
	PubDate     string `xml:"pubDate,omitempty"`
	GUID        string `xml:"guid"`
}

func (a *App) handleFeed(c echo.Context) error {
	res := a.Client.Posts(c.Request().Context(), 1, a.Config.PostsPerPage, wordpress.Filter{})
	return a.renderRSS(c, res.Data)
}

func (a *App) renderRSS(c echo.Context, posts []wordpress.Post) error {
	base := a.Config.URL
	items := make([]rssItem, 0, len(posts))
	var latest time.Time
	for _, p := range posts {
		pubDate := ""
		if !p.Date.IsZero() {
			pubDate = p.Date.UTC().Format(time.RFC1123Z)
		}
		if p.Modified.After(latest) {
			latest = p.Modified.Time
		}
		postURL := views.BuildURL(base, "posts", p.Slug)
		items = append(items, rssItem{
			Title:       views.Text(p.Title.Rendered),
			Link:        postURL,
			Description: views.Description(p.Excerpt.Rendered),
			PubDate:     pubDate,
			GUID:        postURL,
		})
	}
	feed := rssXML{
		Version: "2.0",
		Channel: rssChannel{
			Title:       a.Config.Name,
			Link:        views.BuildURL(base, ""),
			Description: a.Config.Description,
			Items:       items,
		},
	}
	if !latest.IsZero() {
		feed.Channel.LastBuildDate = latest.UTC().Format(time.RFC1123Z)
	}
	c.Response().Header().Set(echo.HeaderContentType, "application/rss+xml; charset=utf-8")
	c.Response().WriteHeader(http.StatusOK)
	if _, err := c.Response().Write([]byte(xml.Header)); err != nil {
		return err
	}
	return xml.NewEncoder(c.Response()).Encode(feed)
}
