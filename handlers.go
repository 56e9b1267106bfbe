package headpress

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/a-h/templ"
	"github.com/labstack/echo/v4"
	"golang.org/x/sync/errgroup"

	"github.com/eringen/headpress/cache"
	"github.com/eringen/headpress/views"
	"github.com/eringen/headpress/wordpress"
)

func (a *App) handleHome(c echo.Context) error {
	page := pageParam(c)
	res := a.Client.Posts(c.Request().Context(), page, a.Config.PostsPerPage, wordpress.Filter{})
	// Past the last page is a 404; an unreachable CMS is not.
	if page > 1 && len(res.Data) == 0 && !res.Degraded {
		return echo.ErrNotFound
	}
	meta := views.ListMeta(a.Site(), "", a.Config.Description, views.BuildURL(a.Config.URL))
	if page > 1 {
		meta = views.ListMeta(a.Site(), "Page "+strconv.Itoa(page), a.Config.Description, views.BuildURL(a.Config.URL))
	}
	return a.renderPage(c, meta, views.ListingPage(views.Listing{
		Posts:      res.Data,
		Current:    page,
		TotalPages: res.Headers.TotalPages,
		Path:       "/",
	}))
}

// handlePosts lists posts narrowed by author, category, tag and search. The
// taxonomy filters take an id or a slug.
func (a *App) handlePosts(c echo.Context) error {
	ctx := c.Request().Context()
	page := pageParam(c)
	filter := wordpress.Filter{Search: strings.TrimSpace(c.QueryParam("search"))}
	query := map[string]string{"search": filter.Search}

	var err error
	if filter.Author, err = a.resolve(c, "author", func(slug string) (int64, bool, error) {
		v, ok, err := a.Client.AuthorBySlug(ctx, slug)
		return v.ID, ok, err
	}, query); err != nil {
		return err
	}
	if filter.Category, err = a.resolve(c, "category", func(slug string) (int64, bool, error) {
		v, ok, err := a.Client.CategoryBySlug(ctx, slug)
		return v.ID, ok, err
	}, query); err != nil {
		return err
	}
	if filter.Tag, err = a.resolve(c, "tag", func(slug string) (int64, bool, error) {
		v, ok, err := a.Client.TagBySlug(ctx, slug)
		return v.ID, ok, err
	}, query); err != nil {
		return err
	}

	res := a.Client.Posts(ctx, page, a.Config.PostsPerPage, filter)
	meta := views.ListMeta(a.Site(), "Posts", "", views.BuildURL(a.Config.URL, "posts"))
	return a.renderPage(c, meta, views.ListingPage(views.Listing{
		Heading:    "Posts",
		Posts:      res.Data,
		Current:    page,
		TotalPages: res.Headers.TotalPages,
		Path:       "/posts/",
		Query:      query,
	}))
}

// resolve reads a taxonomy filter parameter. Numbers are ids; anything else
// is looked up by slug, and an unknown slug is a 404.
func (a *App) resolve(c echo.Context, param string, bySlug func(string) (int64, bool, error), query map[string]string) (int64, error) {
	v := strings.TrimSpace(c.QueryParam(param))
	if v == "" {
		return 0, nil
	}
	query[param] = v
	if id, err := strconv.ParseInt(v, 10, 64); err == nil && id > 0 {
		return id, nil
	}
	id, found, err := bySlug(v)
	if err != nil {
		return 0, err
	}
	if !found {
		return 0, echo.ErrNotFound
	}
	return id, nil
}

func (a *App) handlePost(c echo.Context) error {
	ctx := c.Request().Context()
	post, found, err := a.Client.PostBySlug(ctx, c.Param("slug"))
	if err != nil {
		return err
	}
	if !found {
		return echo.ErrNotFound
	}

	article := views.Article{
		Title:    views.Text(post.Title.Rendered),
		Date:     post.Date,
		Modified: post.Modified,
		Body:     a.Blocks.Body(post.Blocks, post.Elementor, post.Content.Rendered),
		IsPost:   true,
	}

	// Related records are decoration; a failure only hides them.
	g, gctx := errgroup.WithContext(ctx)
	if post.Author > 0 {
		g.Go(func() error {
			if author, err := a.Client.AuthorByID(gctx, post.Author); err == nil {
				article.Author = &author
			} else {
				a.Logger.Warn("post author unavailable", "post", post.ID, "error", err)
				cache.MarkIncomplete(ctx)
			}
			return nil
		})
	}
	if post.FeaturedMedia > 0 {
		g.Go(func() error {
			if media, err := a.Client.FeaturedMediaByID(gctx, post.FeaturedMedia); err == nil {
				article.Media = &media
			} else {
				a.Logger.Warn("featured media unavailable", "post", post.ID, "error", err)
				cache.MarkIncomplete(ctx)
			}
			return nil
		})
	}
	g.Go(func() error {
		article.Categories = a.Client.CategoriesByPost(gctx, post.ID)
		return nil
	})
	g.Go(func() error {
		article.Tags = a.Client.TagsByPost(gctx, post.ID)
		return nil
	})
	_ = g.Wait()

	meta := views.PostMeta(a.Site(), post, article.Author, article.Media)
	return a.renderPage(c, meta, views.ArticlePage(article))
}

func (a *App) handlePage(c echo.Context) error {
	page, found, err := a.Client.PageBySlug(c.Request().Context(), c.Param("slug"))
	if err != nil {
		return err
	}
	if !found {
		return echo.ErrNotFound
	}
	return a.renderPage(c, views.PageMetaFor(a.Site(), page), views.ArticlePage(views.Article{
		Title:    views.Text(page.Title.Rendered),
		Date:     page.Date,
		Modified: page.Modified,
		Body:     a.Blocks.Body(page.Blocks, page.Elementor, page.Content.Rendered),
	}))
}

func (a *App) handleCategory(c echo.Context) error {
	cat, found, err := a.Client.CategoryBySlug(c.Request().Context(), c.Param("slug"))
	if err != nil {
		return err
	}
	if !found {
		return echo.ErrNotFound
	}
	return a.archive(c, "Category: "+views.Text(cat.Name), cat.Description,
		views.ArchivePath("category", cat.Slug), wordpress.Filter{Category: cat.ID})
}

func (a *App) handleTag(c echo.Context) error {
	tag, found, err := a.Client.TagBySlug(c.Request().Context(), c.Param("slug"))
	if err != nil {
		return err
	}
	if !found {
		return echo.ErrNotFound
	}
	return a.archive(c, "Tag: "+views.Text(tag.Name), tag.Description,
		views.ArchivePath("tag", tag.Slug), wordpress.Filter{Tag: tag.ID})
}

func (a *App) handleAuthor(c echo.Context) error {
	author, found, err := a.Client.AuthorBySlug(c.Request().Context(), c.Param("slug"))
	if err != nil {
		return err
	}
	if !found {
		return echo.ErrNotFound
	}
	return a.archive(c, "Posts by "+author.Name, author.Description,
		views.ArchivePath("author", author.Slug), wordpress.Filter{Author: author.ID})
}

func (a *App) archive(c echo.Context, heading, intro, path string, filter wordpress.Filter) error {
	page := pageParam(c)
	res := a.Client.Posts(c.Request().Context(), page, a.Config.PostsPerPage, filter)
	meta := views.ListMeta(a.Site(), heading, intro, views.BuildURL(a.Config.URL, path))
	return a.renderPage(c, meta, views.ListingPage(views.Listing{
		Heading:    heading,
		Intro:      intro,
		Posts:      res.Data,
		Current:    page,
		TotalPages: res.Headers.TotalPages,
		Path:       path,
	}))
}

func (a *App) handleSearch(c echo.Context) error {
	q := strings.TrimSpace(c.QueryParam("q"))
	meta := views.ListMeta(a.Site(), "Search", "", views.BuildURL(a.Config.URL, "search"))
	meta.NoIndex = true
	if q == "" {
		return a.renderPage(c, meta, views.SearchForm(""))
	}
	page := pageParam(c)
	res := a.Client.Posts(c.Request().Context(), page, a.Config.PostsPerPage, wordpress.Filter{Search: q})
	return a.renderPage(c, meta, views.Concat(
		views.SearchForm(q),
		views.ListingPage(views.Listing{
			Heading:     "Results for “" + q + "”",
			Posts:       res.Data,
			Current:     page,
			TotalPages:  res.Headers.TotalPages,
			Path:        "/search/",
			Query:       map[string]string{"q": q},
			EmptyNotice: "Nothing matched your search.",
		}),
	))
}

func handleHealth(c echo.Context) error {
	return c.String(http.StatusOK, "ok")
}

// handlePreview turns on preview mode for this browser and redirects to the
// requested path.
func (a *App) handlePreview(c echo.Context) error {
	if a.Config.PreviewSecret == "" || !secretsEqual(c.QueryParam("secret"), a.Config.PreviewSecret) {
		return c.JSON(http.StatusUnauthorized, map[string]string{"message": "Invalid preview secret"})
	}
	if err := setPreviewSession(c, true); err != nil {
		return err
	}
	return c.Redirect(http.StatusTemporaryRedirect, safeRedirect(c.QueryParam("path")))
}

func handleExitPreview(c echo.Context) error {
	if err := setPreviewSession(c, false); err != nil {
		return err
	}
	return c.Redirect(http.StatusTemporaryRedirect, safeRedirect(c.QueryParam("path")))
}

func (a *App) httpErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}
	var he *echo.HTTPError
	isHTTP := errors.As(err, &he)
	if (isHTTP && he.Code == http.StatusNotFound) || wordpress.IsNotFound(err) {
		_ = a.renderError(c, http.StatusNotFound, views.NotFound())
		return
	}
	code := http.StatusInternalServerError
	if isHTTP {
		code = he.Code
	}
	if code >= 500 {
		a.Logger.Error("server error", "uri", c.Request().RequestURI, "error", err)
		_ = a.renderError(c, code, views.ServerError())
		return
	}
	a.Echo.DefaultHTTPErrorHandler(err, c)
}

// renderError renders without the menu so a CMS outage cannot fail twice.
func (a *App) renderError(c echo.Context, code int, body templ.Component) error {
	meta := views.PageMeta{Title: http.StatusText(code) + " | " + a.Config.Name, NoIndex: true}
	c.Response().Header().Set("Cache-Control", "no-store")
	return RenderStatus(c, code, views.Layout(a.Site(), meta, views.Chrome{Preview: isPreview(c)}, body))
}
