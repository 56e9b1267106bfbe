package headpress

import (
	"net/http"

	"github.com/a-h/templ"
	"github.com/labstack/echo/v4"

	"github.com/eringen/headpress/cache"
	"github.com/eringen/headpress/views"
	"github.com/eringen/headpress/wordpress"
)

// Render writes a templ component as an HTTP 200 HTML response.
func Render(c echo.Context, cmp templ.Component) error {
	return RenderStatus(c, http.StatusOK, cmp)
}

// RenderStatus writes a templ component with a specific HTTP status code.
func RenderStatus(c echo.Context, code int, cmp templ.Component) error {
	c.Response().Header().Set(echo.HeaderContentType, echo.MIMETextHTMLCharsetUTF8)
	c.Response().WriteHeader(code)
	return cmp.Render(c.Request().Context(), c.Response().Writer)
}

// renderPage wraps body in the site layout and writes it as a 200.
func (a *App) renderPage(c echo.Context, meta views.PageMeta, body templ.Component) error {
	chrome := views.Chrome{
		Menu:    a.menu(c),
		Preview: isPreview(c),
	}
	return Render(c, views.Layout(a.Site(), meta, chrome, body))
}

// menu loads the header menu. A missing location just renders no menu.
func (a *App) menu(c echo.Context) []*wordpress.MenuNode {
	ctx := c.Request().Context()
	nodes, err := a.Client.Menu(ctx, a.Config.MenuLocation)
	if err != nil {
		a.Logger.Debug("menu unavailable", "location", a.Config.MenuLocation, "error", err)
		if !wordpress.IsNotFound(err) {
			cache.MarkIncomplete(ctx)
		}
		return nil
	}
	relativize(a.Config.WordPressURL, nodes)
	return nodes
}

func relativize(cmsBase string, nodes []*wordpress.MenuNode) {
	for _, n := range nodes {
		n.URL = wordpress.RelativeURL(cmsBase, n.URL)
		relativize(cmsBase, n.Children)
	}
}
