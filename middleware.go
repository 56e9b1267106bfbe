package headpress

import (
	"bytes"
	"context"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/gorilla/sessions"
	"github.com/labstack/echo-contrib/session"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/eringen/headpress/cache"
)

const (
	sessionName    = "headpress_preview"
	previewKey     = "preview"
	cacheHeader    = "X-Cache"
	maxCachedBytes = 4 << 20
)

func (a *App) setupMiddleware() {
	e := a.Echo

	e.IPExtractor = echo.ExtractIPFromXFFHeader(
		echo.TrustLoopback(true),
		echo.TrustLinkLocal(false),
		echo.TrustPrivateNet(true),
	)

	e.HTTPErrorHandler = a.httpErrorHandler

	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogStatus:   true,
		LogURI:      true,
		LogMethod:   true,
		LogLatency:  true,
		LogRemoteIP: true,
		HandleError: true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			level := slog.LevelInfo
			if v.Status >= 500 {
				level = slog.LevelError
			}
			a.Logger.LogAttrs(c.Request().Context(), level, "request",
				slog.String("method", v.Method),
				slog.String("uri", v.URI),
				slog.Int("status", v.Status),
				slog.Duration("latency", v.Latency),
				slog.String("ip", v.RemoteIP),
				slog.String("cache", c.Response().Header().Get(cacheHeader)),
			)
			return nil
		},
	}))

	e.Use(middleware.Recover())

	e.Use(middleware.GzipWithConfig(middleware.GzipConfig{
		Level: 5,
		Skipper: func(c echo.Context) bool {
			return c.Request().URL.Path == "/metrics"
		},
	}))

	e.Use(middleware.SecureWithConfig(middleware.SecureConfig{
		XSSProtection:         "1; mode=block",
		ContentTypeNosniff:    "nosniff",
		XFrameOptions:         "DENY",
		ReferrerPolicy:        "strict-origin-when-cross-origin",
		ContentSecurityPolicy: "default-src 'self'; script-src 'self' 'unsafe-inline'; style-src 'self' 'unsafe-inline'; img-src 'self' https: data:; font-src 'self' https:; frame-src https:; media-src 'self' https:",
		HSTSMaxAge:            31536000,
		HSTSExcludeSubdomains: false,
	}))

	e.Use(session.Middleware(a.newSessionStore()))
	e.Use(previewMiddleware)

	e.Use(middleware.AddTrailingSlashWithConfig(middleware.TrailingSlashConfig{
		RedirectCode: http.StatusMovedPermanently,
		Skipper: func(c echo.Context) bool {
			path := c.Request().URL.Path
			return strings.HasPrefix(path, "/api/") ||
				path == "/sitemap.xml" || path == "/feed.xml" || path == "/robots.txt" ||
				path == "/healthz" || path == "/metrics"
		},
	}))

	e.Use(cacheControlMiddleware)
}

func cacheControlMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		path := c.Request().URL.Path
		h := c.Response().Header()
		switch {
		case isPreview(c), strings.HasPrefix(path, "/api/"), path == "/metrics", path == "/healthz":
			h.Set("Cache-Control", "no-store")
		case path == "/sitemap.xml" || path == "/feed.xml" || path == "/robots.txt":
			h.Set("Cache-Control", "public, max-age=3600")
		default:
			// Pages change on webhook; let shared caches revalidate quickly.
			h.Set("Cache-Control", "public, max-age=60, stale-while-revalidate=300")
		}
		return next(c)
	}
}

func (a *App) newSessionStore() *sessions.CookieStore {
	secret := a.Config.SessionSecret
	if secret == "" {
		// Preview is disabled without a secret; the store still needs a key.
		secret = a.Config.WordPressURL + a.Config.URL
	}
	store := sessions.NewCookieStore([]byte(secret))
	store.Options = &sessions.Options{
		Path:     "/",
		HttpOnly: true,
		MaxAge:   60 * 60,
		SameSite: http.SameSiteLaxMode,
		Secure:   a.Config.CookieSecure,
	}
	return store
}

// previewMiddleware marks preview requests and makes them bypass the cache.
func previewMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		if !hasPreviewCookie(c) {
			return next(c)
		}
		sess, err := session.Get(sessionName, c)
		if err != nil {
			return next(c)
		}
		if on, ok := sess.Values[previewKey].(bool); ok && on {
			c.Set(previewKey, true)
			req := c.Request()
			c.SetRequest(req.WithContext(cache.WithBypass(req.Context())))
		}
		return next(c)
	}
}

func hasPreviewCookie(c echo.Context) bool {
	_, err := c.Cookie(sessionName)
	return err == nil
}

// isPreview reports whether the request runs in preview mode.
func isPreview(c echo.Context) bool {
	on, _ := c.Get(previewKey).(bool)
	return on
}

func setPreviewSession(c echo.Context, on bool) error {
	sess, err := session.Get(sessionName, c)
	if err != nil {
		return err
	}
	if on {
		sess.Values[previewKey] = true
	} else {
		delete(sess.Values, previewKey)
		sess.Options.MaxAge = -1
	}
	return sess.Save(c.Request(), c.Response())
}

// pageCache serves rendered pages from the tag cache. A miss runs the handler
// with a tag collector in the request context and stores a 200 response under
// pageKey(url) with every tag the handler's fetches carried. Pages rendered from
// degraded fetches are served but not stored.
func (a *App) pageCache(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		req := c.Request()
		if req.Method != http.MethodGet || cache.Bypassed(req.Context()) {
			return next(c)
		}
		key := pageKey(req.URL)
		if e, ok := a.Cache.Lookup(req.Context(), key); ok {
			for k, vs := range e.Header {
				c.Response().Header()[k] = vs
			}
			c.Response().Header().Set(cacheHeader, "HIT")
			return c.Blob(http.StatusOK, e.Header.Get(echo.HeaderContentType), e.Body)
		}

		gen := a.Cache.Generation()
		ctx := cache.WithCollector(req.Context())
		c.SetRequest(req.WithContext(ctx))
		c.Response().Header().Set(cacheHeader, "MISS")

		rec := &bodyRecorder{ResponseWriter: c.Response().Writer}
		c.Response().Writer = rec
		err := next(c)
		c.Response().Writer = rec.ResponseWriter

		if err != nil || c.Response().Status != http.StatusOK || rec.overflow || rec.buf.Len() == 0 || cache.Incomplete(ctx) {
			return err
		}
		a.storePage(ctx, gen, key, c.Response().Header().Get(echo.HeaderContentType), rec.buf.Bytes())
		return nil
	}
}

// pageParams are the query parameters page handlers read. Anything else in
// the query (tracking params and the like) renders the same page.
var pageParams = []string{"author", "category", "page", "search", "tag"}

// pageKey is the page cache key for u: the path plus the pageParams present,
// in sorted order.
func pageKey(u *url.URL) string {
	q := u.Query()
	kept := url.Values{}
	for _, name := range pageParams {
		v := q.Get(name)
		if name == "page" {
			// Same fallback as pageParam: anything but 2+ is page 1.
			if n, err := strconv.Atoi(v); err == nil && n > 1 {
				kept.Set(name, strconv.Itoa(n))
			}
			continue
		}
		if v != "" {
			kept.Set(name, v)
		}
	}
	key := cache.PagePrefix + u.EscapedPath()
	if len(kept) > 0 {
		key += "?" + kept.Encode()
	}
	return key
}

// storePage caches a rendered page unless a revalidation ran while it was
// being rendered.
func (a *App) storePage(ctx context.Context, gen uint64, key, contentType string, body []byte) {
	a.Cache.PutIfCurrent(ctx, cache.Entry{
		Key:    key,
		Body:   bytes.Clone(body),
		Header: http.Header{echo.HeaderContentType: {contentType}},
		Tags:   cache.Collected(ctx),
	}, gen)
}

// bodyRecorder tees the response body so it can be cached.
type bodyRecorder struct {
	http.ResponseWriter
	buf      bytes.Buffer
	overflow bool
}

func (r *bodyRecorder) Write(b []byte) (int, error) {
	if !r.overflow {
		if r.buf.Len()+len(b) > maxCachedBytes {
			r.overflow = true
			r.buf.Reset()
		} else {
			r.buf.Write(b)
		}
	}
	return r.ResponseWriter.Write(b)
}

func (r *bodyRecorder) Unwrap() http.ResponseWriter { return r.ResponseWriter }
