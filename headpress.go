// Package headpress is a headless-WordPress frontend built with Go, Echo,
// and templ. It renders posts, pages and taxonomy archives from the
// WordPress REST API, serves sitemap, RSS and robots.txt, and keeps a tag
// cache that the CMS invalidates through a webhook.
package headpress

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/eringen/headpress/blocks"
	"github.com/eringen/headpress/cache"
	"github.com/eringen/headpress/htmlmap"
	"github.com/eringen/headpress/metrics"
	"github.com/eringen/headpress/revalidate"
	"github.com/eringen/headpress/views"
	"github.com/eringen/headpress/wordpress"
)

// App is the central headpress application. It wires together the CMS
// client, the tag cache, the block renderer, handlers and middleware.
type App struct {
	Config  SiteConfig
	Echo    *echo.Echo
	Logger  *slog.Logger
	Client  *wordpress.Client
	Cache   *cache.TagCache
	Blocks  *blocks.Registry
	Metrics *metrics.Metrics

	registry       *prometheus.Registry
	store          cache.Store
	httpClient     *http.Client
	webhookLimiter *WebhookLimiter
	stopSweep      func()
	customRoutes   []func(*App)
}

// New validates cfg and builds an App ready to serve.
func New(cfg SiteConfig, opts ...Option) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	a := &App{
		Config: cfg,
		Echo:   echo.New(),
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.Logger == nil {
		a.Logger = NewLogger(os.Stdout, cfg.LogLevel)
	}

	a.registry = prometheus.NewRegistry()
	a.registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	a.Metrics = metrics.New(a.registry)

	if a.store == nil {
		store, err := newStore(cfg)
		if err != nil {
			return nil, err
		}
		a.store = store
	}
	if s, ok := a.store.(*cache.SQLiteStore); ok {
		a.stopSweep = s.StartSweeper(sweepInterval, a.Logger.With("component", "cache"))
	}
	a.Cache = cache.New(a.store, cfg.CacheTTL,
		cache.WithLogger(a.Logger.With("component", "cache")),
		cache.WithMetrics(a.Metrics),
	)

	if a.httpClient == nil {
		a.httpClient = &http.Client{Timeout: cfg.CMSTimeout}
	}
	a.Client = wordpress.NewClient(cfg.WordPressURL,
		wordpress.WithHTTPClient(a.httpClient),
		wordpress.WithCache(a.Cache),
		wordpress.WithLogger(a.Logger.With("component", "wordpress")),
		wordpress.WithMetrics(a.Metrics),
	)

	mapper, err := htmlmap.New(htmlmap.DefaultRules(cfg.WordPressURL)...)
	if err != nil {
		return nil, fmt.Errorf("headpress: html rules: %w", err)
	}
	a.Blocks = blocks.Default(mapper)

	a.webhookLimiter = NewWebhookLimiter(5, time.Minute)

	a.Echo.HideBanner = true
	a.Echo.HidePort = true
	a.setupMiddleware()
	a.setupRoutes()
	for _, fn := range a.customRoutes {
		fn(a)
	}
	return a, nil
}

// sweepInterval is how often a SQLite cache purges expired rows.
const sweepInterval = 10 * time.Minute

func newStore(cfg SiteConfig) (cache.Store, error) {
	if cfg.CachePath != "" {
		s, err := cache.NewSQLiteStore(cfg.CachePath, cfg.CacheSize)
		if err != nil {
			return nil, fmt.Errorf("headpress: open cache: %w", err)
		}
		return s, nil
	}
	s, err := cache.NewMemoryStore(cfg.CacheSize)
	if err != nil {
		return nil, fmt.Errorf("headpress: memory cache: %w", err)
	}
	return s, nil
}

// Start serves until ctx is cancelled, then shuts down gracefully.
func (a *App) Start(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		a.Logger.Info("listening", "addr", a.Config.Addr, "cms", a.Config.WordPressURL)
		if err := a.Echo.Start(a.Config.Addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return a.Echo.Shutdown(shutdownCtx)
}

func (a *App) setupRoutes() {
	e := a.Echo

	e.GET("/robots.txt", a.handleRobots)
	e.GET("/sitemap.xml", a.handleSitemap)
	e.GET("/feed.xml", a.handleFeed)
	e.GET("/healthz", handleHealth)
	e.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(a.registry, promhttp.HandlerOpts{})))

	hook := revalidate.NewHandler(a.Config.WebhookSecret, a.Cache,
		revalidate.WithLimiter(a.webhookLimiter),
		revalidate.WithLogger(a.Logger.With("component", "revalidate")),
		revalidate.WithMetrics(a.Metrics),
	)
	e.POST("/api/revalidate", hook.Handle)
	e.GET("/api/preview", a.handlePreview)
	e.GET("/api/exit-preview", handleExitPreview)

	pages := e.Group("", a.pageCache)
	pages.GET("/", a.handleHome)
	pages.GET("/posts/", a.handlePosts)
	pages.GET("/posts/:slug/", a.handlePost)
	pages.GET("/category/:slug/", a.handleCategory)
	pages.GET("/tag/:slug/", a.handleTag)
	pages.GET("/author/:slug/", a.handleAuthor)
	pages.GET("/:slug/", a.handlePage)

	// Search results are per query; not worth a page cache entry each.
	e.GET("/search/", a.handleSearch)
}

// Site returns the view-level site settings.
func (a *App) Site() views.SiteConfig {
	return views.SiteConfig{
		Name:        a.Config.Name,
		URL:         a.Config.URL,
		Description: a.Config.Description,
	}
}

// Close cleans up resources. Call this when the app is shutting down.
func (a *App) Close() error {
	if a.webhookLimiter != nil {
		a.webhookLimiter.Close()
	}
	if a.stopSweep != nil {
		a.stopSweep()
	}
	if a.Cache != nil {
		return a.Cache.Close()
	}
	return nil
}
