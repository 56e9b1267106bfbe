package headpress

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"

	"github.com/eringen/headpress/cache"
)

// SiteConfig holds all configuration for a headpress site.
type SiteConfig struct {
	Name        string // Site name (default "Blog")
	URL         string `validate:"required,url"` // Canonical frontend URL (default "http://localhost:3000")
	Description string // Site description for RSS and meta tags

	WordPressURL string `validate:"required,url"` // CMS origin, without /wp-json
	MenuLocation string // Theme menu location rendered in the header (default "primary")

	Addr string // Listen address (default ":3000")

	WebhookSecret string // Shared secret for /api/revalidate; empty disables the check
	PreviewSecret string // Secret for /api/preview; empty disables preview mode
	SessionSecret string `validate:"required_with=PreviewSecret"`
	CookieSecure  bool   // Set true for HTTPS

	CachePath    string        // SQLite cache file; empty keeps the cache in memory
	CacheSize    int           `validate:"gte=0"` // Max cached entries in either store (default 2048)
	CacheTTL     time.Duration `validate:"gte=0"` // Entry lifetime (default 5min)
	PostsPerPage int           `validate:"gte=1,lte=100"`
	CMSTimeout   time.Duration // Per-request CMS timeout (default 10s)

	LogLevel string `validate:"omitempty,oneof=debug info warn error"`
}

func (c *SiteConfig) setDefaults() {
	if c.Name == "" {
		c.Name = "Blog"
	}
	if c.URL == "" {
		c.URL = "http://localhost:3000"
	}
	c.URL = strings.TrimRight(c.URL, "/")
	c.WordPressURL = strings.TrimRight(c.WordPressURL, "/")
	if c.MenuLocation == "" {
		c.MenuLocation = "primary"
	}
	if c.Addr == "" {
		c.Addr = ":3000"
	}
	if c.CacheSize == 0 {
		c.CacheSize = cache.DefaultMaxEntries
	}
	if c.CacheTTL == 0 {
		c.CacheTTL = 5 * time.Minute
	}
	if c.PostsPerPage == 0 {
		c.PostsPerPage = 10
	}
	if c.CMSTimeout == 0 {
		c.CMSTimeout = 10 * time.Second
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate applies defaults and checks the configuration.
func (c *SiteConfig) Validate() error {
	c.setDefaults()
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("headpress: invalid config: %w", err)
	}
	return nil
}

// LoadConfig reads the configuration from the environment after loading
// .env.local and .env. Variables already set in the environment win, then
// .env.local, then .env. Missing files are ignored.
func LoadConfig() (SiteConfig, error) {
	for _, f := range []string{".env.local", ".env"} {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return SiteConfig{}, fmt.Errorf("headpress: load %s: %w", f, err)
		}
	}
	return configFromEnv(os.Getenv)
}

func configFromEnv(getenv func(string) string) (SiteConfig, error) {
	cfg := SiteConfig{
		Name:          getenv("SITE_NAME"),
		URL:           getenv("SITE_URL"),
		Description:   getenv("SITE_DESCRIPTION"),
		WordPressURL:  getenv("WORDPRESS_URL"),
		MenuLocation:  getenv("MENU_LOCATION"),
		Addr:          getenv("ADDR"),
		WebhookSecret: getenv("WEBHOOK_SECRET"),
		PreviewSecret: getenv("PREVIEW_SECRET"),
		SessionSecret: getenv("SESSION_SECRET"),
		CachePath:     getenv("CACHE_PATH"),
		LogLevel:      strings.ToLower(getenv("LOG_LEVEL")),
	}
	var errs []error
	if v := getenv("COOKIE_SECURE"); v != "" {
		b, err := strconv.ParseBool(v)
		errs = append(errs, envErr("COOKIE_SECURE", err))
		cfg.CookieSecure = b
	}
	if v := getenv("CACHE_SIZE"); v != "" {
		n, err := strconv.Atoi(v)
		errs = append(errs, envErr("CACHE_SIZE", err))
		cfg.CacheSize = n
	}
	if v := getenv("POSTS_PER_PAGE"); v != "" {
		n, err := strconv.Atoi(v)
		errs = append(errs, envErr("POSTS_PER_PAGE", err))
		cfg.PostsPerPage = n
	}
	if v := getenv("CACHE_TTL"); v != "" {
		d, err := time.ParseDuration(v)
		errs = append(errs, envErr("CACHE_TTL", err))
		cfg.CacheTTL = d
	}
	if v := getenv("CMS_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		errs = append(errs, envErr("CMS_TIMEOUT", err))
		cfg.CMSTimeout = d
	}
	if err := errors.Join(errs...); err != nil {
		return cfg, err
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func envErr(key string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("headpress: %s: %w", key, err)
}

// NewLogger returns a JSON slog logger at the named level.
func NewLogger(w io.Writer, level string) *slog.Logger {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: lvl}))
}

// Option configures additional App behavior.
type Option func(*App)

// WithCustomRoutes registers additional routes on the Echo instance.
// The callback receives the App after the built-in routes are set up.
func WithCustomRoutes(fn func(*App)) Option {
	return func(a *App) {
		a.customRoutes = append(a.customRoutes, fn)
	}
}

// WithLogger replaces the JSON stdout logger.
func WithLogger(l *slog.Logger) Option {
	return func(a *App) { a.Logger = l }
}

// WithHTTPClient sets the client used for CMS requests.
func WithHTTPClient(hc *http.Client) Option {
	return func(a *App) { a.httpClient = hc }
}

// WithStore replaces the cache store chosen from CachePath.
func WithStore(s cache.Store) Option {
	return func(a *App) { a.store = s }
}
