package pubfront

import (
	"time"

	"github.com/rs/zerolog"

	"github.com/eringen/pubfront/comments"
	"github.com/eringen/pubfront/content"
	"github.com/eringen/pubfront/views"
)

// SiteConfig holds all configuration for a pubfront site.
type SiteConfig struct {
	Name        string // Site name (default "Blog")
	URL         string // Canonical URL (default "http://localhost:3000")
	Description string // Site description for RSS and meta tags
	Author      string // Author name for JSON-LD
	Logo        string // Header logo URL (default "/public/logo.svg")

	Addr string // Listen address (default ":3000")

	// Content selects the hosted content store. When ProjectID is empty the
	// local SQLite backend at DatabasePath is used instead.
	Content      content.Config
	DatabasePath string // Local backend SQLite path (default "data/content.db")
	AssetsDir    string // Local backend image assets (default "data/assets")

	RevalidateAfter time.Duration // Page reuse window (default 60s)
	RedisURL        string        // Optional shared page store, e.g. redis://localhost:6379/0
	RedisTTL        time.Duration // Page lifetime in Redis (default 24h)

	SessionSecret string // Required: session cookie secret
	CookieSecure  bool   // Set true for HTTPS

	// CommentEndpoint is where the server-side comment form posts. Empty
	// means the comment goes straight to the content backend.
	CommentEndpoint string
	FormIdleTimeout time.Duration // Forget idle comment forms after (default 30m)
	SubmitLimit     int           // Comment submissions per IP per SubmitWindow (default 5)
	SubmitWindow    time.Duration // default 1m

	Location *time.Location // Time zone of post bylines (default time.Local)
	LogLevel string         // zerolog level (default "info")
}

func (c *SiteConfig) setDefaults() {
	if c.Name == "" {
		c.Name = "Blog"
	}
	if c.URL == "" {
		c.URL = "http://localhost:3000"
	}
	if c.Addr == "" {
		c.Addr = ":3000"
	}
	if c.DatabasePath == "" {
		c.DatabasePath = "data/content.db"
	}
	if c.AssetsDir == "" {
		c.AssetsDir = "data/assets"
	}
	if c.RevalidateAfter <= 0 {
		c.RevalidateAfter = 60 * time.Second
	}
	if c.RedisTTL <= 0 {
		c.RedisTTL = 24 * time.Hour
	}
	if c.FormIdleTimeout <= 0 {
		c.FormIdleTimeout = 30 * time.Minute
	}
	if c.SubmitLimit <= 0 {
		c.SubmitLimit = 5
	}
	if c.SubmitWindow <= 0 {
		c.SubmitWindow = time.Minute
	}
	if c.Location == nil {
		c.Location = time.Local
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
}

// Views returns the subset of the config the page components need.
func (c SiteConfig) Views() views.SiteConfig {
	return views.SiteConfig{
		Name:        c.Name,
		URL:         c.URL,
		Description: c.Description,
		Author:      c.Author,
		Logo:        c.Logo,
		Location:    c.Location,
	}
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

// WithStaticDir sets the directory for user-owned static assets (default "public").
func WithStaticDir(dir string) Option {
	return func(a *App) {
		a.staticDir = dir
	}
}

// WithBackend replaces the configured content backend.
func WithBackend(b content.Backend) Option {
	return func(a *App) {
		a.Source = b
	}
}

// WithPageStore replaces the page store chosen from RedisURL.
func WithPageStore(s PageStore) Option {
	return func(a *App) {
		a.pageStore = s
	}
}

// WithCommentEndpoint replaces the endpoint the comment form submits to.
func WithCommentEndpoint(ep comments.Endpoint) Option {
	return func(a *App) {
		a.endpoint = ep
	}
}

// WithViews replaces the page templates. Nil fields keep the defaults.
func WithViews(v ViewFuncs) Option {
	return func(a *App) {
		a.Views = v
	}
}

// WithLogger sets the application logger.
func WithLogger(l zerolog.Logger) Option {
	return func(a *App) {
		a.Logger = l
		a.loggerSet = true
	}
}

// WithPageClock replaces time.Now when ageing cached pages.
func WithPageClock(now func() time.Time) Option {
	return func(a *App) {
		a.now = now
	}
}
