// Package pubfront is a blog front end built with Go, Echo, and templ. It
// renders posts held in a headless content store, prerenders every known
// post at startup, reuses rendered pages for a short window while
// refreshing them in the background, and takes reader comments that wait
// for approval in the content store.
package pubfront

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/a-h/templ"
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog"

	"github.com/eringen/pubfront/comments"
	"github.com/eringen/pubfront/content"
	"github.com/eringen/pubfront/views"
)

const (
	homeKey         = "home"
	shutdownTimeout = 10 * time.Second
)

func postKey(slug string) string {
	return "post:" + slug
}

// ViewFuncs holds the templ components the App renders pages with.
// Fields left nil fall back to the views package.
type ViewFuncs struct {
	Home            func(site views.SiteConfig, posts []content.Post, images content.ImageResolver) templ.Component
	Post            func(site views.SiteConfig, post *content.Post, images content.ImageResolver, section views.CommentSection) templ.Component
	CommentFragment func(section views.CommentSection) templ.Component
	NotFound        func(site views.SiteConfig) templ.Component
	ServerError     func(site views.SiteConfig) templ.Component
}

// DefaultViews returns the views package components.
func DefaultViews() ViewFuncs {
	return ViewFuncs{
		Home:            views.Home,
		Post:            views.PostPage,
		CommentFragment: views.CommentFragment,
		NotFound:        views.NotFound,
		ServerError:     views.ServerError,
	}
}

func (v ViewFuncs) withDefaults() ViewFuncs {
	d := DefaultViews()
	if v.Home == nil {
		v.Home = d.Home
	}
	if v.Post == nil {
		v.Post = d.Post
	}
	if v.CommentFragment == nil {
		v.CommentFragment = d.CommentFragment
	}
	if v.NotFound == nil {
		v.NotFound = d.NotFound
	}
	if v.ServerError == nil {
		v.ServerError = d.ServerError
	}
	return v
}

// App is the central pubfront application. It wires together the content
// backend, page cache, comment forms, handlers, and middleware.
type App struct {
	Config  SiteConfig
	Echo    *echo.Echo
	Logger  zerolog.Logger
	Source  content.Backend
	Store   *Store // set when the local SQLite backend is in use
	Pages   *PageCache
	Forms   *comments.Registry
	Metrics *Metrics
	Views   ViewFuncs

	registry      *prometheus.Registry
	submitLimiter *SubmitLimiter
	pageStore     PageStore
	endpoint      comments.Endpoint
	customRoutes  []func(*App)
	staticDir     string
	now           func() time.Time
	loggerSet     bool
	initialized   bool
	closers       []func() error
}

// New creates a new pubfront App with the given configuration.
func New(cfg SiteConfig, opts ...Option) *App {
	cfg.setDefaults()

	a := &App{
		Config:    cfg,
		Echo:      echo.New(),
		staticDir: "public",
		now:       time.Now,
	}
	a.Echo.HideBanner = true

	for _, opt := range opts {
		opt(a)
	}
	a.Views = a.Views.withDefaults()

	if !a.loggerSet {
		level, err := zerolog.ParseLevel(cfg.LogLevel)
		if err != nil {
			level = zerolog.InfoLevel
		}
		a.Logger = zerolog.New(os.Stderr).Level(level).With().Timestamp().Logger()
	}
	return a
}

// Init opens the content backend and page store and sets up middleware and
// routes. It does not fetch any content. Calling it twice is a no-op.
func (a *App) Init(ctx context.Context) error {
	if a.initialized {
		return nil
	}
	if a.Config.SessionSecret == "" {
		return fmt.Errorf("pubfront: SessionSecret is required")
	}

	if err := a.openBackend(); err != nil {
		return err
	}
	if a.pageStore == nil {
		if a.Config.RedisURL != "" {
			rs, err := OpenRedisPageStore(ctx, a.Config.RedisURL, a.Config.RedisTTL)
			if err != nil {
				return err
			}
			a.pageStore = rs
			a.closers = append(a.closers, rs.Close)
		} else {
			a.pageStore = NewMemoryPageStore()
		}
	}

	a.registry = prometheus.NewRegistry()
	a.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	a.Metrics = NewMetrics(a.registry)

	a.Pages = NewPageCache(a.pageStore, a.buildPage, a.Config.RevalidateAfter,
		WithClock(a.now),
		WithCacheLogger(a.Logger.With().Str("component", "pages").Logger()),
		WithCacheMetrics(a.Metrics),
	)

	if a.endpoint == nil {
		if a.Config.CommentEndpoint != "" {
			a.endpoint = comments.NewHTTPEndpoint(a.Config.CommentEndpoint)
		} else {
			a.endpoint = comments.EndpointFunc(a.submitToBackend)
		}
	}
	a.Forms = comments.NewRegistry(a.endpoint, a.Config.FormIdleTimeout,
		a.Logger.With().Str("component", "comments").Logger())
	a.submitLimiter = NewSubmitLimiter(a.Config.SubmitLimit, a.Config.SubmitWindow)

	a.setupMiddleware()
	a.setupRoutes()
	for _, fn := range a.customRoutes {
		fn(a)
	}
	a.initialized = true
	return nil
}

func (a *App) openBackend() error {
	if a.Source != nil {
		return nil
	}
	if a.Config.Content.ProjectID != "" {
		client, err := content.NewClient(a.Config.Content,
			content.WithLogger(a.Logger.With().Str("component", "content").Logger()))
		if err != nil {
			return fmt.Errorf("pubfront: content client: %w", err)
		}
		a.Source = client
		return nil
	}
	store, err := NewStore(a.Config.DatabasePath)
	if err != nil {
		return fmt.Errorf("pubfront: init store: %w", err)
	}
	a.Store = store
	a.Source = store
	a.closers = append(a.closers, store.Close)
	return nil
}

// Build lists every post and prerenders it along with the home page. Any
// failure aborts the build.
func (a *App) Build(ctx context.Context) (Paths, error) {
	if err := a.Init(ctx); err != nil {
		return Paths{}, err
	}
	paths, err := StaticPaths(ctx, a.Source)
	if err != nil {
		return Paths{}, err
	}
	keys := make([]string, 0, len(paths.Params)+1)
	keys = append(keys, homeKey)
	for _, p := range paths.Params {
		keys = append(keys, postKey(p.Slug))
	}
	if err := a.Pages.Prerender(ctx, keys...); err != nil {
		return Paths{}, err
	}
	a.Logger.Info().Int("posts", len(paths.Params)).Str("fallback", paths.Fallback.String()).Msg("prerendered pages")
	return paths, nil
}

// Start builds the site and serves it until ctx is cancelled.
func (a *App) Start(ctx context.Context) error {
	if _, err := a.Build(ctx); err != nil {
		return err
	}

	errCh := make(chan error, 1)
	go func() {
		a.Logger.Info().Str("addr", a.Config.Addr).Msg("listening")
		errCh <- a.Echo.Start(a.Config.Addr)
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return a.Echo.Shutdown(shutdownCtx)
	}
}

func (a *App) setupRoutes() {
	e := a.Echo

	// comments.js ships inside the binary; everything else under /public
	// comes from the user's static dir.
	embeddedFS, _ := fs.Sub(EmbeddedAssets, "embedded")
	embeddedHandler := http.FileServer(http.FS(embeddedFS))
	e.GET("/public/comments.js", echo.WrapHandler(http.StripPrefix("/public/", embeddedHandler)))
	e.Static("/public", a.staticDir)

	e.GET("/robots.txt", a.handleRobots)
	e.GET("/healthz", handleHealth)
	e.GET("/metrics", a.metricsHandler())
	e.GET("/sitemap.xml", a.handleSitemap)
	e.GET("/feed.xml", a.handleFeed)

	e.GET("/", a.handleHome)
	e.GET("/post/:slug/", a.handlePost)
	e.POST("/post/:slug/comment/", a.handleCommentForm)
	e.POST("/api/createComment", a.handleCreateComment)

	if a.Store != nil {
		e.GET("/assets/images/:ref", a.handleAssetImage)
	}
}

// Close cleans up resources. Call this when the app is shutting down.
func (a *App) Close() error {
	if a.Pages != nil {
		a.Pages.Close()
	}
	if a.Forms != nil {
		a.Forms.Close()
	}
	if a.submitLimiter != nil {
		a.submitLimiter.Close()
	}
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (a *App) site() views.SiteConfig {
	return a.Config.Views()
}

// buildPage fetches and renders the page stored under key.
func (a *App) buildPage(ctx context.Context, key string) (*Page, error) {
	if key == homeKey {
		posts, err := a.Source.ListPosts(ctx)
		if err != nil {
			return nil, fmt.Errorf("pubfront: list posts: %w", err)
		}
		html, err := renderBytes(ctx, a.Views.Home(a.site(), posts, a.Source))
		if err != nil {
			return nil, err
		}
		return &Page{HTML: html}, nil
	}

	slug, ok := strings.CutPrefix(key, "post:")
	if !ok {
		return nil, fmt.Errorf("pubfront: unknown page key %q", key)
	}
	post, err := a.fetchPost(ctx, slug)
	if err != nil {
		return nil, err
	}
	html, err := renderBytes(ctx, a.Views.Post(a.site(), post, a.Source, a.section(post, comments.Idle)))
	if err != nil {
		return nil, err
	}
	return &Page{Slug: slug, Post: post, HTML: html}, nil
}

// fetchPost loads one post. A missing post is returned as
// content.ErrNotFound.
func (a *App) fetchPost(ctx context.Context, slug string) (*content.Post, error) {
	post, err := a.Source.PostBySlug(ctx, slug)
	if errors.Is(err, content.ErrNotFound) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("pubfront: fetch post %s: %w", slug, err)
	}
	return post, nil
}

func (a *App) section(post *content.Post, state comments.State) views.CommentSection {
	return views.CommentSection{
		State:  state,
		PostID: post.ID,
		Action: views.PostPath(post.Slug.Current) + "comment/",
	}
}

// submitToBackend is the comment endpoint used when no CommentEndpoint URL
// is configured.
func (a *App) submitToBackend(ctx context.Context, in comments.Input) error {
	return a.Source.CreateComment(ctx, content.NewComment{
		PostID:  in.PostID,
		Name:    in.Name,
		Email:   in.Email,
		Comment: in.Comment,
	})
}
