package pubfront

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/gorilla/sessions"
	"github.com/labstack/echo-contrib/echoprometheus"
	"github.com/labstack/echo-contrib/session"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

const (
	sessionName    = "pubfront_session"
	formIDKey      = "form_id"
	flashSubmitted = "comment_submitted"
)

func (a *App) setupMiddleware() {
	e := a.Echo

	e.IPExtractor = echo.ExtractIPFromXFFHeader(
		echo.TrustLoopback(true),
		echo.TrustLinkLocal(false),
		echo.TrustPrivateNet(true),
	)

	e.HTTPErrorHandler = a.httpErrorHandler

	e.Pre(middleware.NonWWWRedirect())

	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogStatus:   true,
		LogURI:      true,
		LogMethod:   true,
		LogLatency:  true,
		LogRemoteIP: true,
		LogError:    true,
		HandleError: true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			ev := a.Logger.Info()
			if v.Error != nil {
				ev = a.Logger.Error().Err(v.Error)
			}
			ev.Str("method", v.Method).
				Str("uri", v.URI).
				Int("status", v.Status).
				Dur("latency", v.Latency).
				Str("ip", v.RemoteIP).
				Msg("request")
			return nil
		},
	}))

	e.Use(middleware.Recover())

	e.Use(echoprometheus.NewMiddlewareWithConfig(echoprometheus.MiddlewareConfig{
		Namespace:  "pubfront",
		Registerer: a.registry,
		Skipper: func(c echo.Context) bool {
			return c.Path() == "/metrics" || c.Path() == "/healthz"
		},
	}))

	e.Use(middleware.GzipWithConfig(middleware.GzipConfig{
		Level: 5,
		Skipper: func(c echo.Context) bool {
			path := c.Request().URL.Path
			return strings.HasPrefix(path, "/public/") || strings.HasPrefix(path, "/assets/")
		},
	}))

	e.Use(middleware.SecureWithConfig(middleware.SecureConfig{
		XSSProtection:         "1; mode=block",
		ContentTypeNosniff:    "nosniff",
		XFrameOptions:         "DENY",
		ReferrerPolicy:        "strict-origin-when-cross-origin",
		ContentSecurityPolicy: "default-src 'self'; script-src 'self'; style-src 'self' 'unsafe-inline'; img-src 'self' https: data:; font-src 'self'; connect-src 'self'; form-action 'self'",
		HSTSMaxAge:            31536000,
		HSTSExcludeSubdomains: false,
	}))

	e.Use(session.Middleware(a.newSessionStore()))

	e.Use(middleware.AddTrailingSlashWithConfig(middleware.TrailingSlashConfig{
		RedirectCode: http.StatusMovedPermanently,
		Skipper: func(c echo.Context) bool {
			path := c.Request().URL.Path
			return c.Request().Method != http.MethodGet ||
				strings.HasPrefix(path, "/public") ||
				strings.HasPrefix(path, "/assets/") ||
				strings.HasPrefix(path, "/api/") ||
				path == "/sitemap.xml" || path == "/feed.xml" || path == "/robots.txt" ||
				path == "/metrics" || path == "/healthz"
		},
	}))

	e.Use(a.cacheControlMiddleware)
}

func (a *App) cacheControlMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	maxAge := int(a.Config.RevalidateAfter.Seconds())
	pageCache := "public, max-age=0, s-maxage=" + strconv.Itoa(maxAge) + ", stale-while-revalidate=" + strconv.Itoa(maxAge)
	return func(c echo.Context) error {
		path := c.Request().URL.Path
		switch {
		case c.Request().Method != http.MethodGet && c.Request().Method != http.MethodHead:
			c.Response().Header().Set("Cache-Control", "no-store")
		case path == "/public/comments.js":
			c.Response().Header().Set("Cache-Control", "public, max-age=3600")
		case strings.HasPrefix(path, "/public/"), strings.HasPrefix(path, "/assets/"):
			c.Response().Header().Set("Cache-Control", "public, max-age=31536000, immutable")
		case path == "/sitemap.xml" || path == "/feed.xml" || path == "/robots.txt":
			c.Response().Header().Set("Cache-Control", "public, max-age=86400")
		case path == "/metrics" || path == "/healthz":
			c.Response().Header().Set("Cache-Control", "no-store")
		default:
			c.Response().Header().Set("Cache-Control", pageCache)
		}
		return next(c)
	}
}

func (a *App) newSessionStore() *sessions.CookieStore {
	store := sessions.NewCookieStore([]byte(a.Config.SessionSecret))
	store.Options = &sessions.Options{
		Path:     "/",
		HttpOnly: true,
		MaxAge:   60 * 60 * 12,
		SameSite: http.SameSiteLaxMode,
		Secure:   a.Config.CookieSecure,
	}
	return store
}

// formID returns the browser's comment form id, creating and saving one
// on first use.
func formID(c echo.Context) (string, error) {
	sess, err := session.Get(sessionName, c)
	if err != nil {
		return "", err
	}
	if id, ok := sess.Values[formIDKey].(string); ok && id != "" {
		return id, nil
	}
	id := uuid.NewString()
	sess.Values[formIDKey] = id
	if err := sess.Save(c.Request(), c.Response()); err != nil {
		return "", err
	}
	return id, nil
}

// addSubmittedFlash records that a comment on slug was accepted.
func addSubmittedFlash(c echo.Context, slug string) error {
	sess, err := session.Get(sessionName, c)
	if err != nil {
		return err
	}
	sess.AddFlash(slug, flashSubmitted)
	return sess.Save(c.Request(), c.Response())
}

// consumeSubmittedFlash reports whether a comment on slug was just
// accepted, clearing the flash when it matches.
func consumeSubmittedFlash(c echo.Context, slug string) bool {
	sess, err := session.Get(sessionName, c)
	if err != nil {
		return false
	}
	raw, ok := sess.Values[flashSubmitted].([]interface{})
	if !ok || len(raw) == 0 {
		return false
	}
	found := false
	var kept []interface{}
	for _, v := range raw {
		if s, _ := v.(string); s == slug && !found {
			found = true
			continue
		}
		kept = append(kept, v)
	}
	if !found {
		return false
	}
	if len(kept) == 0 {
		delete(sess.Values, flashSubmitted)
	} else {
		sess.Values[flashSubmitted] = kept
	}
	_ = sess.Save(c.Request(), c.Response())
	return true
}
