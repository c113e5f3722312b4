package pubfront

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/labstack/echo-contrib/echoprometheus"
	"github.com/labstack/echo/v4"

	"github.com/eringen/pubfront/comments"
	"github.com/eringen/pubfront/content"
	"github.com/eringen/pubfront/views"
)

const maxCommentBody = 64 << 10

func (a *App) handleHome(c echo.Context) error {
	page, err := a.Pages.Get(c.Request().Context(), homeKey)
	if err != nil {
		return err
	}
	return c.HTMLBlob(http.StatusOK, page.HTML)
}

func (a *App) handlePost(c echo.Context) error {
	slug := c.Param("slug")
	page, err := a.Pages.Get(c.Request().Context(), postKey(slug))
	if errors.Is(err, content.ErrNotFound) {
		return RenderStatus(c, http.StatusNotFound, a.Views.NotFound(a.site()))
	}
	if err != nil {
		return err
	}
	if consumeSubmittedFlash(c, slug) {
		c.Response().Header().Set("Cache-Control", "no-store")
		return Render(c, a.Views.Post(a.site(), page.Post, a.Source, a.section(page.Post, comments.Submitted)))
	}
	return c.HTMLBlob(http.StatusOK, page.HTML)
}

// handleCommentForm takes the comment form of a post page. Browsers get a
// redirect back to the post; requests sent by comments.js (HX-Request)
// get the comment section fragment to swap in place.
func (a *App) handleCommentForm(c echo.Context) error {
	ctx := c.Request().Context()
	slug := c.Param("slug")
	page, err := a.Pages.Get(ctx, postKey(slug))
	if errors.Is(err, content.ErrNotFound) {
		return RenderStatus(c, http.StatusNotFound, a.Views.NotFound(a.site()))
	}
	if err != nil {
		return err
	}
	post := page.Post

	var in comments.Input
	if err := c.Bind(&in); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid form")
	}
	in.PostID = post.ID
	fragment := c.Request().Header.Get("HX-Request") == "true"

	respond := func(code int, section views.CommentSection) error {
		if fragment {
			return RenderStatus(c, code, a.Views.CommentFragment(section))
		}
		return RenderStatus(c, code, a.Views.Post(a.site(), post, a.Source, section))
	}
	section := a.section(post, comments.Idle)
	section.Values = in

	if fe := comments.Validate(in); fe != nil {
		a.Metrics.Comments.WithLabelValues("invalid").Inc()
		section.Errors = fe
		return respond(http.StatusUnprocessableEntity, section)
	}
	if !a.submitLimiter.Allow(c.RealIP()) {
		a.Metrics.Comments.WithLabelValues("rate_limited").Inc()
		return respond(http.StatusTooManyRequests, section)
	}

	fid, err := formID(c)
	if err != nil {
		return err
	}
	form := a.Forms.Form(comments.Key(fid, post.ID))
	fe, err := form.Submit(ctx, in)
	switch {
	case errors.Is(err, comments.ErrInFlight):
		a.Metrics.Comments.WithLabelValues("in_flight").Inc()
		section.State = comments.Submitting
		return respond(http.StatusConflict, section)
	case fe != nil:
		a.Metrics.Comments.WithLabelValues("invalid").Inc()
		section.Errors = fe
		return respond(http.StatusUnprocessableEntity, section)
	case err != nil:
		// Already logged by the form; the reader just sees the form again.
		a.Metrics.Comments.WithLabelValues("failed").Inc()
		if fragment {
			section.State = comments.Failed
			return respond(http.StatusOK, section)
		}
		return c.Redirect(http.StatusSeeOther, views.PostPath(slug))
	}

	a.Metrics.Comments.WithLabelValues("submitted").Inc()
	if fragment {
		section.State = comments.Submitted
		return respond(http.StatusOK, section)
	}
	if err := addSubmittedFlash(c, slug); err != nil {
		return err
	}
	return c.Redirect(http.StatusSeeOther, views.PostPath(slug))
}

type apiMessage struct {
	Message string               `json:"message"`
	Errors  comments.FieldErrors `json:"errors,omitempty"`
}

// handleCreateComment stores a new unapproved comment. The body is JSON
// whatever the declared content type.
func (a *App) handleCreateComment(c echo.Context) error {
	var in content.NewComment
	body := io.LimitReader(c.Request().Body, maxCommentBody)
	if err := json.NewDecoder(body).Decode(&in); err != nil {
		return c.JSON(http.StatusBadRequest, apiMessage{Message: "Invalid request body"})
	}

	fe := comments.Validate(comments.Input{PostID: in.PostID, Name: in.Name, Email: in.Email, Comment: in.Comment})
	if strings.TrimSpace(in.PostID) == "" {
		if fe == nil {
			fe = comments.FieldErrors{}
		}
		fe["_id"] = "Post is required"
	}
	if fe != nil {
		return c.JSON(http.StatusBadRequest, apiMessage{Message: "Invalid comment", Errors: fe})
	}
	if !a.submitLimiter.Allow(c.RealIP()) {
		return c.JSON(http.StatusTooManyRequests, apiMessage{Message: "Too many comments, try again later"})
	}

	err := a.Source.CreateComment(c.Request().Context(), in)
	if errors.Is(err, content.ErrNotFound) {
		return c.JSON(http.StatusBadRequest, apiMessage{Message: "Unknown post"})
	}
	if err != nil {
		a.Logger.Error().Err(err).Str("post", in.PostID).Msg("create comment")
		return c.JSON(http.StatusInternalServerError, apiMessage{Message: "Couldn't submit comment"})
	}
	return c.JSON(http.StatusOK, apiMessage{Message: "Comment submitted"})
}

func (a *App) handleSitemap(c echo.Context) error {
	paths, err := StaticPaths(c.Request().Context(), a.Source)
	if err != nil {
		return err
	}
	return a.renderSitemap(c, paths)
}

func (a *App) handleFeed(c echo.Context) error {
	posts, err := a.Source.ListPosts(c.Request().Context())
	if err != nil {
		return err
	}
	return a.renderRSS(c, posts)
}

func (a *App) handleRobots(c echo.Context) error {
	return c.String(http.StatusOK, "User-agent: *\nAllow: /\nSitemap: "+strings.TrimSuffix(a.Config.URL, "/")+"/sitemap.xml\n")
}

func handleHealth(c echo.Context) error {
	return c.String(http.StatusOK, "ok")
}

func (a *App) metricsHandler() echo.HandlerFunc {
	return echoprometheus.NewHandlerWithConfig(echoprometheus.HandlerConfig{Gatherer: a.registry})
}

func (a *App) httpErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}
	he, ok := err.(*echo.HTTPError)
	if ok && he.Code == http.StatusNotFound {
		_ = RenderStatus(c, http.StatusNotFound, a.Views.NotFound(a.site()))
		return
	}
	code := http.StatusInternalServerError
	if ok {
		code = he.Code
	}
	if code >= 500 {
		a.Logger.Error().Err(err).Str("uri", c.Request().RequestURI).Msg("server error")
		_ = RenderStatus(c, code, a.Views.ServerError(a.site()))
		return
	}
	a.Echo.DefaultHTTPErrorHandler(err, c)
}
