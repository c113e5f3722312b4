package pubfront

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eringen/pubfront/content"
)

var (
	created1 = time.Date(2022, 3, 1, 12, 30, 0, 0, time.UTC)
	created2 = time.Date(2022, 4, 1, 9, 0, 0, 0, time.UTC)
)

func testConfig() SiteConfig {
	return SiteConfig{
		Name:          "Test Blog",
		URL:           "https://blog.example.com",
		Description:   "Notes",
		SessionSecret: "test-secret-test-secret-test-sec",
		Location:      time.UTC,
	}
}

func newTestApp(t *testing.T, cfg SiteConfig, src content.Backend, opts ...Option) *App {
	t.Helper()
	opts = append([]Option{
		WithBackend(src),
		WithLogger(zerolog.Nop()),
		WithStaticDir(t.TempDir()),
	}, opts...)
	a := New(cfg, opts...)
	_, err := a.Build(context.Background())
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close() })
	return a
}

func defaultBackend() *fakeBackend {
	hello := testPost("post-1", "hello", "Hello", created1)
	hello.Comments = []content.Comment{{ID: "c1", Name: "Bob", Comment: "Nice post"}}
	return newFakeBackend(hello, testPost("post-2", "second", "Second", created2))
}

func serve(a *App, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	a.Echo.ServeHTTP(rec, req)
	return rec
}

func get(a *App, target string, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, target, nil)
	for _, c := range cookies {
		req.AddCookie(c)
	}
	return serve(a, req)
}

func commentRequest(slug string, form url.Values, cookies ...*http.Cookie) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/post/"+slug+"/comment/", strings.NewReader(form.Encode()))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationForm)
	for _, c := range cookies {
		req.AddCookie(c)
	}
	return req
}

func validForm() url.Values {
	return url.Values{
		"_id":     {"post-1"},
		"name":    {"Jane"},
		"email":   {"jane@example.com"},
		"comment": {"Great read"},
	}
}

// sessionCookie returns the last session cookie set by rec.
func sessionCookie(t *testing.T, rec *httptest.ResponseRecorder) *http.Cookie {
	t.Helper()
	var found *http.Cookie
	for _, c := range rec.Result().Cookies() {
		if c.Name == sessionName {
			found = c
		}
	}
	require.NotNil(t, found, "no session cookie in response")
	return found
}

func TestHomeListsPosts(t *testing.T) {
	a := newTestApp(t, testConfig(), defaultBackend())

	rec := get(a, "/")
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "Hello")
	assert.Contains(t, body, "Second")
	assert.Contains(t, body, `href="/post/hello/"`)
	assert.Equal(t, "public, max-age=0, s-maxage=60, stale-while-revalidate=60", rec.Header().Get("Cache-Control"))
}

func TestPostPage(t *testing.T) {
	b := defaultBackend()
	a := newTestApp(t, testConfig(), b)

	rec := get(a, "/post/hello/")
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "<h1")
	assert.Contains(t, body, "Hello")
	assert.Contains(t, body, "Author: Ada")
	assert.Contains(t, body, "Nice post")
	assert.Contains(t, body, `data-state="idle"`)
	assert.Contains(t, body, `action="/post/hello/comment/"`)
	assert.Contains(t, body, `<input type="hidden" name="_id" value="post-1">`)
}

func TestPostPageServedFromCache(t *testing.T) {
	b := defaultBackend()
	a := newTestApp(t, testConfig(), b)

	first := get(a, "/post/hello/")
	second := get(a, "/post/hello/")
	require.Equal(t, http.StatusOK, first.Code)
	assert.Equal(t, first.Body.Bytes(), second.Body.Bytes())
	assert.Equal(t, 1, b.fetchCount("hello"), "only the build should fetch")
}

func TestPostPageRevalidatesAfterWindow(t *testing.T) {
	b := defaultBackend()
	clock := newFakeClock()
	a := newTestApp(t, testConfig(), b, WithPageClock(clock.Now))

	updated := testPost("post-1", "hello", "Hello Again", created1)
	b.put(updated)
	clock.Advance(2 * time.Minute)

	stale := get(a, "/post/hello/")
	assert.NotContains(t, stale.Body.String(), "Hello Again")
	a.Pages.Wait()
	fresh := get(a, "/post/hello/")
	assert.Contains(t, fresh.Body.String(), "Hello Again")
}

func TestPostNotFound(t *testing.T) {
	b := defaultBackend()
	a := newTestApp(t, testConfig(), b)

	for i := 0; i < 2; i++ {
		rec := get(a, "/post/missing/")
		assert.Equal(t, http.StatusNotFound, rec.Code)
		assert.Contains(t, rec.Body.String(), "Page not found")
	}
	assert.Equal(t, 2, b.fetchCount("missing"), "not-found pages are not cached")
}

func TestPostPublishedAfterBuild(t *testing.T) {
	b := defaultBackend()
	a := newTestApp(t, testConfig(), b)

	b.put(testPost("post-3", "late", "Late Arrival", created2))
	rec := get(a, "/post/late/")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Late Arrival")
}

func TestPostWithoutTrailingSlashRedirects(t *testing.T) {
	a := newTestApp(t, testConfig(), defaultBackend())

	rec := get(a, "/post/hello")
	assert.Equal(t, http.StatusMovedPermanently, rec.Code)
	assert.Equal(t, "/post/hello/", rec.Header().Get("Location"))
}

func TestPostWithUnknownBlocks(t *testing.T) {
	p := testPost("post-1", "hello", "Hello", created1)
	raw := `[
		{"_type": "code", "language": "go", "code": "package main"},
		{"_type": "block", "style": "normal", "children": [{"_type": "span", "text": "Still here"}]}
	]`
	require.NoError(t, json.Unmarshal([]byte(raw), &p.Body))
	a := newTestApp(t, testConfig(), newFakeBackend(p))

	rec := get(a, "/post/hello/")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Still here")
	assert.NotContains(t, rec.Body.String(), "package main")
}

func TestBuildFailsWhenSlugsUnavailable(t *testing.T) {
	b := defaultBackend()
	b.listErr = errors.New("content store down")
	a := New(testConfig(), WithBackend(b), WithLogger(zerolog.Nop()))
	defer a.Close()

	_, err := a.Build(context.Background())
	assert.ErrorIs(t, err, b.listErr)
}

func TestBuildFailsWhenPostUnavailable(t *testing.T) {
	b := defaultBackend()
	b.fetchErr = errors.New("timeout")
	a := New(testConfig(), WithBackend(b), WithLogger(zerolog.Nop()))
	defer a.Close()

	_, err := a.Build(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "prerender post:")
}

func TestInitRequiresSessionSecret(t *testing.T) {
	cfg := testConfig()
	cfg.SessionSecret = ""
	a := New(cfg, WithBackend(defaultBackend()), WithLogger(zerolog.Nop()))
	assert.Error(t, a.Init(context.Background()))
}

func TestCommentFormValidation(t *testing.T) {
	b := defaultBackend()
	a := newTestApp(t, testConfig(), b)

	rec := serve(a, commentRequest("hello", url.Values{"name": {"Jane"}}))
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "Email is required")
	assert.Contains(t, body, "Comment is required")
	assert.NotContains(t, body, "Name is required")
	assert.Contains(t, body, `value="Jane"`)
	assert.Equal(t, "no-store", rec.Header().Get("Cache-Control"))
	assert.Empty(t, b.createdComments())
}

func TestCommentFormSubmitShowsAcknowledgment(t *testing.T) {
	b := defaultBackend()
	a := newTestApp(t, testConfig(), b)

	form := validForm()
	form.Set("_id", "someone-elses-post")
	rec := serve(a, commentRequest("hello", form))
	require.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/post/hello/", rec.Header().Get("Location"))

	created := b.createdComments()
	require.Len(t, created, 1)
	assert.Equal(t, content.NewComment{PostID: "post-1", Name: "Jane", Email: "jane@example.com", Comment: "Great read"}, created[0])

	page := get(a, "/post/hello/", sessionCookie(t, rec))
	require.Equal(t, http.StatusOK, page.Code)
	assert.Contains(t, page.Body.String(), "You have submitted your comment successfully!")
	assert.NotContains(t, page.Body.String(), "data-comment-form")
	assert.Equal(t, "no-store", page.Header().Get("Cache-Control"))

	// The acknowledgment is shown once.
	again := get(a, "/post/hello/", sessionCookie(t, page))
	assert.Contains(t, again.Body.String(), "data-comment-form")
	assert.NotContains(t, again.Body.String(), "submitted your comment")

	// Other visitors keep getting the cached form.
	assert.Contains(t, get(a, "/post/hello/").Body.String(), `data-state="idle"`)
}

func TestCommentFormFailureIsSilent(t *testing.T) {
	b := defaultBackend()
	b.createErr = errors.New("write rejected")
	a := newTestApp(t, testConfig(), b)

	rec := serve(a, commentRequest("hello", validForm()))
	require.Equal(t, http.StatusSeeOther, rec.Code)

	page := get(a, "/post/hello/", rec.Result().Cookies()...)
	assert.Contains(t, page.Body.String(), "data-comment-form")
	assert.NotContains(t, page.Body.String(), "submitted your comment")
}

func TestCommentFormFragment(t *testing.T) {
	tests := []struct {
		name      string
		createErr error
		form      url.Values
		wantCode  int
		wantState string
		want      string
	}{
		{
			name:      "submitted",
			form:      validForm(),
			wantCode:  http.StatusOK,
			wantState: "submitted",
			want:      "You have submitted your comment successfully!",
		},
		{
			name:      "failed",
			createErr: errors.New("write rejected"),
			form:      validForm(),
			wantCode:  http.StatusOK,
			wantState: "failed",
			want:      "data-comment-form",
		},
		{
			name:      "invalid",
			form:      url.Values{"email": {"jane@example.com"}},
			wantCode:  http.StatusUnprocessableEntity,
			wantState: "idle",
			want:      "Name is required",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := defaultBackend()
			b.createErr = tt.createErr
			a := newTestApp(t, testConfig(), b)

			req := commentRequest("hello", tt.form)
			req.Header.Set("HX-Request", "true")
			rec := serve(a, req)

			assert.Equal(t, tt.wantCode, rec.Code)
			body := rec.Body.String()
			assert.True(t, strings.HasPrefix(body, `<div id="comment-section" data-state="`+tt.wantState+`">`), body)
			assert.Contains(t, body, tt.want)
			assert.NotContains(t, body, "<html")
		})
	}
}

func TestCommentFormUnknownPost(t *testing.T) {
	a := newTestApp(t, testConfig(), defaultBackend())

	rec := serve(a, commentRequest("missing", validForm()))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCommentFormRateLimited(t *testing.T) {
	cfg := testConfig()
	cfg.SubmitLimit = 1
	b := defaultBackend()
	a := newTestApp(t, cfg, b)

	first := serve(a, commentRequest("hello", validForm()))
	require.Equal(t, http.StatusSeeOther, first.Code)
	second := serve(a, commentRequest("hello", validForm(), sessionCookie(t, first)))
	assert.Equal(t, http.StatusTooManyRequests, second.Code)
	assert.Len(t, b.createdComments(), 1)
}

func postComment(a *App, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/api/createComment", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMETextPlain)
	return serve(a, req)
}

func TestCreateCommentAPI(t *testing.T) {
	tests := []struct {
		name       string
		createErr  error
		body       string
		wantCode   int
		wantMsg    string
		wantErrors map[string]string
	}{
		{
			name:     "ok",
			body:     `{"_id":"post-1","name":"Jane","email":"jane@example.com","comment":"Hi"}`,
			wantCode: http.StatusOK,
			wantMsg:  "Comment submitted",
		},
		{
			name:     "missing fields",
			body:     `{"_id":"post-1","name":"Jane"}`,
			wantCode: http.StatusBadRequest,
			wantMsg:  "Invalid comment",
			wantErrors: map[string]string{
				"email":   "Email is required",
				"comment": "Comment is required",
			},
		},
		{
			name:       "missing post",
			body:       `{"name":"Jane","email":"jane@example.com","comment":"Hi"}`,
			wantCode:   http.StatusBadRequest,
			wantMsg:    "Invalid comment",
			wantErrors: map[string]string{"_id": "Post is required"},
		},
		{
			name:     "unknown post",
			body:     `{"_id":"nope","name":"Jane","email":"jane@example.com","comment":"Hi"}`,
			wantCode: http.StatusBadRequest,
			wantMsg:  "Unknown post",
		},
		{
			name:      "backend failure",
			createErr: errors.New("write rejected"),
			body:      `{"_id":"post-1","name":"Jane","email":"jane@example.com","comment":"Hi"}`,
			wantCode:  http.StatusInternalServerError,
			wantMsg:   "Couldn't submit comment",
		},
		{
			name:     "malformed body",
			body:     `{"_id":`,
			wantCode: http.StatusBadRequest,
			wantMsg:  "Invalid request body",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := defaultBackend()
			b.createErr = tt.createErr
			a := newTestApp(t, testConfig(), b)

			rec := postComment(a, tt.body)
			assert.Equal(t, tt.wantCode, rec.Code)

			var got struct {
				Message string            `json:"message"`
				Errors  map[string]string `json:"errors"`
			}
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
			assert.Equal(t, tt.wantMsg, got.Message)
			if tt.wantErrors != nil {
				assert.Equal(t, tt.wantErrors, got.Errors)
			}
		})
	}
}

func TestCreateCommentAPIRateLimited(t *testing.T) {
	cfg := testConfig()
	cfg.SubmitLimit = 2
	b := defaultBackend()
	a := newTestApp(t, cfg, b)

	body := `{"_id":"post-1","name":"Jane","email":"jane@example.com","comment":"Hi"}`
	assert.Equal(t, http.StatusOK, postComment(a, body).Code)
	assert.Equal(t, http.StatusOK, postComment(a, body).Code)
	assert.Equal(t, http.StatusTooManyRequests, postComment(a, body).Code)
	assert.Len(t, b.createdComments(), 2)
}

func TestCommentsAwaitApproval(t *testing.T) {
	s := setupTestStore(t)
	seedPost(t, s, "post-1", "hello", created1)
	ctx := context.Background()
	require.NoError(t, s.saveComment(ctx, content.Comment{
		ID: "c-ok", Post: content.Reference{Ref: "post-1"}, Name: "Bob", Comment: "approved words", Approved: true,
	}))
	a := newTestApp(t, testConfig(), s)

	rec := postComment(a, `{"_id":"post-1","name":"Eve","email":"eve@example.com","comment":"pending words"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	require.NoError(t, a.Pages.Invalidate(ctx, postKey("hello")))
	page := get(a, "/post/hello/").Body.String()
	assert.Contains(t, page, "approved words")
	assert.NotContains(t, page, "pending words")
}

func TestSitemapFeedAndRobots(t *testing.T) {
	a := newTestApp(t, testConfig(), defaultBackend())

	sitemap := get(a, "/sitemap.xml")
	require.Equal(t, http.StatusOK, sitemap.Code)
	assert.Contains(t, sitemap.Body.String(), "<loc>https://blog.example.com/post/hello/</loc>")
	assert.Contains(t, sitemap.Body.String(), "<loc>https://blog.example.com/post/second/</loc>")

	feed := get(a, "/feed.xml")
	require.Equal(t, http.StatusOK, feed.Code)
	assert.Contains(t, feed.Header().Get(echo.HeaderContentType), "application/rss+xml")
	assert.Contains(t, feed.Body.String(), "<title>Hello</title>")
	assert.Less(t, strings.Index(feed.Body.String(), "Second"), strings.Index(feed.Body.String(), "<title>Hello</title>"))

	robots := get(a, "/robots.txt")
	assert.Contains(t, robots.Body.String(), "Sitemap: https://blog.example.com/sitemap.xml")
}

func TestHealthAndMetrics(t *testing.T) {
	a := newTestApp(t, testConfig(), defaultBackend())
	get(a, "/")

	health := get(a, "/healthz")
	assert.Equal(t, http.StatusOK, health.Code)
	assert.Equal(t, "ok", health.Body.String())

	metrics := get(a, "/metrics")
	require.Equal(t, http.StatusOK, metrics.Code)
	assert.Contains(t, metrics.Body.String(), "pubfront_page_cache_requests_total")
	assert.Contains(t, metrics.Body.String(), "go_goroutines")
}

func TestCommentsScriptIsServed(t *testing.T) {
	a := newTestApp(t, testConfig(), defaultBackend())

	rec := get(a, "/public/comments.js")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "comment-section")
}

func TestCreateCommentAPIUnknownPostHosted(t *testing.T) {
	var mutated atomic.Bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.Contains(r.URL.Path, "/data/mutate/") {
			mutated.Store(true)
			_, _ = w.Write([]byte(`{"transactionId":"tx"}`))
			return
		}
		if strings.HasPrefix(r.URL.Query().Get("query"), "count(") {
			_, _ = w.Write([]byte(`{"result":0}`))
			return
		}
		_, _ = w.Write([]byte(`{"result":[]}`))
	}))
	defer srv.Close()

	cfg := testConfig()
	cfg.Content = content.Config{ProjectID: "proj", Dataset: "production", Token: "secret", BaseURL: srv.URL}
	a := New(cfg, WithLogger(zerolog.Nop()), WithStaticDir(t.TempDir()))
	_, err := a.Build(context.Background())
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close() })

	rec := postComment(a, `{"_id":"nope","name":"Jane","email":"jane@example.com","comment":"Hi"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "Unknown post")
	assert.False(t, mutated.Load())
}
