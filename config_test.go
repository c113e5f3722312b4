package pubfront

import (
	"context"
	"io"
	"net/http"
	"testing"
	"time"

	"github.com/a-h/templ"
	"github.com/stretchr/testify/assert"

	"github.com/eringen/pubfront/views"
)

func TestNewReplacesNonPositiveSettings(t *testing.T) {
	cfg := testConfig()
	cfg.RevalidateAfter = -time.Second
	cfg.RedisTTL = -time.Hour
	cfg.FormIdleTimeout = -time.Minute
	cfg.SubmitWindow = -time.Minute
	cfg.SubmitLimit = -1

	a := newTestApp(t, cfg, defaultBackend())

	assert.Equal(t, 60*time.Second, a.Config.RevalidateAfter)
	assert.Equal(t, 24*time.Hour, a.Config.RedisTTL)
	assert.Equal(t, 30*time.Minute, a.Config.FormIdleTimeout)
	assert.Equal(t, time.Minute, a.Config.SubmitWindow)
	assert.Equal(t, 5, a.Config.SubmitLimit)
	assert.Equal(t, http.StatusOK, get(a, "/").Code)
}

func TestWithViewsOverridesOnlySetFields(t *testing.T) {
	notFound := func(views.SiteConfig) templ.Component {
		return templ.ComponentFunc(func(_ context.Context, w io.Writer) error {
			_, err := io.WriteString(w, "<p>nothing here</p>")
			return err
		})
	}
	a := newTestApp(t, testConfig(), defaultBackend(), WithViews(ViewFuncs{NotFound: notFound}))

	rec := get(a, "/post/missing/")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "<p>nothing here</p>", rec.Body.String())

	rec = get(a, "/post/hello/")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Enjoyed this article?")
}
