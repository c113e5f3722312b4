package pubfront

import (
	"time"

	"github.com/eringen/pubfront/content"
)

// Page is one rendered, cacheable page. Post is kept alongside the HTML so
// per-visitor variants (the comment acknowledgment, validation messages)
// can be rendered without another fetch.
type Page struct {
	Slug        string        `json:"slug,omitempty"`
	Post        *content.Post `json:"post,omitempty"`
	HTML        []byte        `json:"html"`
	GeneratedAt time.Time     `json:"generatedAt"`
}

// Fallback says what happens to a slug that was not known at build time.
type Fallback int

// FallbackBlocking renders unknown slugs on first request, then caches
// them like prerendered pages.
const FallbackBlocking Fallback = 0

func (f Fallback) String() string {
	if f == FallbackBlocking {
		return "blocking"
	}
	return "unknown"
}

// PathParams identifies one page to prerender.
type PathParams struct {
	Slug string
}

// Paths is the result of StaticPaths.
type Paths struct {
	Params   []PathParams
	Fallback Fallback
}

// Slugs returns the slugs of p in order.
func (p Paths) Slugs() []string {
	out := make([]string, len(p.Params))
	for i, pp := range p.Params {
		out[i] = pp.Slug
	}
	return out
}
