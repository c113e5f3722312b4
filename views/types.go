package views

import (
	"time"

	"github.com/eringen/pubfront/comments"
)

// SiteConfig holds the site-wide settings every page needs.
type SiteConfig struct {
	Name        string
	URL         string
	Description string
	Author      string
	Logo        string         // header logo URL (default "/public/logo.svg")
	Location    *time.Location // time zone of post bylines (default time.Local)
}

func (s SiteConfig) location() *time.Location {
	if s.Location == nil {
		return time.Local
	}
	return s.Location
}

func (s SiteConfig) logo() string {
	if s.Logo == "" {
		return "/public/logo.svg"
	}
	return s.Logo
}

// PageMeta carries per-page OpenGraph and SEO metadata into the <head>.
type PageMeta struct {
	Title       string
	Description string
	URL         string // canonical + og:url
	OGType      string // "website" or "article"
	Image       string // og:image
	JSONLD      string
}

// CommentSection is everything the comment area of a post page needs:
// the form state, the per-field messages and the values to refill.
type CommentSection struct {
	State  comments.State
	Errors comments.FieldErrors
	Values comments.Input
	PostID string
	Action string // form action, e.g. "/post/hello/comment/"
}
