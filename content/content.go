// Package content talks to the hosted content store that holds posts,
// authors and comments, and resolves image asset references to URLs.
package content

import (
	"context"
	"errors"
	"time"

	"github.com/eringen/pubfront/portabletext"
)

var (
	// ErrNotFound is returned when no document matches a lookup.
	ErrNotFound = errors.New("content: not found")
	// ErrNoToken is returned by writes when no API token is configured.
	ErrNoToken = errors.New("content: write token not configured")
)

// Slug is the URL identifier of a post.
type Slug struct {
	Current string `json:"current"`
}

// Reference points at another document or asset by id.
type Reference struct {
	Type string `json:"_type,omitempty"`
	Ref  string `json:"_ref"`
}

// Image is an image field. Asset.Ref is opaque and only meaningful to an
// ImageResolver.
type Image struct {
	Asset Reference `json:"asset"`
	Alt   string    `json:"alt,omitempty"`
}

// Author is the expanded author of a post.
type Author struct {
	Name  string `json:"name"`
	Image Image  `json:"image"`
}

// Comment is a reader comment. Approved is false until a moderator flips it
// in the content store.
type Comment struct {
	ID        string    `json:"_id"`
	CreatedAt time.Time `json:"_createdAt"`
	Post      Reference `json:"post"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Comment   string    `json:"comment"`
	Approved  bool      `json:"approved"`
}

// Post is a blog post with its author expanded. Comments holds approved
// comments only, in the order the store returned them.
type Post struct {
	ID          string              `json:"_id"`
	CreatedAt   time.Time           `json:"_createdAt"`
	Title       string              `json:"title"`
	Description string              `json:"description"`
	Slug        Slug                `json:"slug"`
	MainImage   Image               `json:"mainImage"`
	Body        portabletext.Blocks `json:"body"`
	Author      Author              `json:"author"`
	Comments    []Comment           `json:"comments"`
}

// NewComment is the payload for creating an unapproved comment. PostID is
// the _id of the post being commented on.
type NewComment struct {
	PostID  string `json:"_id"`
	Name    string `json:"name"`
	Email   string `json:"email"`
	Comment string `json:"comment"`
}

// Source is the read/write surface the site needs from a content backend.
type Source interface {
	// ListSlugs returns the slug of every post.
	ListSlugs(ctx context.Context) ([]string, error)
	// ListPosts returns every post, newest first, without body or comments.
	ListPosts(ctx context.Context) ([]Post, error)
	// PostBySlug returns one post with its author and approved comments,
	// or ErrNotFound.
	PostBySlug(ctx context.Context, slug string) (*Post, error)
	// CreateComment stores a new unapproved comment.
	CreateComment(ctx context.Context, c NewComment) error
}

// ImageResolver maps image references to fetchable URLs.
type ImageResolver interface {
	ImageURL(img Image, opts ...ImageOption) string
}

// Backend is a Source that can also resolve its own image references.
type Backend interface {
	Source
	ImageResolver
}
