package pubfront

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/eringen/pubfront/content"
)

// fakeBackend is an in-memory content.Backend. PostBySlug calls are
// counted per slug.
type fakeBackend struct {
	mu        sync.Mutex
	posts     map[string]*content.Post
	slugs     []string // overrides the slugs derived from posts
	listErr   error
	fetchErr  error
	createErr error
	fetches   map[string]int
	created   []content.NewComment
}

func newFakeBackend(posts ...*content.Post) *fakeBackend {
	b := &fakeBackend{posts: make(map[string]*content.Post), fetches: make(map[string]int)}
	for _, p := range posts {
		b.posts[p.Slug.Current] = p
	}
	return b
}

func testPost(id, slug, title string, created time.Time) *content.Post {
	return &content.Post{
		ID:          id,
		CreatedAt:   created,
		Title:       title,
		Description: "About " + title,
		Slug:        content.Slug{Current: slug},
		MainImage:   content.Image{Asset: content.Reference{Ref: "image-hero-1200x800-jpg"}},
		Author:      content.Author{Name: "Ada"},
	}
}

func (b *fakeBackend) put(p *content.Post) {
	b.mu.Lock()
	b.posts[p.Slug.Current] = p
	b.mu.Unlock()
}

func (b *fakeBackend) fetchCount(slug string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.fetches[slug]
}

func (b *fakeBackend) createdComments() []content.NewComment {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]content.NewComment(nil), b.created...)
}

func (b *fakeBackend) ListSlugs(context.Context) ([]string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.listErr != nil {
		return nil, b.listErr
	}
	if b.slugs != nil {
		return b.slugs, nil
	}
	slugs := make([]string, 0, len(b.posts))
	for s := range b.posts {
		slugs = append(slugs, s)
	}
	sort.Strings(slugs)
	return slugs, nil
}

func (b *fakeBackend) ListPosts(context.Context) ([]content.Post, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.listErr != nil {
		return nil, b.listErr
	}
	out := make([]content.Post, 0, len(b.posts))
	for _, p := range b.posts {
		cp := *p
		cp.Body = nil
		cp.Comments = nil
		out = append(out, cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (b *fakeBackend) PostBySlug(_ context.Context, slug string) (*content.Post, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.fetches[slug]++
	if b.fetchErr != nil {
		return nil, b.fetchErr
	}
	p, ok := b.posts[slug]
	if !ok {
		return nil, content.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (b *fakeBackend) CreateComment(_ context.Context, in content.NewComment) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.createErr != nil {
		return b.createErr
	}
	for _, p := range b.posts {
		if p.ID == in.PostID {
			b.created = append(b.created, in)
			return nil
		}
	}
	return content.ErrNotFound
}

func (b *fakeBackend) ImageURL(img content.Image, opts ...content.ImageOption) string {
	if img.Asset.Ref == "" {
		return ""
	}
	return "https://img.test/" + img.Asset.Ref
}
