package views

import (
	"github.com/a-h/templ"

	"github.com/eringen/pubfront/content"
	"github.com/eringen/pubfront/portabletext"
)

const (
	heroWidth   = 1600
	avatarWidth = 80
	bodyWidth   = 1200
)

// postView is a post with its image URLs resolved and byline formatted.
type postView struct {
	Post     *content.Post
	Hero     string
	HeroAlt  string
	Avatar   string
	DateTime string
	Byline   string
	Body     templ.Component
}

func newPostView(site SiteConfig, post *content.Post, images content.ImageResolver) postView {
	r := portabletext.Renderer{ImageURL: blockImageURL(images), ImageWidth: bodyWidth}
	return postView{
		Post:     post,
		Hero:     images.ImageURL(post.MainImage, content.Width(heroWidth), content.AutoFormat()),
		HeroAlt:  altOr(post.MainImage.Alt, "Post Image"),
		Avatar:   images.ImageURL(post.Author.Image, content.Width(avatarWidth), content.AutoFormat()),
		DateTime: post.CreatedAt.UTC().Format("2006-01-02T15:04:05Z"),
		Byline:   FormatByline(post.CreatedAt, site.location()),
		Body:     r.Component(post.Body),
	}
}

// PostPage renders a full post page: hero image, title, description,
// byline, body, the comment area described by section, and the approved
// comments in the order they were fetched. It performs no I/O.
func PostPage(site SiteConfig, post *content.Post, images content.ImageResolver, section CommentSection) templ.Component {
	v := newPostView(site, post, images)
	meta := PageMeta{
		Title:       post.Title,
		Description: post.Description,
		URL:         buildURL(site.URL, "post", post.Slug.Current),
		OGType:      "article",
		Image:       v.Hero,
		JSONLD:      BlogPostingJsonLD(site, post, v.Hero),
	}
	return Layout(site, meta, postBody(v, section))
}

// PostBody is PostPage without the document shell.
func PostBody(site SiteConfig, post *content.Post, images content.ImageResolver, section CommentSection) templ.Component {
	return postBody(newPostView(site, post, images), section)
}

func blockImageURL(images content.ImageResolver) portabletext.ImageURLFunc {
	return func(ref string, width int) string {
		img := content.Image{Asset: content.Reference{Ref: ref}}
		return images.ImageURL(img, content.Width(width), content.AutoFormat())
	}
}

func altOr(alt, fallback string) string {
	if alt == "" {
		return fallback
	}
	return alt
}
