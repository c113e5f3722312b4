package views

import (
	"github.com/a-h/templ"

	"github.com/eringen/pubfront/content"
)

const cardWidth = 600

// postCard is one entry of the home page grid.
type postCard struct {
	Href        string
	Title       string
	Description string
	Author      string
	Image       string
	ImageAlt    string
	Avatar      string
}

// Home lists posts newest first.
func Home(site SiteConfig, posts []content.Post, images content.ImageResolver) templ.Component {
	meta := PageMeta{
		Title:       site.Name,
		Description: site.Description,
		URL:         buildURL(site.URL),
		OGType:      "website",
		JSONLD:      WebsiteJsonLD(site),
	}
	cards := make([]postCard, 0, len(posts))
	for i := range posts {
		p := &posts[i]
		cards = append(cards, postCard{
			Href:        PostPath(p.Slug.Current),
			Title:       p.Title,
			Description: p.Description,
			Author:      p.Author.Name,
			Image:       images.ImageURL(p.MainImage, content.Width(cardWidth), content.AutoFormat()),
			ImageAlt:    altOr(p.MainImage.Alt, p.Title),
			Avatar:      images.ImageURL(p.Author.Image, content.Width(avatarWidth), content.AutoFormat()),
		})
	}
	return Layout(site, meta, homeBody(cards))
}

// NotFound is the 404 page.
func NotFound(site SiteConfig) templ.Component {
	return Layout(site, PageMeta{Title: "Not found"}, message(
		"Page not found",
		"The post you are looking for does not exist or is no longer published.",
	))
}

// ServerError is the 500 page.
func ServerError(site SiteConfig) templ.Component {
	return Layout(site, PageMeta{Title: "Something went wrong"}, message(
		"Something went wrong",
		"Please try again in a moment.",
	))
}
