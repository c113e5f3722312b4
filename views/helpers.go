package views

import (
	"encoding/json"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/a-h/templ"

	"github.com/eringen/pubfront/content"
)

// BylineLayout is how post creation times are shown.
const BylineLayout = "1/2/2006, 3:04:05 PM"

// buildURL joins path segments onto a base URL, ensuring a trailing slash.
func buildURL(base string, pathSegments ...string) string {
	u, err := url.Parse(base)
	if err != nil {
		return base
	}
	u.Path = path.Join(u.Path, path.Join(pathSegments...))
	if len(pathSegments) > 0 && !strings.HasSuffix(u.Path, "/") {
		u.Path += "/"
	}
	return u.String()
}

// PostPath is the site-relative URL of a post.
func PostPath(slug string) string {
	return "/post/" + url.PathEscape(slug) + "/"
}

// FormatByline formats t in loc for the post byline.
func FormatByline(t time.Time, loc *time.Location) string {
	return t.In(loc).Format(BylineLayout)
}

func pageTitle(site SiteConfig, meta PageMeta) string {
	if meta.Title == "" || meta.Title == site.Name {
		return site.Name
	}
	return meta.Title + " | " + site.Name
}

func pageDescription(site SiteConfig, meta PageMeta) string {
	if meta.Description == "" {
		return site.Description
	}
	return meta.Description
}

func ogType(meta PageMeta) string {
	if meta.OGType == "" {
		return "website"
	}
	return meta.OGType
}

// jsonLD embeds an already marshalled JSON-LD document.
func jsonLD(data string) templ.Component {
	return templ.Raw(`<script type="application/ld+json">` + data + `</script>`)
}

// WebsiteJsonLD produces a Schema.org WebSite JSON-LD block using cfg values.
func WebsiteJsonLD(cfg SiteConfig) string {
	data := map[string]interface{}{
		"@context": "https://schema.org",
		"@type":    "WebSite",
		"name":     cfg.Name,
		"url":      buildURL(cfg.URL),
	}
	if cfg.Description != "" {
		data["description"] = cfg.Description
	}
	if cfg.Author != "" {
		data["author"] = map[string]string{
			"@type": "Person",
			"name":  cfg.Author,
		}
	}
	b, err := json.Marshal(data)
	if err != nil {
		return "{}"
	}
	return string(b)
}

// BlogPostingJsonLD produces a Schema.org BlogPosting JSON-LD block for a post.
func BlogPostingJsonLD(cfg SiteConfig, post *content.Post, image string) string {
	postURL := buildURL(cfg.URL, "post", post.Slug.Current)
	data := map[string]interface{}{
		"@context":      "https://schema.org",
		"@type":         "BlogPosting",
		"headline":      post.Title,
		"description":   post.Description,
		"datePublished": post.CreatedAt.UTC().Format(time.RFC3339),
		"url":           postURL,
		"publisher": map[string]string{
			"@type": "Organization",
			"name":  cfg.Name,
		},
		"mainEntityOfPage": map[string]string{
			"@type": "WebPage",
			"@id":   postURL,
		},
	}
	if post.Author.Name != "" {
		data["author"] = map[string]string{
			"@type": "Person",
			"name":  post.Author.Name,
		}
	}
	if image != "" {
		data["image"] = image
	}
	b, err := json.Marshal(data)
	if err != nil {
		return "{}"
	}
	return string(b)
}
