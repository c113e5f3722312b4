package portabletext

import (
	"bytes"
	"context"
	"html"
	"io"
	"net/url"
	"strings"

	"github.com/a-h/templ"
)

// rule is the presentation of one block style.
type rule struct {
	tag   string
	class string
}

var styleRules = map[string]rule{
	"normal":     {"p", "my-3"},
	"h1":         {"h1", "my-5 text-2xl font-bold"},
	"h2":         {"h2", "my-5 text-xl font-bold"},
	"h3":         {"h3", "my-4 text-lg font-bold"},
	"h4":         {"h4", "my-3 font-bold"},
	"h5":         {"h5", "my-3 font-semibold"},
	"h6":         {"h6", "my-3 font-semibold"},
	"blockquote": {"blockquote", "my-5 border-l-4 border-green-600 pl-4 italic"},
}

var listTags = map[string]string{
	"bullet": "ul",
	"number": "ol",
}

const (
	listItemClass = "ml-4 list-disc"
	linkClass     = "text-blue-500 hover:underline"
	imageClass    = "my-5 w-full object-cover"
)

// decorators maps a span decorator to its opening and closing tags.
var decorators = map[string][2]string{
	"strong":         {"<strong>", "</strong>"},
	"em":             {"<em>", "</em>"},
	"code":           {"<code>", "</code>"},
	"underline":      {`<span class="underline">`, "</span>"},
	"strike-through": {"<s>", "</s>"},
}

// ImageURLFunc resolves an asset reference to a URL at the given width
// (0 for the original size). An empty result drops the image.
type ImageURLFunc func(ref string, width int) string

// Renderer turns Blocks into HTML.
type Renderer struct {
	ImageURL   ImageURLFunc
	ImageWidth int
}

// Component returns a templ.Component that renders blocks.
func (r Renderer) Component(blocks Blocks) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		var buf bytes.Buffer
		r.Render(&buf, blocks)
		_, err := w.Write(buf.Bytes())
		return err
	})
}

type openList struct {
	tag    string
	liOpen bool
}

// Render writes the HTML for blocks to buf. Blocks of unknown type are
// skipped.
func (r Renderer) Render(buf *bytes.Buffer, blocks Blocks) {
	var stack []openList

	closeTo := func(depth int) {
		for len(stack) > depth {
			top := stack[len(stack)-1]
			if top.liOpen {
				buf.WriteString("</li>")
			}
			buf.WriteString("</" + top.tag + ">")
			stack = stack[:len(stack)-1]
		}
	}

	for _, b := range blocks {
		switch v := b.(type) {
		case *TextBlock:
			if v.ListItem == "" {
				closeTo(0)
				r.renderText(buf, v)
				continue
			}
			tag, ok := listTags[v.ListItem]
			if !ok {
				tag = "ul"
			}
			level := v.Level
			if level < 1 {
				level = 1
			}
			closeTo(level)
			if len(stack) == level && stack[level-1].tag != tag {
				closeTo(level - 1)
			}
			if len(stack) == level && stack[level-1].liOpen {
				buf.WriteString("</li>")
				stack[level-1].liOpen = false
			}
			for len(stack) < level {
				buf.WriteString("<" + tag + ">")
				stack = append(stack, openList{tag: tag})
			}
			buf.WriteString(`<li class="` + listItemClass + `">`)
			r.renderSpans(buf, v)
			stack[len(stack)-1].liOpen = true
		case *ImageBlock:
			closeTo(0)
			r.renderImage(buf, v)
		case *UnknownBlock:
			closeTo(0)
		}
	}
	closeTo(0)
}

func (r Renderer) renderText(buf *bytes.Buffer, b *TextBlock) {
	ru, ok := styleRules[b.Style]
	if !ok {
		ru = styleRules["normal"]
	}
	buf.WriteString("<" + ru.tag)
	if ru.class != "" {
		buf.WriteString(` class="` + ru.class + `"`)
	}
	buf.WriteString(">")
	r.renderSpans(buf, b)
	buf.WriteString("</" + ru.tag + ">")
}

func (r Renderer) renderSpans(buf *bytes.Buffer, b *TextBlock) {
	defs := make(map[string]MarkDef, len(b.MarkDefs))
	for _, d := range b.MarkDefs {
		defs[d.Key] = d
	}
	for _, s := range b.Children {
		if s.Type != "" && s.Type != "span" {
			continue
		}
		text := strings.ReplaceAll(html.EscapeString(s.Text), "\n", "<br/>")
		var open, closing []string
		for _, m := range s.Marks {
			if d, ok := decorators[m]; ok {
				open = append(open, d[0])
				closing = append(closing, d[1])
				continue
			}
			def, ok := defs[m]
			if !ok || def.Type != "link" {
				continue
			}
			href := SafeURL(def.Href)
			if href == "" {
				continue
			}
			open = append(open, `<a href="`+href+`" class="`+linkClass+`">`)
			closing = append(closing, "</a>")
		}
		for _, o := range open {
			buf.WriteString(o)
		}
		buf.WriteString(text)
		for i := len(closing) - 1; i >= 0; i-- {
			buf.WriteString(closing[i])
		}
	}
}

func (r Renderer) renderImage(buf *bytes.Buffer, b *ImageBlock) {
	if r.ImageURL == nil {
		return
	}
	src := r.ImageURL(b.Asset.Ref, r.ImageWidth)
	if src == "" {
		return
	}
	buf.WriteString(`<figure><img class="` + imageClass + `" src="` + html.EscapeString(src) + `" alt="` + html.EscapeString(b.Alt) + `" loading="lazy" decoding="async"/>`)
	if b.Caption != "" {
		buf.WriteString(`<figcaption class="text-sm text-gray-500">` + html.EscapeString(b.Caption) + `</figcaption>`)
	}
	buf.WriteString("</figure>")
}

// SafeURL validates and sanitizes a URL for use in HTML attributes.
// Only relative, fragment, http, https, mailto and tel URLs survive.
func SafeURL(raw string) string {
	val := strings.TrimSpace(html.UnescapeString(raw))
	if val == "" {
		return ""
	}
	if strings.HasPrefix(val, "/") || strings.HasPrefix(val, "#") {
		return html.EscapeString(val)
	}
	parsed, err := url.Parse(val)
	if err != nil || parsed.Scheme == "" {
		return ""
	}
	switch strings.ToLower(parsed.Scheme) {
	case "http", "https", "mailto", "tel":
		return html.EscapeString(val)
	default:
		return ""
	}
}
