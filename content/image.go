package content

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

// Asset is a parsed image asset reference.
type Asset struct {
	ID     string
	Width  int
	Height int
	Format string
}

// ParseAssetRef parses an image reference of the form
// image-<id>-<width>x<height>-<format>.
func ParseAssetRef(ref string) (Asset, error) {
	parts := strings.Split(ref, "-")
	if len(parts) < 4 || parts[0] != "image" {
		return Asset{}, fmt.Errorf("content: malformed image ref %q", ref)
	}
	format := parts[len(parts)-1]
	dims := parts[len(parts)-2]
	id := strings.Join(parts[1:len(parts)-2], "-")
	w, h, ok := strings.Cut(dims, "x")
	if !ok || id == "" || format == "" {
		return Asset{}, fmt.Errorf("content: malformed image ref %q", ref)
	}
	width, err := strconv.Atoi(w)
	if err != nil {
		return Asset{}, fmt.Errorf("content: image ref %q width: %w", ref, err)
	}
	height, err := strconv.Atoi(h)
	if err != nil {
		return Asset{}, fmt.Errorf("content: image ref %q height: %w", ref, err)
	}
	return Asset{ID: id, Width: width, Height: height, Format: format}, nil
}

// ImageOptions are the transformations requested for an image URL.
type ImageOptions struct {
	Width      int
	Height     int
	AutoFormat bool
}

// ImageOption configures an image URL.
type ImageOption func(*ImageOptions)

// Width requests an image scaled to w pixels wide.
func Width(w int) ImageOption {
	return func(o *ImageOptions) { o.Width = w }
}

// Height requests an image scaled to h pixels high.
func Height(h int) ImageOption {
	return func(o *ImageOptions) { o.Height = h }
}

// AutoFormat lets the image CDN pick the best format for the browser.
func AutoFormat() ImageOption {
	return func(o *ImageOptions) { o.AutoFormat = true }
}

// BuildImageOptions applies opts to a zero ImageOptions.
func BuildImageOptions(opts ...ImageOption) ImageOptions {
	var o ImageOptions
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// ImageURLBuilder builds image CDN URLs for one project and dataset.
type ImageURLBuilder struct {
	baseURL   string
	projectID string
	dataset   string
}

// NewImageURLBuilder returns a builder for the configured project.
func NewImageURLBuilder(cfg Config) *ImageURLBuilder {
	cfg.setDefaults()
	return &ImageURLBuilder{
		baseURL:   cfg.imageBaseURL(),
		projectID: cfg.ProjectID,
		dataset:   cfg.Dataset,
	}
}

// ImageURL returns the CDN URL of img, or "" when the reference is empty or
// malformed.
func (b *ImageURLBuilder) ImageURL(img Image, opts ...ImageOption) string {
	if img.Asset.Ref == "" {
		return ""
	}
	asset, err := ParseAssetRef(img.Asset.Ref)
	if err != nil {
		return ""
	}
	u := fmt.Sprintf("%s/images/%s/%s/%s-%dx%d.%s",
		b.baseURL, url.PathEscape(b.projectID), url.PathEscape(b.dataset),
		asset.ID, asset.Width, asset.Height, asset.Format)

	o := BuildImageOptions(opts...)
	q := url.Values{}
	if o.Width > 0 {
		q.Set("w", strconv.Itoa(o.Width))
	}
	if o.Height > 0 {
		q.Set("h", strconv.Itoa(o.Height))
	}
	if o.AutoFormat {
		q.Set("auto", "format")
	}
	if len(q) > 0 {
		u += "?" + q.Encode()
	}
	return u
}
