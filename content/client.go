package content

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

const (
	defaultAPIVersion = "2021-10-21"
	defaultAPIHost    = "api.sanity.io"
	defaultCDNHost    = "apicdn.sanity.io"
	defaultImageHost  = "cdn.sanity.io"
	defaultTimeout    = 10 * time.Second
	maxErrorBody      = 64 << 10
)

// Config identifies the content store project. It is passed explicitly to
// NewClient; nothing is read from the environment.
type Config struct {
	ProjectID  string
	Dataset    string
	APIVersion string // e.g. "2021-10-21"
	UseCDN     bool   // serve reads from the edge cache
	Token      string // required for CreateComment

	// BaseURL overrides the scheme and host of every request, images
	// included. Meant for tests and self-hosted proxies.
	BaseURL string
}

func (c *Config) setDefaults() {
	if c.APIVersion == "" {
		c.APIVersion = defaultAPIVersion
	}
	c.APIVersion = strings.TrimPrefix(c.APIVersion, "v")
	c.BaseURL = strings.TrimSuffix(c.BaseURL, "/")
}

// Validate reports whether the config names a project and dataset.
func (c Config) Validate() error {
	if c.ProjectID == "" {
		return errors.New("content: ProjectID is required")
	}
	if c.Dataset == "" {
		return errors.New("content: Dataset is required")
	}
	return nil
}

func (c Config) apiBaseURL(cdn bool) string {
	if c.BaseURL != "" {
		return c.BaseURL
	}
	host := defaultAPIHost
	if cdn {
		host = defaultCDNHost
	}
	return "https://" + c.ProjectID + "." + host
}

func (c Config) imageBaseURL() string {
	if c.BaseURL != "" {
		return c.BaseURL
	}
	return "https://" + defaultImageHost
}

// APIError is a non-2xx answer from the content API.
type APIError struct {
	StatusCode  int
	Type        string
	Description string
}

func (e *APIError) Error() string {
	if e.Description == "" {
		return fmt.Sprintf("content: api returned status %d", e.StatusCode)
	}
	return fmt.Sprintf("content: api returned status %d: %s (%s)", e.StatusCode, e.Description, e.Type)
}

// Client queries the hosted content store over HTTP and implements Backend.
type Client struct {
	cfg    Config
	http   *http.Client
	images *ImageURLBuilder
	logger zerolog.Logger
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) { c.http = hc }
}

// WithLogger sets the logger used for query tracing.
func WithLogger(l zerolog.Logger) ClientOption {
	return func(c *Client) { c.logger = l }
}

// NewClient returns a Client for cfg.
func NewClient(cfg Config, opts ...ClientOption) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	cfg.setDefaults()
	c := &Client{
		cfg:    cfg,
		http:   &http.Client{Timeout: defaultTimeout},
		images: NewImageURLBuilder(cfg),
		logger: zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Fetch runs a read query and decodes its result into dest. Each params
// entry is sent as a JSON encoded $name query parameter.
func (c *Client) Fetch(ctx context.Context, query string, params map[string]any, dest any) error {
	q := url.Values{}
	q.Set("query", query)
	for k, v := range params {
		b, err := json.Marshal(v)
		if err != nil {
			return fmt.Errorf("content: encode param %s: %w", k, err)
		}
		q.Set("$"+k, string(b))
	}
	endpoint := fmt.Sprintf("%s/v%s/data/query/%s?%s",
		c.cfg.apiBaseURL(c.cfg.UseCDN), c.cfg.APIVersion, url.PathEscape(c.cfg.Dataset), q.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("content: build query request: %w", err)
	}
	if c.cfg.Token != "" && !c.cfg.UseCDN {
		req.Header.Set("Authorization", "Bearer "+c.cfg.Token)
	}
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("content: query: %w", err)
	}
	defer resp.Body.Close()
	c.logger.Debug().Int("status", resp.StatusCode).Dur("took", time.Since(start)).Msg("content query")

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return decodeAPIError(resp)
	}
	var envelope struct {
		Result json.RawMessage `json:"result"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return fmt.Errorf("content: decode query response: %w", err)
	}
	if dest == nil || len(envelope.Result) == 0 {
		return nil
	}
	if err := json.Unmarshal(envelope.Result, dest); err != nil {
		return fmt.Errorf("content: decode query result: %w", err)
	}
	return nil
}

// Mutation is one entry of a mutate request, e.g. {"create": {...}}.
type Mutation map[string]any

// Mutate submits mutations in one transaction. Writes always go to the
// live API, never the CDN.
func (c *Client) Mutate(ctx context.Context, mutations ...Mutation) error {
	if c.cfg.Token == "" {
		return ErrNoToken
	}
	body, err := json.Marshal(map[string]any{"mutations": mutations})
	if err != nil {
		return fmt.Errorf("content: encode mutations: %w", err)
	}
	endpoint := fmt.Sprintf("%s/v%s/data/mutate/%s",
		c.cfg.apiBaseURL(false), c.cfg.APIVersion, url.PathEscape(c.cfg.Dataset))

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("content: build mutate request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.cfg.Token)

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("content: mutate: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return decodeAPIError(resp)
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

func decodeAPIError(resp *http.Response) error {
	apiErr := &APIError{StatusCode: resp.StatusCode}
	var payload struct {
		Error struct {
			Type        string `json:"type"`
			Description string `json:"description"`
		} `json:"error"`
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxErrorBody)).Decode(&payload); err == nil {
		apiErr.Type = payload.Error.Type
		apiErr.Description = payload.Error.Description
	}
	return apiErr
}

// ListSlugs returns the slug of every post.
func (c *Client) ListSlugs(ctx context.Context) ([]string, error) {
	var rows []struct {
		ID   string `json:"_id"`
		Slug Slug   `json:"slug"`
	}
	if err := c.Fetch(ctx, slugsQuery, nil, &rows); err != nil {
		return nil, err
	}
	slugs := make([]string, 0, len(rows))
	for _, r := range rows {
		if r.Slug.Current == "" {
			continue
		}
		slugs = append(slugs, r.Slug.Current)
	}
	return slugs, nil
}

// ListPosts returns every post newest first, without body or comments.
func (c *Client) ListPosts(ctx context.Context) ([]Post, error) {
	var posts []Post
	if err := c.Fetch(ctx, postsQuery, nil, &posts); err != nil {
		return nil, err
	}
	return posts, nil
}

// PostBySlug returns the post with the given slug, its author expanded and
// its comments limited to approved ones.
func (c *Client) PostBySlug(ctx context.Context, slug string) (*Post, error) {
	var post *Post
	if err := c.Fetch(ctx, postBySlugQuery, map[string]any{"slug": slug}, &post); err != nil {
		return nil, err
	}
	if post == nil {
		return nil, ErrNotFound
	}
	return post, nil
}

// CreateComment stores an unapproved comment that references the post.
// A post id that matches no post gives ErrNotFound.
func (c *Client) CreateComment(ctx context.Context, in NewComment) error {
	if c.cfg.Token == "" {
		return ErrNoToken
	}
	var n int
	if err := c.Fetch(ctx, postExistsQuery, map[string]any{"id": in.PostID}, &n); err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("content: comment on post %q: %w", in.PostID, ErrNotFound)
	}
	return c.Mutate(ctx, Mutation{
		"create": map[string]any{
			"_type": "comment",
			"post": map[string]string{
				"_type": "reference",
				"_ref":  in.PostID,
			},
			"name":     in.Name,
			"email":    in.Email,
			"comment":  in.Comment,
			"approved": false,
		},
	})
}

// ImageURL resolves img through the image CDN.
func (c *Client) ImageURL(img Image, opts ...ImageOption) string {
	return c.images.ImageURL(img, opts...)
}
