package comments

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Endpoint receives a validated comment.
type Endpoint interface {
	Submit(ctx context.Context, in Input) error
}

// EndpointFunc adapts a function to Endpoint.
type EndpointFunc func(ctx context.Context, in Input) error

func (f EndpointFunc) Submit(ctx context.Context, in Input) error {
	return f(ctx, in)
}

// StatusError is a non-2xx answer from an HTTPEndpoint.
type StatusError struct {
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("comments: endpoint returned status %d", e.StatusCode)
}

// HTTPEndpoint posts the comment as JSON to URL. Only a 2xx response
// counts as accepted.
type HTTPEndpoint struct {
	URL    string
	Client *http.Client
}

// NewHTTPEndpoint returns an HTTPEndpoint with a 10 second client timeout.
func NewHTTPEndpoint(url string) *HTTPEndpoint {
	return &HTTPEndpoint{URL: url, Client: &http.Client{Timeout: 10 * time.Second}}
}

func (e *HTTPEndpoint) Submit(ctx context.Context, in Input) error {
	body, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("comments: encode: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.URL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("comments: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	client := e.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("comments: post: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &StatusError{StatusCode: resp.StatusCode}
	}
	return nil
}
