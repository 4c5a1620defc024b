package openlibrary

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
)

// DefaultBaseURL is the public Open Library host.
const DefaultBaseURL = "https://openlibrary.org"

// SearchResponse is the envelope of /search.json. Docs are kept raw; callers
// validate them one by one.
type SearchResponse struct {
	Start    int               `json:"start"`
	NumFound int               `json:"num_found"`
	Docs     []json.RawMessage `json:"docs"`
}

// Config holds Open Library client settings.
type Config struct {
	BaseURL string
	Timeout time.Duration
}

// Client queries the Open Library search API.
type Client struct {
	baseURL string
	timeout time.Duration
}

// NewClient creates a new Open Library client. Empty settings fall back to defaults.
func NewClient(cfg Config) *Client {
	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{baseURL: baseURL, timeout: timeout}
}

// Search runs a full-text search and returns the raw result documents.
// The request is bounded by the client timeout and by ctx.
func (c *Client) Search(ctx context.Context, query string) (*SearchResponse, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	timeout := c.timeout
	if deadline, ok := ctx.Deadline(); ok {
		if remaining := time.Until(deadline); remaining < timeout {
			timeout = remaining
		}
	}

	agent := fiber.Get(c.baseURL + "/search.json")
	agent.QueryString("q=" + url.QueryEscape(query))
	agent.Timeout(timeout)

	type result struct {
		code int
		body []byte
		errs []error
	}
	done := make(chan result, 1)
	go func() {
		code, body, errs := agent.Bytes()
		done <- result{code: code, body: body, errs: errs}
	}()

	var r result
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("open library search %q: %w", query, ctx.Err())
	case r = <-done:
	}
	if len(r.errs) > 0 {
		return nil, fmt.Errorf("open library search %q: %w", query, errors.Join(r.errs...))
	}
	if r.code != fiber.StatusOK {
		return nil, fmt.Errorf("open library search %q returned status %d", query, r.code)
	}

	var res SearchResponse
	if err := json.Unmarshal(r.body, &res); err != nil {
		return nil, fmt.Errorf("decode open library response: %w", err)
	}
	if res.Docs == nil {
		res.Docs = []json.RawMessage{}
	}
	return &res, nil
}
