// Package apiclient calls the ClaimWildCats items API.
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/erazemk/claimwildcats/internal/model"
)

// TokenSource returns a bearer token for the caller in ctx, or "" for an
// anonymous request.
type TokenSource func(ctx context.Context) (string, error)

// StatusError is returned for any non-2xx response.
type StatusError struct {
	StatusCode int
	Status     string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%d %s", e.StatusCode, e.Status)
}

// Query is anything that can be encoded as list query parameters.
type Query interface {
	Values() url.Values
}

// Client sends JSON requests to the items API.
type Client struct {
	baseURL string
	tokens  TokenSource
	client  *http.Client
}

// New creates a client for baseURL. A nil httpClient selects a client with a
// 15 second timeout.
func New(baseURL string, tokens TokenSource, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 15 * time.Second}
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		tokens:  tokens,
		client:  httpClient,
	}
}

// Request sends body (if non-nil) as JSON and decodes the response into out
// (if non-nil). The bearer token is fetched from the token source on every
// call.
func (c *Client) Request(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encoding request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	if c.tokens != nil {
		token, err := c.tokens(ctx)
		if err != nil {
			return fmt.Errorf("getting id token: %w", err)
		}
		if token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		io.Copy(io.Discard, resp.Body)
		return &StatusError{StatusCode: resp.StatusCode, Status: statusText(resp)}
	}

	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}

func statusText(resp *http.Response) string {
	text := strings.TrimSpace(strings.TrimPrefix(resp.Status, strconv.Itoa(resp.StatusCode)))
	if text == "" {
		text = http.StatusText(resp.StatusCode)
	}
	return text
}

// ListItems fetches one page of items.
func (c *Client) ListItems(ctx context.Context, q Query) (*model.ItemPage, error) {
	path := "/api/items"
	if q != nil {
		if v := q.Values().Encode(); v != "" {
			path += "?" + v
		}
	}
	var page model.ItemPage
	if err := c.Request(ctx, http.MethodGet, path, nil, &page); err != nil {
		return nil, err
	}
	return &page, nil
}

// GetItem fetches a single item.
func (c *Client) GetItem(ctx context.Context, id string) (*model.Item, error) {
	var item model.Item
	if err := c.Request(ctx, http.MethodGet, "/api/items/"+url.PathEscape(id), nil, &item); err != nil {
		return nil, err
	}
	return &item, nil
}

// SimilarItems fetches the items the API considers likely matches for id.
func (c *Client) SimilarItems(ctx context.Context, id string) ([]model.Item, error) {
	var items []model.Item
	if err := c.Request(ctx, http.MethodGet, "/api/items/"+url.PathEscape(id)+"/similar", nil, &items); err != nil {
		return nil, err
	}
	return items, nil
}

// CreateItem files a lost or found report and returns the created item.
func (c *Client) CreateItem(ctx context.Context, status string, req model.CreateItemRequest) (*model.Item, error) {
	if !model.ValidReportStatus(status) {
		return nil, fmt.Errorf("invalid report status: %q", status)
	}
	var item model.Item
	if err := c.Request(ctx, http.MethodPost, "/api/items/"+status, req, &item); err != nil {
		return nil, err
	}
	return &item, nil
}
