package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/sethvargo/go-retry"
)

// HTTPClient is the HTTP implementation of Client. Page fetches retry
// transient failures (network errors, 429, 5xx) with fibonacci backoff
// before giving up.
type HTTPClient struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

// Config holds remote store connection settings.
type Config struct {
	BaseURL string
	Token   string
}

// NewHTTPClient creates a client for the remote tabular store.
func NewHTTPClient(cfg Config) *HTTPClient {
	return &HTTPClient{
		baseURL: cfg.BaseURL,
		token:   cfg.Token,
		httpClient: &http.Client{
			Timeout: 15 * time.Second,
		},
	}
}

func (c *HTTPClient) backoff() retry.Backoff {
	return retry.WithMaxRetries(4, retry.NewFibonacci(250*time.Millisecond))
}

// Query fetches one page of records matching the filter formula.
func (c *HTTPClient) Query(ctx context.Context, table, formula, pageToken string) (Page, error) {
	q := url.Values{}
	if formula != "" {
		q.Set("filterByFormula", formula)
	}
	if pageToken != "" {
		q.Set("offset", pageToken)
	}
	endpoint := c.baseURL + "/" + url.PathEscape(table)
	if len(q) > 0 {
		endpoint += "?" + q.Encode()
	}

	var page Page
	err := retry.Do(ctx, c.backoff(), func(ctx context.Context) error {
		page = Page{}
		return c.do(ctx, http.MethodGet, endpoint, nil, &page)
	})
	if err != nil {
		return Page{}, fmt.Errorf("query %s: %w", table, err)
	}
	return page, nil
}

// Get fetches a single record. Returns ErrNotFound for unknown ids.
func (c *HTTPClient) Get(ctx context.Context, table, id string) (Record, error) {
	var rec Record
	endpoint := c.baseURL + "/" + url.PathEscape(table) + "/" + url.PathEscape(id)
	if err := c.do(ctx, http.MethodGet, endpoint, nil, &rec); err != nil {
		return Record{}, fmt.Errorf("get %s/%s: %w", table, id, err)
	}
	return rec, nil
}

// Create inserts a record; the store assigns the id.
func (c *HTTPClient) Create(ctx context.Context, table string, fields map[string]any) (Record, error) {
	var rec Record
	endpoint := c.baseURL + "/" + url.PathEscape(table)
	if err := c.do(ctx, http.MethodPost, endpoint, map[string]any{"fields": fields}, &rec); err != nil {
		return Record{}, fmt.Errorf("create in %s: %w", table, err)
	}
	return rec, nil
}

// Update patches the given fields of a record.
func (c *HTTPClient) Update(ctx context.Context, table, id string, fields map[string]any) (Record, error) {
	var rec Record
	endpoint := c.baseURL + "/" + url.PathEscape(table) + "/" + url.PathEscape(id)
	if err := c.do(ctx, http.MethodPatch, endpoint, map[string]any{"fields": fields}, &rec); err != nil {
		return Record{}, fmt.Errorf("update %s/%s: %w", table, id, err)
	}
	return rec, nil
}

// Delete removes a record. Deleting an absent record returns ErrNotFound.
func (c *HTTPClient) Delete(ctx context.Context, table, id string) error {
	endpoint := c.baseURL + "/" + url.PathEscape(table) + "/" + url.PathEscape(id)
	if err := c.do(ctx, http.MethodDelete, endpoint, nil, nil); err != nil {
		return fmt.Errorf("delete %s/%s: %w", table, id, err)
	}
	return nil
}

func (c *HTTPClient) do(ctx context.Context, method, endpoint string, body any, out any) error {
	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reqBody)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return retry.RetryableError(err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return ErrNotFound
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return retry.RetryableError(fmt.Errorf("remote store returned %d", resp.StatusCode))
	case resp.StatusCode >= 400:
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("remote store returned %d: %s", resp.StatusCode, msg)
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
