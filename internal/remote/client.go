// Package remote talks to the external tabular store that holds the
// families, exceptions and bookings tables. Reads page through filter
// formulas; writes address single records by id.
package remote

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a record id does not exist in its table.
var ErrNotFound = errors.New("remote: record not found")

// Record is one row of a remote table: a store-assigned id plus a loose
// field map. Mapper functions in the callers convert records into typed
// domain values.
type Record struct {
	ID     string         `json:"id"`
	Fields map[string]any `json:"fields"`
}

// Page is one page of query results. An empty NextToken means the query
// is exhausted.
type Page struct {
	Records   []Record `json:"records"`
	NextToken string   `json:"offset,omitempty"`
}

// Client is the raw table client. Query returns at most one page per call;
// callers pass the returned NextToken back in to continue.
type Client interface {
	Query(ctx context.Context, table, formula, pageToken string) (Page, error)
	Get(ctx context.Context, table, id string) (Record, error)
	Create(ctx context.Context, table string, fields map[string]any) (Record, error)
	Update(ctx context.Context, table, id string, fields map[string]any) (Record, error)
	Delete(ctx context.Context, table, id string) error
}

// QueryAll drains every page of a query into one slice.
func QueryAll(ctx context.Context, c Client, table, formula string) ([]Record, error) {
	var all []Record
	token := ""
	for {
		page, err := c.Query(ctx, table, formula, token)
		if err != nil {
			return nil, err
		}
		all = append(all, page.Records...)
		if page.NextToken == "" {
			return all, nil
		}
		token = page.NextToken
	}
}

// String returns the named field as a string, or "" when absent or not
// a string.
func (r Record) String(key string) string {
	s, _ := r.Fields[key].(string)
	return s
}

// Bool returns the named field as a bool; absent fields read as false.
func (r Record) Bool(key string) bool {
	b, _ := r.Fields[key].(bool)
	return b
}

// Date returns the named field parsed as a calendar date. Accepts the
// store's plain date format and RFC3339, truncated to midnight UTC.
func (r Record) Date(key string) (time.Time, bool) {
	s := r.String(key)
	if s == "" {
		return time.Time{}, false
	}
	if t, err := time.Parse("2006-01-02", s); err == nil {
		return t, true
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, false
	}
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC), true
}
