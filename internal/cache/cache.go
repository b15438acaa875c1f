// Package cache serves typed snapshots of remote tables. Each table gets
// one TableCache that validates against a persisted mirror's version tag
// before re-reading, and coalesces concurrent refreshes so a burst of
// readers costs one remote fetch.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/tovarim/mealrota/internal/mirror"
	"github.com/tovarim/mealrota/internal/remote"
)

// Source describes how to load one table: the remote table name, the
// server-side filter formula, and the record mapper.
type Source[T any] struct {
	Table   string
	Formula string
	Map     func(remote.Record) (T, error)
}

type entry[T any] struct {
	data      []T
	tag       string
	fetchedAt time.Time
}

type mirrorPayload struct {
	FetchedAtMS int64           `json:"fetched_at_ms"`
	Records     []remote.Record `json:"records"`
}

// TableCache is the cached view of one remote table. The in-memory entry
// is replaced only by the cache's own refresh; readers never mutate it.
type TableCache[T any] struct {
	source  Source[T]
	tables  remote.Client
	mirrors mirror.Store
	ttl     time.Duration
	logger  *slog.Logger

	mu    sync.RWMutex
	entry *entry[T]
	sf    singleflight.Group
}

// New creates a cache for one table. A ttl of 0 disables the freshness
// shortcut, so every Get validates against the mirror tag.
func New[T any](src Source[T], tables remote.Client, mirrors mirror.Store, ttl time.Duration, logger *slog.Logger) *TableCache[T] {
	return &TableCache[T]{
		source:  src,
		tables:  tables,
		mirrors: mirrors,
		ttl:     ttl,
		logger:  logger,
	}
}

// Get returns the cached dataset, optionally filtered. Concurrent callers
// arriving during a refresh all wait on the same in-flight refresh. When
// a refresh fails but an earlier snapshot exists, the stale snapshot is
// returned instead of the error.
func (c *TableCache[T]) Get(ctx context.Context, pred func(T) bool) ([]T, error) {
	c.mu.RLock()
	e := c.entry
	c.mu.RUnlock()

	if e != nil && c.ttl > 0 && time.Since(e.fetchedAt) < c.ttl {
		return filter(e.data, pred), nil
	}

	v, err, _ := c.sf.Do(c.source.Table, func() (any, error) {
		// A caller that queued behind a completed refresh sees the
		// fresh entry and skips its own.
		c.mu.RLock()
		cur := c.entry
		c.mu.RUnlock()
		if cur != nil && c.ttl > 0 && time.Since(cur.fetchedAt) < c.ttl {
			return cur.data, nil
		}
		return c.refresh(ctx)
	})
	if err != nil {
		if e != nil {
			c.logger.Warn("cache refresh failed, serving stale data",
				"table", c.source.Table, "error", err)
			return filter(e.data, pred), nil
		}
		return nil, fmt.Errorf("refresh %s: %w", c.source.Table, err)
	}
	return filter(v.([]T), pred), nil
}

// Evict drops the persisted mirror and the in-memory entry. Called after
// writes that invalidate cached reads.
func (c *TableCache[T]) Evict(ctx context.Context) error {
	if err := c.mirrors.Delete(ctx, c.mirrorKey()); err != nil {
		return fmt.Errorf("evict %s: %w", c.source.Table, err)
	}
	c.mu.Lock()
	c.entry = nil
	c.mu.Unlock()
	c.sf.Forget(c.source.Table)
	return nil
}

func (c *TableCache[T]) mirrorKey() string {
	return "mirrors/" + c.source.Table + ".json"
}

func (c *TableCache[T]) refresh(ctx context.Context) ([]T, error) {
	key := c.mirrorKey()

	tag, err := c.mirrors.Head(ctx, key)
	mirrorPresent := err == nil
	if err != nil && !errors.Is(err, mirror.ErrNotFound) {
		c.logger.Warn("mirror head failed, treating as absent", "table", c.source.Table, "error", err)
	}

	c.mu.RLock()
	e := c.entry
	c.mu.RUnlock()

	// Unchanged mirror: the in-memory entry is current.
	if e != nil && mirrorPresent && e.tag == tag {
		c.mu.Lock()
		c.entry = &entry[T]{data: e.data, tag: e.tag, fetchedAt: time.Now()}
		data := c.entry.data
		c.mu.Unlock()
		return data, nil
	}

	if mirrorPresent {
		if data, adopted, err := c.adoptMirror(ctx, key); err == nil && adopted {
			return data, nil
		} else if err != nil {
			c.logger.Warn("mirror read failed, refreshing from source", "table", c.source.Table, "error", err)
		}
	}

	return c.refreshFromSource(ctx, key)
}

// adoptMirror loads the persisted snapshot and installs it in memory.
func (c *TableCache[T]) adoptMirror(ctx context.Context, key string) ([]T, bool, error) {
	raw, tag, err := c.mirrors.Read(ctx, key)
	if err != nil {
		if errors.Is(err, mirror.ErrNotFound) {
			return nil, false, nil
		}
		return nil, false, err
	}

	var payload mirrorPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, false, fmt.Errorf("decode mirror: %w", err)
	}

	data, err := c.mapRecords(payload.Records)
	if err != nil {
		return nil, false, err
	}

	c.mu.Lock()
	c.entry = &entry[T]{data: data, tag: tag, fetchedAt: time.UnixMilli(payload.FetchedAtMS)}
	c.mu.Unlock()
	return data, true, nil
}

// refreshFromSource pages through the remote query, persists the result
// as the new mirror, and installs it in memory. A failed page fetch
// aborts the whole refresh and leaves the previous entry intact.
func (c *TableCache[T]) refreshFromSource(ctx context.Context, key string) ([]T, error) {
	records, err := remote.QueryAll(ctx, c.tables, c.source.Table, c.source.Formula)
	if err != nil {
		return nil, err
	}

	data, err := c.mapRecords(records)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	tag := ""
	payload, err := json.Marshal(mirrorPayload{FetchedAtMS: now.UnixMilli(), Records: records})
	if err != nil {
		return nil, fmt.Errorf("encode mirror: %w", err)
	}
	if err := c.mirrors.Write(ctx, key, payload); err != nil {
		// The snapshot is still good; the next Get will retry the
		// persist via a full refresh.
		c.logger.Warn("mirror write failed", "table", c.source.Table, "error", err)
	} else if t, err := c.mirrors.Head(ctx, key); err == nil {
		tag = t
	}

	c.mu.Lock()
	c.entry = &entry[T]{data: data, tag: tag, fetchedAt: now}
	c.mu.Unlock()
	return data, nil
}

func (c *TableCache[T]) mapRecords(records []remote.Record) ([]T, error) {
	data := make([]T, 0, len(records))
	for _, rec := range records {
		v, err := c.source.Map(rec)
		if err != nil {
			return nil, fmt.Errorf("map record %s: %w", rec.ID, err)
		}
		data = append(data, v)
	}
	return data, nil
}

func filter[T any](data []T, pred func(T) bool) []T {
	if pred == nil {
		out := make([]T, len(data))
		copy(out, data)
		return out
	}
	var out []T
	for _, v := range data {
		if pred(v) {
			out = append(out, v)
		}
	}
	return out
}
