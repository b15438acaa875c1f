// Package mirror persists snapshots of remote table query results in an
// S3-compatible object store. The object's ETag doubles as the cache's
// remote version tag: a changed tag means the mirror was rewritten and
// in-memory copies are stale.
package mirror

import (
	"context"
	"errors"
)

// ErrNotFound is returned when no mirror object exists at the key.
var ErrNotFound = errors.New("mirror: object not found")

// Store reads and writes mirror objects keyed by table name.
type Store interface {
	// Head returns the current version tag without fetching the body.
	Head(ctx context.Context, key string) (string, error)
	// Read returns the object body and its version tag.
	Read(ctx context.Context, key string) ([]byte, string, error)
	Write(ctx context.Context, key string, data []byte) error
	Delete(ctx context.Context, key string) error
}
