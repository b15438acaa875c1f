package lock

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/tovarim/mealrota/internal/model"
)

// DefaultLeaseDuration bounds how long a crashed holder can keep a slot
// locked before the next acquirer overwrites the lease.
const DefaultLeaseDuration = 60 * time.Second

type leaseDoc struct {
	LockID      string `json:"lock_id"`
	ExpiresAtMS int64  `json:"expires_at_ms"`
}

// LeaseLock grants at most one live lease per lock id. Expired leases are
// not swept; they are ignored and overwritten by the next Acquire.
type LeaseLock struct {
	docs DocStore
	now  func() time.Time
}

func New(docs DocStore) *LeaseLock {
	return &LeaseLock{docs: docs, now: time.Now}
}

func leasePath(lockID string) string {
	return "locks/" + lockID
}

// Acquire attempts to take the lease for lockID. Returns nil (and no
// error) when somebody else holds a live lease. A duration <= 0 uses
// DefaultLeaseDuration.
func (l *LeaseLock) Acquire(ctx context.Context, lockID string, duration time.Duration) (*model.Lease, error) {
	if duration <= 0 {
		duration = DefaultLeaseDuration
	}

	now := l.now()
	expires := now.Add(duration)
	held := false

	err := l.docs.RunTransaction(ctx, func(tx Tx) error {
		raw, exists, err := tx.Get(leasePath(lockID))
		if err != nil {
			return err
		}
		if exists {
			var doc leaseDoc
			if err := json.Unmarshal(raw, &doc); err != nil {
				return fmt.Errorf("decode lease %s: %w", lockID, err)
			}
			if doc.ExpiresAtMS > now.UnixMilli() {
				held = true
				return nil
			}
		}

		data, err := json.Marshal(leaseDoc{LockID: lockID, ExpiresAtMS: expires.UnixMilli()})
		if err != nil {
			return fmt.Errorf("encode lease %s: %w", lockID, err)
		}
		return tx.Set(leasePath(lockID), data)
	})
	if err != nil {
		return nil, fmt.Errorf("acquire lease %s: %w", lockID, err)
	}
	if held {
		return nil, nil
	}
	return &model.Lease{LockID: lockID, ExpiresAt: expires}, nil
}

// Release deletes the lease document. Releasing an expired or absent
// lease is not an error.
func (l *LeaseLock) Release(ctx context.Context, lease *model.Lease) error {
	if lease == nil {
		return nil
	}
	err := l.docs.RunTransaction(ctx, func(tx Tx) error {
		return tx.Delete(leasePath(lease.LockID))
	})
	if err != nil {
		return fmt.Errorf("release lease %s: %w", lease.LockID, err)
	}
	return nil
}
