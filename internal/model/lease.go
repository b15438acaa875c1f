package model

import "time"

// Lease is a time-bounded exclusive claim on a logical resource, stored as
// one document per lock id. An expired lease is simply ignored and
// overwritten by the next acquirer; there is no sweeper.
type Lease struct {
	LockID    string    `json:"lock_id"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Expired reports whether the lease has lapsed at the given instant.
func (l Lease) Expired(now time.Time) bool {
	return !l.ExpiresAt.After(now)
}
