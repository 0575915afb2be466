// Package lock serialises placement operations per key (one key per student).
package lock

import (
	"context"
	"errors"
)

// ErrLeaseLost is returned by Release when the lease expired and was taken over.
var ErrLeaseLost = errors.New("lock lease lost")

// Locker hands out exclusive leases on string keys.
type Locker interface {
	// Acquire blocks until the key is free, the wait budget is spent or ctx
	// is done. Failures are LOCK_UNAVAILABLE errors.
	Acquire(ctx context.Context, key string) (Lease, error)
}

// Lease is held until Release.
type Lease interface {
	Release(ctx context.Context) error
}

// StudentKey is the lock key guarding one student's applications and placement.
func StudentKey(studentID string) string {
	return "student:" + studentID
}

// RepresentativeKey guards a representative's opportunity list.
func RepresentativeKey(representativeID string) string {
	return "representative:" + representativeID
}
