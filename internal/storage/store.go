// Package storage holds the record stores the placement engine runs on.
// Every store offers serializable single-record read-modify-write through
// Update; there are no transactions across stores.
package storage

import (
	"context"

	"github.com/google/uuid"
)

// Record is implemented by value types kept in a Store.
type Record[T any] interface {
	RecordID() string
	WithID(id string) T
	Clone() T
}

// Store is a keyed collection of one entity type.
type Store[T Record[T]] interface {
	// FindByID returns the record and whether it exists.
	FindByID(ctx context.Context, id string) (T, bool, error)
	// FindAll returns every record accepted by filter; a nil filter accepts all.
	FindAll(ctx context.Context, filter func(T) bool) ([]T, error)
	// Save upserts the record, assigning an id when it has none.
	Save(ctx context.Context, rec T) (T, error)
	// DeleteByID reports whether a record was removed.
	DeleteByID(ctx context.Context, id string) (bool, error)
	// Update applies fn to the current record under an exclusive lock and
	// persists the result. Errors from fn abort the update and are returned
	// unchanged. A missing id yields a NOT_FOUND error.
	Update(ctx context.Context, id string, fn func(*T) error) (T, error)
}

// NewID generates a record id.
func NewID() string {
	return uuid.NewString()
}
