package metadata

import (
	"context"
	"errors"
	"iter"

	"github.com/wmlabtx/imgmzx/model"
)

// ErrNotFound is returned when no record exists for a hash.
var ErrNotFound = errors.New("metadata: record not found")

// Store persists records keyed by content hash.
type Store interface {
	// Get returns the record of hash or ErrNotFound.
	Get(ctx context.Context, hash model.ContentHash) (Record, error)
	// Put creates or replaces a whole record, vector included.
	Put(ctx context.Context, rec Record) error
	// SetNext updates only the next-neighbor fields.
	SetNext(ctx context.Context, hash, next model.ContentHash, distance float32) error
	// SetVector updates only the vector.
	SetVector(ctx context.Context, hash model.ContentHash, vec []float32) error
	// Delete removes a record. Deleting a missing record is not an error.
	Delete(ctx context.Context, hash model.ContentHash) error
	// Scan yields every record in hash order.
	Scan(ctx context.Context) iter.Seq2[Record, error]
	// Close releases resources held by the store.
	Close() error
}
