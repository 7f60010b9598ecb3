package imgmzx

import (
	"errors"
	"fmt"

	"github.com/wmlabtx/imgmzx/blobstore"
	"github.com/wmlabtx/imgmzx/engine"
	"github.com/wmlabtx/imgmzx/metadata"
	"github.com/wmlabtx/imgmzx/model"
	"github.com/wmlabtx/imgmzx/vectorstore"
)

var (
	// ErrNotFound is returned when no verified copy or record exists.
	ErrNotFound = errors.New("not found")

	// ErrInvalidConfig is returned for an unusable Config.
	ErrInvalidConfig = errors.New("invalid config")

	// ErrInvalidHash is returned for a malformed content hash.
	ErrInvalidHash = model.ErrInvalidHash

	// ErrLost is returned by Refresh for an object whose every copy failed
	// verification. Its record has been removed.
	ErrLost = engine.ErrLost

	// ErrNoEmbedder is returned when a vector must be computed but the DB
	// was opened without WithEmbedder.
	ErrNoEmbedder = errors.New("no embedder configured")

	// ErrClosed is returned by operations on a closed DB.
	ErrClosed = errors.New("db closed")
)

// ErrDimensionMismatch indicates a vector dimensionality mismatch.
//
// The original underlying error (if any) can be accessed via errors.Unwrap.
type ErrDimensionMismatch struct {
	Expected int
	Actual   int
	cause    error
}

func (e *ErrDimensionMismatch) Error() string {
	return fmt.Sprintf("dimension mismatch: expected %d, got %d", e.Expected, e.Actual)
}

func (e *ErrDimensionMismatch) Unwrap() error { return e.cause }

func translateError(err error) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, metadata.ErrNotFound) || errors.Is(err, vectorstore.ErrNotFound) {
		return fmt.Errorf("%w: %w", ErrNotFound, err)
	}
	if errors.Is(err, blobstore.ErrInvalidConfig) {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	return err
}
