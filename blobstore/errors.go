package blobstore

import (
	"errors"
	"fmt"
	"os"

	"github.com/wmlabtx/imgmzx/model"
)

var (
	// ErrInvalidHash is returned for a hash that is not 64 lowercase hex characters.
	ErrInvalidHash = model.ErrInvalidHash

	// ErrInsufficientSpace is returned when a volume lacks room for a write.
	ErrInsufficientSpace = errors.New("blobstore: insufficient free space")

	// ErrInvalidConfig is returned by New for an incomplete configuration.
	ErrInvalidConfig = errors.New("blobstore: invalid config")

	// ErrNotFound is returned by a Mirror when a key does not exist.
	//
	// Implementations should return an error that satisfies `errors.Is(err, ErrNotFound)`.
	ErrNotFound = os.ErrNotExist
)

// WriteError reports a failed write after rollback was attempted.
type WriteError struct {
	Hash model.ContentHash
	// Step names the protocol step that failed.
	Step string
	Err  error
	// Rollback is non-nil when restoring the staged files also failed.
	Rollback error
}

func (e *WriteError) Error() string {
	msg := fmt.Sprintf("blobstore: write %s: %s: %v", e.Hash.Short(), e.Step, e.Err)
	if e.Rollback != nil {
		msg += fmt.Sprintf(" (rollback: %v)", e.Rollback)
	}
	return msg
}

func (e *WriteError) Unwrap() []error {
	if e.Rollback != nil {
		return []error{e.Err, e.Rollback}
	}
	return []error{e.Err}
}
