package storage

import (
	"errors"
	"fmt"
)

var (
	// ErrNilValue is returned when a write would replace state with nothing.
	ErrNilValue = errors.New("refusing to store empty value")
	// ErrNotFound means the key has never been written.
	ErrNotFound = errors.New("key not found")
	// ErrUnavailable is returned by a backend that has been closed.
	ErrUnavailable = errors.New("state backend unavailable")
	// ErrChecksumMismatch means a persisted snapshot no longer matches its checksum.
	ErrChecksumMismatch = errors.New("snapshot checksum mismatch")
	// ErrVersionNotFound is returned by Rollback when no backup exists for the version.
	ErrVersionNotFound = errors.New("snapshot version not found")
	// ErrInvalidKey is returned for keys that are empty or contain '@'.
	ErrInvalidKey = errors.New("invalid state key")
)

// StorageError wraps a failed state operation with the key involved.
type StorageError struct {
	// Op is the operation that failed ("load", "save", "rollback").
	Op string
	// Backend is the name of the store.
	Backend string
	Key     string
	Err     error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage: %s %s %q: %v", e.Backend, e.Op, e.Key, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }
