package shared

import "errors"

var (
	// ErrNotFound indicates the requested record does not exist.
	ErrNotFound = errors.New("not found")
	// ErrVersionConflict indicates a concurrent writer modified the record first.
	ErrVersionConflict = errors.New("record version conflict")
)
