// Package storeerr defines the closed taxonomy of error kinds the core
// surfaces to callers, so failures can be discriminated with errors.Is
// instead of string matching.
package storeerr

import "errors"

var (
	// ErrAlreadyExists is returned by Create when the target directory
	// already holds a data or offsets file.
	ErrAlreadyExists = errors.New("record store: already exists")

	// ErrCorrupt covers any on-disk invariant violation: offsets log
	// size not a multiple of the entry size, a log entry pointing past
	// the data file, a corrupt header, or a feature-vector length
	// mismatch.
	ErrCorrupt = errors.New("record store: corrupt")

	// ErrFull is returned when an append would overflow the
	// pre-allocated data file.
	ErrFull = errors.New("record store: full")

	// ErrCodec is returned on record serialize/deserialize failure.
	ErrCodec = errors.New("record store: codec error")

	// ErrSchema is returned when a required field is missing while
	// opening an existing search index.
	ErrSchema = errors.New("record store: schema error")

	// ErrInternal marks an invariant violation the core itself should
	// never produce, such as merging feature-range fruits of uneven
	// length.
	ErrInternal = errors.New("record store: internal error")
)
