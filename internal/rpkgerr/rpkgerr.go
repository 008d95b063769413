// Package rpkgerr defines the sentinel error kinds shared across runepkg's
// core packages. Callers use errors.Is against these sentinels; the
// wrapping error (produced with fmt.Errorf("...: %w", Err...)) carries the
// human-readable detail.
package rpkgerr

import "errors"

var (
	// ErrInvalidInput marks a null or out-of-range argument; a caller bug.
	ErrInvalidInput = errors.New("invalid input")

	// ErrNotFound marks a missing file, DB entry, or package.
	ErrNotFound = errors.New("not found")

	// ErrCorrupt marks a binary file missing its magic or with inconsistent
	// length-prefixed fields.
	ErrCorrupt = errors.New("corrupt data")

	// ErrIO marks a failed underlying filesystem call.
	ErrIO = errors.New("i/o error")

	// ErrExtraction marks an archive tool or decoder failure.
	ErrExtraction = errors.New("extraction failed")

	// ErrParse marks a malformed control stanza, version string, or
	// depends line.
	ErrParse = errors.New("parse error")

	// ErrConstraintUnsatisfied marks one or more dependencies that cannot
	// be met.
	ErrConstraintUnsatisfied = errors.New("constraint unsatisfied")

	// ErrAlreadyInstalled marks a non-force install requested for a
	// package already present at a different version.
	ErrAlreadyInstalled = errors.New("already installed")

	// ErrSuggestionsShown marks a status/remove lookup that matched zero
	// or multiple candidates; the caller must not also emit a "not found"
	// message.
	ErrSuggestionsShown = errors.New("suggestions shown")

	// ErrCancelled marks a declined interactive confirmation.
	ErrCancelled = errors.New("cancelled")
)
