// Package errs defines the error kinds shared by the store, index and sync
// layers. Callers match them with errors.Is.
package errs

import "errors"

var (
	// ErrInvalidArgument marks a missing or malformed identifier or entity.
	// Operations failing with it never touch the store.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrNotFound marks a referenced entity that does not exist.
	ErrNotFound = errors.New("not found")

	// ErrIndexUnavailable marks a failed search index call. It is reported
	// next to a successful store mutation, never instead of it.
	ErrIndexUnavailable = errors.New("search index unavailable")

	// ErrConflict marks more than one calendar event linked to a task.
	ErrConflict = errors.New("conflict")
)
