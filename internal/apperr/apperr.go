// Package apperr defines the error taxonomy shared across services.
// Handlers translate these sentinels into HTTP status codes; everything
// else wraps them with fmt.Errorf and %w.
package apperr

import "errors"

var (
	// ErrInvalidInput marks caller mistakes: malformed filters, bad chunk
	// parameters, invalid date ranges. Never retried.
	ErrInvalidInput = errors.New("invalid input")

	// ErrUnsupportedFormat marks an upload with a file extension the
	// extractor does not handle.
	ErrUnsupportedFormat = errors.New("unsupported file format")

	// ErrNotFound marks a missing document, collection or session.
	ErrNotFound = errors.New("not found")

	// ErrProvider marks a failure in an external provider (embedding or
	// completion backend).
	ErrProvider = errors.New("provider error")
)
