package fingraph

import "errors"

var (
	// ErrInvalidConfig is returned for missing or invalid configuration.
	ErrInvalidConfig = errors.New("fingraph: invalid configuration")

	// ErrDocumentsDir is returned when the documents directory cannot be listed.
	ErrDocumentsDir = errors.New("fingraph: cannot list documents directory")

	// ErrRunLocked is returned when another run over the same directory holds
	// the run lock.
	ErrRunLocked = errors.New("fingraph: another run is in progress")

	// ErrEmptyText is recorded for documents that produced no text.
	ErrEmptyText = errors.New("fingraph: document produced no text")

	// ErrPanic is recorded for documents whose processing panicked.
	ErrPanic = errors.New("fingraph: panic while processing document")
)
