package app

import "errors"

var (
	ErrInvalidInput = errors.New("invalid input")
	ErrNotFound     = errors.New("not found")

	// Job-fatal failures. Lookup failures are never surfaced.
	ErrExtraction        = errors.New("extraction failure")
	ErrPersistence       = errors.New("persistence failure")
	ErrIntegrityConflict = errors.New("integrity conflict")

	ErrJobExists         = errors.New("job already exists for source, reprocess it instead")
	ErrJobActive         = errors.New("job is pending or processing")
	ErrAnswerUnavailable = errors.New("answer generator is not configured")
)
