package domain

import "errors"

var (
	// ErrNotFound is returned when a batch or task record does not exist.
	ErrNotFound = errors.New("not found")

	// ErrConflict is returned when a record with the same identity already exists,
	// e.g. populating the same batch id twice.
	ErrConflict = errors.New("conflict")

	// ErrValidation is returned for malformed input.
	ErrValidation = errors.New("validation error")
)
