package vector

import "errors"

var (
	// ErrBackendUnavailable is returned when the vector backend cannot be
	// reached after the adapter's bounded retries.
	ErrBackendUnavailable = errors.New("vector backend unavailable")

	// ErrCollectionNotFound is returned when an operation targets a
	// collection that has never been created.
	ErrCollectionNotFound = errors.New("collection not found")
)
