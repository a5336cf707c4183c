package store

import "errors"

// NotFoundError is returned when a notebook or source doesn't exist in the
// store.
type NotFoundError struct {
	Kind string
	ID   string
}

func (e NotFoundError) Error() string {
	if e.ID == "" {
		return e.Kind + " not found"
	}

	return e.Kind + " not found: " + e.ID
}

// IsNotFound reports whether err is a NotFoundError.
func IsNotFound(err error) bool {
	var nf NotFoundError
	return errors.As(err, &nf)
}
