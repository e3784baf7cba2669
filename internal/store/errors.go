package store

import "errors"

// ErrNotFound is returned when a record does not exist.
var ErrNotFound = errors.New("not found")

// ErrDuplicateEmail is returned when an insert or update would violate the
// unique-email constraint.
var ErrDuplicateEmail = errors.New("email already exists")
