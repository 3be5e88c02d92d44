package db

import "errors"

var (
	// ErrConflict means a write collided with a unique constraint.
	ErrConflict = errors.New("conflicting row already exists")
	// ErrMissingReference means a write referenced a row that does not exist.
	ErrMissingReference = errors.New("referenced row does not exist")
)
