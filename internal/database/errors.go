package database

import "errors"

var (
	// ErrNotFound means the requested row does not exist.
	ErrNotFound = errors.New("record not found")

	// ErrDuplicateEmail means a user with this email already exists.
	ErrDuplicateEmail = errors.New("email already registered")
)
