package repository

import "errors"

// Common repository errors
var (
	ErrNotFound     = errors.New("record not found")
	ErrDuplicateKey = errors.New("duplicate key violation")
	// ErrStaleVersion signals that the skip row changed under an optimistic
	// lock_version guard; the caller retries the whole command.
	ErrStaleVersion = errors.New("stale lock version")
)
