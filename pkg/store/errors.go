package store

import "errors"

// Sentinel errors for store operations.
var (
	// ErrNotFound is returned when a client or API key does not exist,
	// is inactive, or is not visible to the lookup used.
	ErrNotFound = errors.New("record not found")

	// ErrConflict is returned when a create would violate a uniqueness
	// constraint (client slug, wallet address, or hashed secret).
	ErrConflict = errors.New("record already exists")
)
