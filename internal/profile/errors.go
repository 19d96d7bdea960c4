package profile

import "errors"

var (
	// ErrProfileNotFound is returned when no profile row exists for a user.
	ErrProfileNotFound = errors.New("profile not found")

	// ErrVersionConflict is returned when a save loses an optimistic
	// concurrency check against the stored version.
	ErrVersionConflict = errors.New("profile version conflict")

	// ErrStoreUnavailable is returned when the persistence layer fails.
	// Callers must surface it as a service error, never as an empty profile.
	ErrStoreUnavailable = errors.New("profile store unavailable")
)
