package core

import "errors"

// Sentinel errors forming the taxonomy of spec §7. Callers check with
// errors.Is; concrete errors returned by components wrap one of these with
// fmt.Errorf("...: %w", ...) for context, the way the teacher's
// internal/domain/errors.go does for repository errors.
var (
	// ErrValidation indicates a submission payload failed schema validation.
	ErrValidation = errors.New("validation error")

	// ErrNotFound indicates the requested job_id does not exist.
	ErrNotFound = errors.New("not found")

	// ErrInvalidState indicates an illegal status transition was requested
	// (cancel on a terminal job, retry on a non-retriable job).
	ErrInvalidState = errors.New("invalid state")

	// ErrStoreUnavailable indicates a transient backing-store failure.
	ErrStoreUnavailable = errors.New("store unavailable")

	// ErrNoCapacity is advisory, not a true error. The scheduler does not
	// return it: when no device is available it skips the group silently.
	ErrNoCapacity = errors.New("no capacity")

	// ErrInternal is the catch-all for uncategorized failures.
	ErrInternal = errors.New("internal error")
)
