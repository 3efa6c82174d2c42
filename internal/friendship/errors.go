package friendship

import "errors"

// Sentinel errors returned by the friendship service. Callers branch with
// errors.Is; the HTTP layer maps them onto status codes.
var (
	// ErrInvalidRequest means the input is semantically invalid: the target user
	// does not exist, the caller targeted themselves, or there is no outstanding
	// request to answer.
	ErrInvalidRequest = errors.New("invalid friendship request")

	// ErrConflict means existing state forbids the operation: a request is already
	// outstanding, the users are already friends, or a concurrent operation won.
	ErrConflict = errors.New("conflicting friendship state")

	// ErrNotFound means the referenced request row was absent at mutation time,
	// typically because a concurrent accept or decline got there first.
	ErrNotFound = errors.New("friendship request not found")

	// ErrIntegrity means stored data violates the single-outstanding-request
	// invariant. The operation is aborted and rolled back; the data is never
	// silently repaired.
	ErrIntegrity = errors.New("friendship data integrity fault")
)
