package transform

import "errors"

// Error types for the transform package.
var (
	// ErrInvalidArgument is returned when a transformation's validity
	// predicate rejects the node, or an argument falls outside its resolved
	// bound. The tree is left untouched.
	ErrInvalidArgument = errors.New("invalid transformation argument")

	// ErrUnknownKind is returned for a transformation kind with no catalog
	// entry.
	ErrUnknownKind = errors.New("unknown transformation")

	// ErrRollbackFailure is returned when rollback could not restore the
	// exact pre-apply state. The tree can no longer be trusted and the
	// session must be aborted.
	ErrRollbackFailure = errors.New("rollback failed to restore schedule state")
)
