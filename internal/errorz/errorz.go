// Package errorz contains the error classes shared by all packages.
//
// Errors returned by the services and stores wrap one of the class
// sentinels below, so that callers can decide how to react to an error
// without knowing where it originated. Use errors.Is to match a class.
package errorz

import "errors"

var (
	// ErrNotFound indicates the requested entity does not exist.
	ErrNotFound = errors.New("not found")
	// ErrConstraintViolated indicates the store rejected a write because it
	// would violate a constraint, such as a duplicate primary key.
	ErrConstraintViolated = errors.New("constraint violated")
	// ErrInvalidInput indicates the caller provided malformed input.
	ErrInvalidInput = errors.New("invalid input")
	// ErrConflict indicates the request conflicts with the current state.
	ErrConflict = errors.New("conflict")
	// ErrTransient indicates a failure that may succeed when retried, such
	// as a busy database or an aborted serializable transaction.
	ErrTransient = errors.New("transient failure")
)
