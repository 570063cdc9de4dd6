package services

import (
	"errors"
	"fmt"
)

// Service-level error taxonomy. Handlers map these onto HTTP statuses with
// errors.Is; anything else becomes a generic 500.
var (
	// ErrNotFound means the requested record does not exist.
	ErrNotFound = errors.New("not found")
	// ErrForbidden means the record exists but the caller does not own it
	// or lacks the required privilege.
	ErrForbidden = errors.New("forbidden")
	// ErrConflict means the operation would duplicate a unique value
	// (username, favorite entry).
	ErrConflict = errors.New("conflict")
	// ErrInvalidCredentials covers both unknown username and wrong password,
	// deliberately indistinguishable to the caller.
	ErrInvalidCredentials = errors.New("invalid credentials")
)

// ErrUserNotFound marks a missing user record on operations that also look up
// other records, so handlers can report the right resource. It matches
// ErrNotFound under errors.Is.
var ErrUserNotFound = fmt.Errorf("user: %w", ErrNotFound)
