// Package repository defines error sentinels that are reused across multiple
// repositories. These values let handlers distinguish failure scenarios
// without inspecting driver errors: ErrNotFound maps to HTTP 404,
// ErrEmailExists and ErrConflict to 409, ErrForbidden to 403.
package repository

import "errors"

// ErrNotFound is returned when the requested row does not exist.
var ErrNotFound = errors.New("not found")

// ErrEmailExists is returned when an insert or update would violate the
// unique email constraint.
var ErrEmailExists = errors.New("email already exists")

// ErrConflict is returned when an operation cannot proceed due to the
// current state, such as deleting or demoting the last operator-root.
var ErrConflict = errors.New("conflict")

// ErrForbidden is returned when the caller attempts an operation on a
// resource they may not touch.
var ErrForbidden = errors.New("forbidden")
