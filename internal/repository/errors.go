// Package repository defines error types that are reused across multiple
// repositories. These sentinel values allow higher layers such as
// services and handlers to distinguish between different failure
// scenarios. ErrStaleWrite is the optimistic concurrency signal: a
// conditional update matched no row because the version read by the
// caller is no longer the stored version.
package repository

import "errors"

// ErrForbidden is returned when the caller attempts an operation
// on a resource they do not own.
var ErrForbidden = errors.New("forbidden")

// ErrConflict is returned when a write cannot be performed because of
// conflicting state, such as a duplicate (show_id, seat_id) pair or a
// duplicate hold token.
var ErrConflict = errors.New("conflict")

// ErrStaleWrite is returned when a versioned update affected no rows.
var ErrStaleWrite = errors.New("stale write")

var (
	ErrShowNotFound    = errors.New("show not found")
	ErrUserNotFound    = errors.New("user not found")
	ErrBookingNotFound = errors.New("booking not found")
	ErrHoldNotFound    = errors.New("seat hold not found")
)
