// Package repository holds the MongoDB-backed stores for users, hospitals
// and refresh tokens. The sentinel errors below let higher layers tell
// "nothing there" and "already taken" apart from infrastructure failures.
package repository

import "errors"

// ErrNotFound is returned when a lookup, update or delete matches no
// document. Handlers translate it into 404, the auth core into 401.
var ErrNotFound = errors.New("not found")

// ErrDuplicate is returned when a write violates a unique index
// (username, email, refresh token). Handlers translate it into 400.
var ErrDuplicate = errors.New("duplicate key")
