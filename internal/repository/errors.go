package repository

import (
	"database/sql"
	"errors"
)

// ErrNoRows mirrors sql.ErrNoRows for callers that only import this
// package.
var ErrNoRows = sql.ErrNoRows

// ErrStaleWrite is returned when a guarded update matched no row because
// the revision (or guarding status) changed underneath the caller.
var ErrStaleWrite = errors.New("stale write: record changed concurrently")
