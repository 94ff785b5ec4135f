// Package store contains the PostgreSQL repositories backing the scoring
// pipeline. All methods take a context and return wrapped errors; a missing
// row surfaces as ErrNotFound.
package store

import "errors"

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("record not found")
