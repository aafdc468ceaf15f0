package storage

import "errors"

// ErrNotFound is returned when an audit record does not exist
var ErrNotFound = errors.New("audit record not found")
