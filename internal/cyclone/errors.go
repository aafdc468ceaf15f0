package cyclone

import "errors"

var (
	// ErrNotConfigured is returned when the classifier endpoint is not set
	ErrNotConfigured = errors.New("cyclone classifier not configured")

	// ErrBadResponse is returned when the classifier response cannot be used
	ErrBadResponse = errors.New("bad classifier response")
)
