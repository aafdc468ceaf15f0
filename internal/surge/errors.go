package surge

import "errors"

var (
	// ErrTideUnavailable is returned when no tide reading could be obtained
	ErrTideUnavailable = errors.New("tide data unavailable")
)
