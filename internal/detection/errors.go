package detection

import "errors"

var (
	// ErrCycleInProgress is returned when a cycle is requested while another runs
	ErrCycleInProgress = errors.New("detection cycle already in progress")

	// ErrInvalidSchedule is returned for a schedule cron cannot parse
	ErrInvalidSchedule = errors.New("invalid schedule")
)
