package dispatch

import "errors"

// ErrDirectoryUnavailable is returned when recipients could not be resolved
var ErrDirectoryUnavailable = errors.New("recipient directory unavailable")

// Result reasons reported on unsuccessful dispatches
const (
	ReasonNoRecipients         = "no_recipients"
	ReasonNoUsableChannels     = "no_usable_channels"
	ReasonAllFailed            = "all_failed"
	ReasonDirectoryUnavailable = "directory_unavailable"
	ReasonCancelled            = "cancelled"
)
