package notify

import (
	"context"
	"errors"
	"net"
	"os"
)

var (
	// ErrNotConfigured is returned when a provider lacks credentials or an endpoint.
	// It is not retryable.
	ErrNotConfigured = errors.New("provider not configured")

	// ErrInvalidDestination is returned when an address, phone number or device token is malformed
	ErrInvalidDestination = errors.New("invalid destination")

	// ErrTimeout is returned when a send exceeds its deadline
	ErrTimeout = errors.New("send timed out")

	// ErrRejected is returned when the provider refuses the message
	ErrRejected = errors.New("provider rejected message")

	// ErrTransport is returned for network or protocol failures
	ErrTransport = errors.New("transport failure")
)

// Reason maps a send error to a stable label
func Reason(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrNotConfigured):
		return "not_configured"
	case errors.Is(err, ErrInvalidDestination):
		return "invalid_destination"
	case errors.Is(err, ErrTimeout), errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.Is(err, ErrRejected):
		return "rejected"
	default:
		return "transport"
	}
}

// isTimeout reports whether err is a deadline or network timeout
func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, os.ErrDeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
