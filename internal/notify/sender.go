// Package notify implements the email, SMS and push channel senders and
// renders alert envelopes for them.
package notify

import (
	"context"
	"strings"
	"time"

	"github.com/t77yq/coastal-alert/internal/model"
)

const defaultSendTimeout = 10 * time.Second

// Sender sends one rendered message to one destination on one channel.
// Implementations validate the destination first, apply their own timeout and
// never retry.
type Sender interface {
	Channel() model.Channel
	Send(ctx context.Context, destination string, msg model.RenderedMessage) error
}

// Mask hides most of a destination for logging
func Mask(destination string) string {
	if at := strings.LastIndex(destination, "@"); at > 0 {
		return destination[:1] + "***" + destination[at:]
	}
	if len(destination) <= 4 {
		return "***"
	}
	return "***" + destination[len(destination)-4:]
}

func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		d = defaultSendTimeout
	}
	return context.WithTimeout(ctx, d)
}
