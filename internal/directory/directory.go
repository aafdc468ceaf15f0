// Package directory resolves alert recipients from Postgres, a YAML file, or
// either of those behind a Redis cache.
package directory

import (
	"context"
	"errors"
	"strings"

	"github.com/t77yq/coastal-alert/internal/model"
)

// ErrUnknownDriver is returned for an unsupported directory driver
var ErrUnknownDriver = errors.New("unknown directory driver")

// Directory lists registered recipients
type Directory interface {
	ListAll(ctx context.Context) ([]model.Recipient, error)
	ListByZone(ctx context.Context, zone string) ([]model.Recipient, error)
}

func sameZone(a, b string) bool {
	return strings.EqualFold(strings.TrimSpace(a), strings.TrimSpace(b))
}
