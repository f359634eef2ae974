//go:build !windows

package ole

import (
	"context"
	"time"

	"mailbridge/internal/automation"
)

// NewDialer returns a dialer that always fails: COM automation is Windows only.
func NewDialer(*time.Location) automation.Dialer {
	return func(context.Context) (automation.Session, error) {
		return nil, automation.ErrUnsupported
	}
}
