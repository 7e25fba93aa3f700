package otp

import (
	"context"
	"time"
)

// Throttle limits how often a code email may be sent to one address for one purpose.
type Throttle interface {
	// Allow reserves the slot and reports whether sending may proceed.
	Allow(ctx context.Context, purpose Purpose, email string, window time.Duration) (bool, error)
}

// NoThrottle allows everything.
type NoThrottle struct{}

func (NoThrottle) Allow(context.Context, Purpose, string, time.Duration) (bool, error) {
	return true, nil
}
