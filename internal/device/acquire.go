package device

import (
	"context"
	"time"
)

// defaultPollInterval paces Acquire's readiness checks.
const defaultPollInterval = 100 * time.Millisecond

// Acquire polls ready until it produces a value or the timeout elapses.
// It replaces open-ended wait loops on slow resources (a transport
// reconnecting, a capture device warming up) with a bounded acquisition:
// the caller always gets a handle or ErrTimeout.
func Acquire[T any](ctx context.Context, timeout time.Duration, ready func() (T, bool)) (T, error) {
	var zero T

	if v, ok := ready(); ok {
		return v, nil
	}

	deadline := time.NewTimer(timeout)
	defer deadline.Stop()
	ticker := time.NewTicker(defaultPollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if v, ok := ready(); ok {
				return v, nil
			}
		case <-deadline.C:
			return zero, ErrTimeout
		case <-ctx.Done():
			return zero, ctx.Err()
		}
	}
}
