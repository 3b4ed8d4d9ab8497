// Package timerx drives polling loops with a reusable timer.
package timerx

import (
	"context"
	"time"
)

// StopTimer stops timer and drains its channel so that it can be reset.
func StopTimer(timer *time.Timer) {
	if !timer.Stop() {
		select {
		case <-timer.C:
		default:
		}
	}
}

// Poll calls fn immediately, then every interval after the previous call
// returned, until ctx is done or fn fails.
func Poll(ctx context.Context, interval time.Duration, fn func(context.Context) error) error {
	timer := time.NewTimer(0)
	defer StopTimer(timer)

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-timer.C:
		}
		if ctx.Err() != nil {
			return nil
		}

		if err := fn(ctx); err != nil {
			return err
		}
		timer.Reset(interval)
	}
}
