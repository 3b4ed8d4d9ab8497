package retryx_test

import (
	"context"
	"time"

	"github.com/rentapp/x/retryx"
)

func ExampleExponentialRetry() {
	ctx := context.Background()
	connect := func() error {
		// Dial the storage backend.
		return nil
	}

	err := retryx.ExponentialRetry(ctx, connect,
		retryx.WithMaxElapsedTime(30*time.Second),
		retryx.WithInterval(100*time.Millisecond),
		retryx.WithRetryCount(10),
	)
	if err != nil {
		// The backend never came up.
		return
	}
}
