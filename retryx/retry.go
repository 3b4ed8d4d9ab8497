package retryx

import (
	"context"
	"time"

	"github.com/cenkalti/backoff"
)

const (
	DefaultInterval       = 500 * time.Millisecond
	DefaultMaxInterval    = 2 * time.Second
	DefaultMaxElapsedTime = 5 * time.Second
	DefaultMaxRetries     = 3
)

// ConstantRetry executes fn until it succeeds, waiting a constant interval
// between attempts. The interval defaults to DefaultInterval and at most
// DefaultMaxRetries attempts are made unless overridden by options.
func ConstantRetry(ctx context.Context, fn func() error, opts ...RetryOption) error {
	rOpts := newRetryOptions(opts...)

	duration := DefaultInterval
	if rOpts.initialInterval > 0 {
		duration = rOpts.initialInterval
	}

	bc := backoff.NewConstantBackOff(duration)
	bc.Reset()

	return retry(ctx, fn, bc, rOpts)
}

// ExponentialRetry executes fn until it succeeds with an exponential backoff
// bounded by the max interval and the max elapsed time.
func ExponentialRetry(ctx context.Context, fn func() error, opts ...RetryOption) error {
	rOpts := newRetryOptions(opts...)

	bc := backoff.NewExponentialBackOff()
	bc.InitialInterval = DefaultInterval
	bc.MaxInterval = DefaultMaxInterval
	bc.MaxElapsedTime = DefaultMaxElapsedTime
	if rOpts.initialInterval > 0 {
		bc.InitialInterval = rOpts.initialInterval
	}
	if rOpts.maxInterval > 0 {
		bc.MaxInterval = rOpts.maxInterval
	}
	if rOpts.maxElapsedTime > 0 {
		bc.MaxElapsedTime = rOpts.maxElapsedTime
	}
	bc.Reset()

	return retry(ctx, fn, bc, rOpts)
}

func newRetryOptions(opts ...RetryOption) *retryOptions {
	rOpts := &retryOptions{}
	for _, opt := range opts {
		opt(rOpts)
	}
	return rOpts
}

func retry(ctx context.Context, fn func() error, bo backoff.BackOff, rOpts *retryOptions) error {
	maxRetryCount := DefaultMaxRetries
	if rOpts.retryCount > 0 {
		maxRetryCount = rOpts.retryCount
	}

	retries := 0
	err := backoff.Retry(func() error {
		err := fn()
		if err == nil {
			return nil
		}

		if rOpts.retryIf != nil && !rOpts.retryIf(err) {
			return backoff.Permanent(err)
		}

		retries++
		if retries >= maxRetryCount {
			return backoff.Permanent(err)
		}

		return err
	}, backoff.WithContext(bo, ctx))

	if pErr, ok := err.(*backoff.PermanentError); ok {
		return pErr.Err
	}
	return err
}
