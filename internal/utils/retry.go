package utils

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v5"
)

type RetryOptions struct {
	MaxRetries    uint
	InitialDelay  time.Duration
	BackoffFactor float64
	// OnRetry is invoked before each retry with the 1-based retry number.
	OnRetry func(attempt int, err error)
}

// DefaultRetryOptions matches the datastore call policy: two retries starting
// at 500ms and doubling.
func DefaultRetryOptions() RetryOptions {
	return RetryOptions{
		MaxRetries:    2,
		InitialDelay:  500 * time.Millisecond,
		BackoffFactor: 2,
	}
}

// Retry runs operation until it succeeds or MaxRetries retries have been
// spent. Any non-nil error is treated as retryable; wrap with
// backoff.Permanent to stop early.
func Retry[T any](ctx context.Context, operation func() (T, error), opts RetryOptions) (T, error) {
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = opts.InitialDelay
	if policy.InitialInterval <= 0 {
		policy.InitialInterval = 500 * time.Millisecond
	}
	policy.Multiplier = opts.BackoffFactor
	if policy.Multiplier < 1 {
		policy.Multiplier = 1
	}
	policy.RandomizationFactor = 0

	attempt := 0
	return backoff.Retry(ctx, operation,
		backoff.WithBackOff(policy),
		backoff.WithMaxTries(opts.MaxRetries+1),
		backoff.WithNotify(func(err error, _ time.Duration) {
			attempt++
			if opts.OnRetry != nil {
				opts.OnRetry(attempt, err)
			}
		}),
	)
}
