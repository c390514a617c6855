package connector

import (
	"context"
	"fmt"
	"time"
)

// Dial runs fn until it succeeds, retrying with exponential backoff up to
// rc.MaxRetries attempts. Backoff waits honor context cancellation. The
// last dial error is returned when every attempt fails.
func Dial[T any](ctx context.Context, rc RetryConfig, fn func(context.Context) (T, error)) (T, error) {
	var zero T

	attempts := rc.MaxRetries
	if attempts <= 0 {
		attempts = 1
	}
	delay := rc.BaseDelay
	if delay <= 0 {
		delay = time.Second
	}

	var err error
	for i := 0; i < attempts; i++ {
		var v T
		v, err = fn(ctx)
		if err == nil {
			return v, nil
		}
		if i == attempts-1 {
			break
		}

		select {
		case <-ctx.Done():
			return zero, ctx.Err()
		case <-time.After(delay):
			delay *= 2
			if rc.MaxDelay > 0 && delay > rc.MaxDelay {
				delay = rc.MaxDelay
			}
		}
	}
	return zero, fmt.Errorf("connector: dial failed after %d attempts: %w", attempts, err)
}
