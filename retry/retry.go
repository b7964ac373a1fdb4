package retry

import (
	"context"
	"errors"
	"time"
)

// permanentError marks an error as non-retriable.
type permanentError struct {
	err error
}

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// Permanent wraps err so Do stops retrying and returns it as-is.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// IsPermanent reports whether err was wrapped by Permanent.
func IsPermanent(err error) bool {
	var pe *permanentError
	return errors.As(err, &pe)
}

// OnRetry is invoked before each sleep with the attempt just failed,
// its error and the upcoming delay.
type OnRetry func(attempt int, err error, delay time.Duration)

// Do runs op until it succeeds, returns a permanent error, the context
// is cancelled, or the policy runs out of attempts. The last error is
// returned on exhaustion.
func Do(ctx context.Context, policy Policy, op func() error, onRetry OnRetry) error {
	var lastErr error
	for attempt := 0; ; attempt++ {
		lastErr = op()
		if lastErr == nil {
			return nil
		}
		var pe *permanentError
		if errors.As(lastErr, &pe) {
			return pe.err
		}

		delay, ok := policy.NextDelay(attempt)
		if !ok {
			return lastErr
		}
		if onRetry != nil {
			onRetry(attempt, lastErr, delay)
		}

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}
