package envelope

import (
	"context"
	"time"
)

// deadlines and backoff are the Error Envelope's retry schedule (spec §4.1):
// a 30-second first attempt, a 15-second retry, separated by an exponential
// 500ms/1000ms backoff.
var (
	attemptDeadlines = []time.Duration{30 * time.Second, 15 * time.Second}
	backoffDelays    = []time.Duration{500 * time.Millisecond, 1000 * time.Millisecond}
)

// Call is the signature of a deadline-bounded operation.
type Call func(ctx context.Context) error

// DeadlineCall runs fn under a fresh context.WithTimeout derived from ctx,
// wrapping a context-deadline failure as a Kind=TIMEOUT Error.
func DeadlineCall(ctx context.Context, op string, timeout time.Duration, fn Call) error {
	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	err := fn(callCtx)
	if err != nil && callCtx.Err() == context.DeadlineExceeded {
		return New(KindTimeout, op, err)
	}
	return err
}

// Retry runs fn up to len(attemptDeadlines) times, each attempt bounded by
// its own deadline from attemptDeadlines, waiting backoffDelays[i] between
// attempt i and i+1. It stops early if ctx is cancelled or if fn's error is
// not IsRetryable.
func Retry(ctx context.Context, op string, fn Call) error {
	var lastErr error
	for attempt := range attemptDeadlines {
		lastErr = DeadlineCall(ctx, op, attemptDeadlines[attempt], fn)
		if lastErr == nil {
			return nil
		}
		if !IsRetryable(lastErr) {
			return lastErr
		}
		if attempt < len(attemptDeadlines)-1 && attempt < len(backoffDelays) {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(backoffDelays[attempt]):
			}
		}
	}
	return lastErr
}
