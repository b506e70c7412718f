package poll

import (
	"context"
	"errors"
	"time"

	"k8s.io/apimachinery/pkg/util/wait"
)

// ErrTimeout is returned when the deadline or attempt budget is exhausted
// before the check reported success.
var ErrTimeout = errors.New("timed out waiting for condition")

// ConditionFunc reports whether the awaited condition holds. Returning an
// error aborts the wait; retryable conditions must return (false, nil).
type ConditionFunc func(ctx context.Context) (bool, error)

// Until runs check immediately and then every interval until it returns
// true, returns an error, or timeout elapses. A cancelled parent context
// surfaces as the context error rather than ErrTimeout.
func Until(ctx context.Context, interval, timeout time.Duration, check ConditionFunc) error {
	err := wait.PollUntilContextTimeout(ctx, interval, timeout, true, wait.ConditionWithContextFunc(check))
	return translate(ctx, err)
}

// Attempts runs check at most attempts times, sleeping interval between
// runs.
func Attempts(ctx context.Context, interval time.Duration, attempts int, check ConditionFunc) error {
	if attempts < 1 {
		attempts = 1
	}
	backoff := wait.Backoff{
		Duration: interval,
		Factor:   1.0,
		Steps:    attempts,
	}
	err := wait.ExponentialBackoffWithContext(ctx, backoff, wait.ConditionWithContextFunc(check))
	return translate(ctx, err)
}

func translate(ctx context.Context, err error) error {
	if err == nil {
		return nil
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}
	if wait.Interrupted(err) {
		return ErrTimeout
	}
	return err
}
