package retry

import (
	"context"
	"errors"
	"fmt"
	"time"

	goretry "github.com/sethvargo/go-retry"
)

// Policy bounds a retried unit of work. MaxAttempts counts the first try.
type Policy struct {
	MaxAttempts int
	Base        time.Duration
}

// DefaultPolicy is three attempts with exponential backoff from 100ms.
var DefaultPolicy = Policy{MaxAttempts: 3, Base: 100 * time.Millisecond}

// Classifier reports whether an error is worth another attempt.
type Classifier func(error) bool

// ExhaustedError is returned when every attempt failed with a transient error.
type ExhaustedError struct {
	Attempts int
	Err      error
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("gave up after %d attempts: %v", e.Attempts, e.Err)
}

func (e *ExhaustedError) Unwrap() error {
	return e.Err
}

// IsExhausted reports whether err came from a policy running out of attempts.
func IsExhausted(err error) bool {
	var exhausted *ExhaustedError
	return errors.As(err, &exhausted)
}

// Options hooks observers into the retry loop.
type Options struct {
	// OnRetry runs before each new attempt with the error that triggered it.
	OnRetry func(attempt int, err error)
}

// Do runs fn until it succeeds, returns a non-transient error, or the policy
// runs out of attempts. Non-transient errors are returned unchanged.
func Do(ctx context.Context, policy Policy, transient Classifier, fn func(ctx context.Context) error, opts ...Options) error {
	if policy.MaxAttempts <= 0 {
		policy.MaxAttempts = 1
	}
	if policy.Base <= 0 {
		policy.Base = DefaultPolicy.Base
	}

	var onRetry func(int, error)
	for _, o := range opts {
		if o.OnRetry != nil {
			onRetry = o.OnRetry
		}
	}

	backoff := goretry.WithMaxRetries(uint64(policy.MaxAttempts-1), goretry.NewExponential(policy.Base))

	attempts := 0
	var last error
	err := goretry.Do(ctx, backoff, func(ctx context.Context) error {
		attempts++
		if attempts > 1 && onRetry != nil {
			onRetry(attempts, last)
		}
		err := fn(ctx)
		if err == nil {
			return nil
		}
		last = err
		if transient != nil && transient(err) {
			return goretry.RetryableError(err)
		}
		return err
	})
	if err == nil {
		return nil
	}
	if last != nil && errors.Is(err, last) && transient != nil && transient(last) {
		return &ExhaustedError{Attempts: attempts, Err: last}
	}
	return err
}
